package subscriber

// Subscriber receives device events pushed by a sublist. Push reports the
// subscriber gone so the sublist can drop it.
type Subscriber interface {
	Push(imei string, data []byte) (closed bool)
}
