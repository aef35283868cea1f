package publish

// Multi fans one event out to several sinks. Each sink gets every event,
// the first error is reported after all sinks ran.
type Multi []Sink

func (m Multi) Publish(imei string, payload []byte) error {
	var first error
	for _, s := range m {
		if err := s.Publish(imei, payload); err != nil && first == nil {
			first = err
		}
	}
	return first
}
