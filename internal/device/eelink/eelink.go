// Package eelink implements the Eelink V2.0 tracker protocol: framing,
// payload decoding, acknowledgments and the per-connection session.
package eelink

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phuslu/log"
	"nuha.dev/eelink/internal/conn"
	"nuha.dev/eelink/internal/publish"
)

const (
	CONNECTION_CLOSED string = "connection_closed"
	DEVICE_LOGIN      string = "device_login"
	PACKET_DISCARDED  string = "packet_discarded"
)

// Config carries the per-device options the server hands to every session.
type Config struct {
	StatusFlags bool `json:"status_flags"`
}

type Eelink struct {
	c      *conn.Conn
	err    error
	log    log.Logger
	sink   publish.Sink
	conf   Config
	buf    []byte
	frames uint64
	events uint64

	imei_mu sync.Mutex
	imei    string

	eelink_status
	eelink_location
}

type eelink_status struct {
	mu   sync.Mutex
	st   uint16
	time time.Time
}

type eelink_location struct {
	mu   sync.Mutex
	rec  Record
	time time.Time
}

func NewEelink(c *conn.Conn, sink publish.Sink, logger log.Logger, conf *Config) *Eelink {
	o := &Eelink{c: c, sink: sink}
	if conf != nil {
		o.conf = *conf
	}
	o.log = logger
	o.log.Context = log.NewContext(nil).Str("module", "eelink").Uint64("cid", c.Cid()).Value()
	o.buf = make([]byte, 2048)
	return o
}

// IMEI returns the identity learned at login, empty while unidentified.
func (e *Eelink) IMEI() string {
	e.imei_mu.Lock()
	defer e.imei_mu.Unlock()
	return e.imei
}

// LastStatus returns the most recent status word and when it was seen.
func (e *Eelink) LastStatus() (uint16, time.Time) {
	e.eelink_status.mu.Lock()
	defer e.eelink_status.mu.Unlock()
	return e.eelink_status.st, e.eelink_status.time
}

// LastRecord returns the most recent location record and when it was seen.
func (e *Eelink) LastRecord() (Record, time.Time) {
	e.eelink_location.mu.Lock()
	defer e.eelink_location.mu.Unlock()
	return e.eelink_location.rec, e.eelink_location.time
}

// Counters reports how many packets were accepted and events published.
func (e *Eelink) Counters() (frames uint64, events uint64) {
	return atomic.LoadUint64(&e.frames), atomic.LoadUint64(&e.events)
}

func (e *Eelink) Conn() *conn.Conn {
	return e.c
}

func (e *Eelink) Err() error {
	return e.err
}

func (e *Eelink) closeAndSetErr(err error) {
	e.err = err
	e.log.Error().Err(err).Str("event", CONNECTION_CLOSED).Msg("connection closed caused by error")
	e.c.Close()
}

// Run reads packets until the peer disconnects or the transport fails.
// It blocks, the server gives every connection its own goroutine.
func (e *Eelink) Run() {
	for {
		n, err := e.c.Read(e.buf)
		if n > 0 {
			if werr := e.handlePacket(e.buf[:n]); werr != nil {
				e.closeAndSetErr(werr)
				return
			}
		}
		if err != nil {
			if err == io.EOF {
				e.log.Info().Str("event", CONNECTION_CLOSED).Msg("connection closed by peer")
				e.c.Close()
			} else {
				e.closeAndSetErr(err)
			}
			return
		}
	}
}

// handlePacket dispatches one received packet. Decode problems are logged
// and swallowed, only write failures come back as errors and tear the
// connection down.
func (e *Eelink) handlePacket(p []byte) error {
	cmd, seq, ok := decodeHeader(p)
	if !ok || len(p) < minPacket {
		e.log.Warn().Str("event", PACKET_DISCARDED).Hex("data", p).Msg("invalid header or short packet")
		return nil
	}
	atomic.AddUint64(&e.frames, 1)
	pcode := strconv.FormatUint(uint64(cmd), 16)
	e.log.Trace().Str("pcode", pcode).Int("seq", int(seq)).Hex("data", p).Msg("packet received")
	switch cmd {
	case loginPacket:
		return e.handleLogin(p, seq)
	case heartbeatPacket:
		return e.handleHeartbeat(p, seq)
	case locationPacket:
		return e.handleLocation(p)
	default:
		e.log.Info().Str("pcode", pcode).Msg("unsupported packet, sending generic ack")
		return e.write(newAck(cmd, seq, nil))
	}
}

func (e *Eelink) handleLogin(p []byte, seq uint16) error {
	imei, err := parseLogin(p)
	if err != nil {
		e.log.Warn().Str("event", PACKET_DISCARDED).Err(err).Msg("login packet too short")
		return nil
	}
	e.imei_mu.Lock()
	if e.imei == "" {
		e.imei = imei
		e.imei_mu.Unlock()
		e.log.Info().Str("event", DEVICE_LOGIN).Str("imei", imei).Int("seq", int(seq)).Msg("")
	} else {
		known := e.imei
		e.imei_mu.Unlock()
		if known != imei {
			e.log.Warn().Str("imei", known).Str("login_imei", imei).Msg("repeated login with different imei, keeping first")
		}
	}
	return e.write(newLoginAck(seq, time.Now()))
}

func (e *Eelink) handleHeartbeat(p []byte, seq uint16) error {
	st := binary.BigEndian.Uint16(p[7:9])
	t := time.Now().UTC()
	e.updateStatus(st, t)
	if imei := e.IMEI(); imei != "" {
		ev := HeartbeatEvent{Status: st, Timestamp: t.Format(time.RFC3339)}
		if e.conf.StatusFlags {
			ev.StatusFlags = FlagMap(st)
		}
		e.publish(imei, &ev)
	}
	return e.write(newAck(heartbeatPacket, seq, nil))
}

func (e *Eelink) handleLocation(p []byte) error {
	imei := e.IMEI()
	for off := 0; off < len(p); off += recordSize {
		chunk := p[off:]
		if len(chunk) > recordSize {
			chunk = chunk[:recordSize]
		}
		rec, err := parseRecord(chunk)
		if err != nil {
			e.log.Warn().Str("event", PACKET_DISCARDED).Err(err).Hex("data", chunk).Msg("broken location record, skipping rest of packet")
			return nil
		}
		t := time.Now().UTC()
		e.log.Debug().EmbedObject(&rec).Msg("location record")
		e.updateStatus(rec.Status, t)
		e.updateLocation(rec, t)
		if imei != "" {
			ev := NewLocationEvent(&rec)
			if e.conf.StatusFlags {
				ev.StatusFlags = FlagMap(rec.Status)
			}
			e.publish(imei, &ev)
		}
		if err := e.write(newAck(locationPacket, rec.Seq, nil)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Eelink) publish(imei string, ev interface{}) {
	d, err := json.Marshal(ev)
	if err != nil {
		e.log.Error().Err(err).Msg("error marshalling event")
		return
	}
	err = e.sink.Publish(imei, d)
	if err != nil {
		e.log.Error().Err(err).Str("imei", imei).Msg("error publishing event")
		return
	}
	atomic.AddUint64(&e.events, 1)
}

func (e *Eelink) write(d []byte) error {
	_, err := e.c.Write(d)
	if err != nil {
		e.log.Error().Err(err).Msg("error while writing response")
		return err
	}
	return nil
}

func (e *Eelink) updateStatus(st uint16, t time.Time) {
	e.eelink_status.mu.Lock()
	if e.eelink_status.st != st {
		e.log.Info().Object("status", Status(st)).Msg("status changed")
	}
	e.eelink_status.st = st
	e.eelink_status.time = t
	e.eelink_status.mu.Unlock()
}

func (e *Eelink) updateLocation(rec Record, t time.Time) {
	e.eelink_location.mu.Lock()
	e.eelink_location.rec = rec
	e.eelink_location.time = t
	e.eelink_location.mu.Unlock()
}
