package conn

import (
	"io"
	"net"
	"strings"
	"testing"
	"time"
)

type stubAddr string

func (stubAddr) Network() string  { return "tcp" }
func (a stubAddr) String() string { return string(a) }

type stubConn struct {
	rd      io.Reader
	written int
	closed  bool
}

func (s *stubConn) Read(p []byte) (int, error)       { return s.rd.Read(p) }
func (s *stubConn) Write(p []byte) (int, error)      { s.written += len(p); return len(p), nil }
func (s *stubConn) Close() error                     { s.closed = true; return nil }
func (s *stubConn) LocalAddr() net.Addr              { return stubAddr("10.0.0.1:5064") }
func (s *stubConn) RemoteAddr() net.Addr             { return stubAddr("192.168.1.50:40001") }
func (s *stubConn) SetDeadline(time.Time) error      { return nil }
func (s *stubConn) SetReadDeadline(time.Time) error  { return nil }
func (s *stubConn) SetWriteDeadline(time.Time) error { return nil }

func TestNewConnTuple(t *testing.T) {
	c := NewConn(&stubConn{rd: strings.NewReader("")}, 5)
	if c.Cid() != 5 {
		t.Errorf("cid %d", c.Cid())
	}
	if c.RemoteHost() != "192.168.1.50:40001" {
		t.Errorf("remote %q", c.RemoteHost())
	}
}

func TestCounters(t *testing.T) {
	c := NewConn(&stubConn{rd: strings.NewReader("hello")}, 1)
	buf := make([]byte, 16)
	n, err := c.Read(buf)
	if err != nil || n != 5 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	c.Write([]byte("abc"))
	in, out := c.Stat()
	if in != 5 || out != 3 {
		t.Errorf("in=%d out=%d", in, out)
	}
}

func TestClosedFlag(t *testing.T) {
	s := &stubConn{rd: strings.NewReader("")}
	c := NewConn(s, 1)
	if c.Closed() {
		t.Error("closed before close")
	}
	c.Close()
	if !c.Closed() || !s.closed {
		t.Error("close not propagated")
	}
}

func TestTunnelConnAddrLine(t *testing.T) {
	s := &stubConn{rd: strings.NewReader("203.0.113.7:61234\n\x67\x67\x03")}
	c, err := NewTunnelConn(s, 9)
	if err != nil {
		t.Fatal(err)
	}
	if c.RemoteHost() != "203.0.113.7:61234" {
		t.Errorf("remote %q", c.RemoteHost())
	}
	buf := make([]byte, 8)
	n, err := c.Read(buf)
	if err != nil || n != 3 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if buf[0] != 0x67 || buf[2] != 0x03 {
		t.Errorf("payload % x", buf[:n])
	}
}

func TestTunnelConnNoLine(t *testing.T) {
	s := &stubConn{rd: strings.NewReader("203.0.113.7:61234")}
	if _, err := NewTunnelConn(s, 9); err == nil {
		t.Error("missing newline accepted")
	}
}
