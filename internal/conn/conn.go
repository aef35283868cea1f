package conn

import (
	"bufio"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/phuslu/log"
)

// Conn wraps one device connection with a buffered reader, a server-unique
// cid and byte counters for the monitoring api.
type Conn struct {
	cid      uint64
	tuple    []string
	r        *bufio.Reader
	closed   uint32
	created  time.Time
	byte_in  uint64
	byte_out uint64
	net.Conn
}

func NewConn(c net.Conn, cid uint64) *Conn {
	sourceip, sourceport, _ := net.SplitHostPort(c.RemoteAddr().String())
	targetip, targetport, _ := net.SplitHostPort(c.LocalAddr().String())

	o := &Conn{cid: cid, tuple: []string{sourceip, sourceport, targetip, targetport}, r: bufio.NewReader(c), Conn: c}
	o.created = time.Now().UTC()
	return o
}

// NewTunnelConn is used for yamux streams. The tunnel server writes the
// original remote address as the first line, before any device data. The
// line is consumed here so the reader that saw it keeps the stream.
func NewTunnelConn(c net.Conn, cid uint64) (*Conn, error) {
	r := bufio.NewReader(c)
	raddr, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	sourceip, sourceport, _ := net.SplitHostPort(strings.TrimSpace(raddr))
	o := &Conn{cid: cid, tuple: []string{sourceip, sourceport, "", ""}, r: r, Conn: c}
	o.created = time.Now().UTC()
	return o, nil
}

func (c *Conn) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	atomic.AddUint64(&c.byte_in, uint64(n))
	return n, err
}

func (c *Conn) Write(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	atomic.AddUint64(&c.byte_out, uint64(n))
	return n, err
}

func (c *Conn) Close() error {
	atomic.StoreUint32(&c.closed, 1)
	return c.Conn.Close()
}

func (c *Conn) Closed() bool {
	return atomic.LoadUint32(&c.closed) == 1
}

func (c *Conn) Cid() uint64 {
	return c.cid
}

func (c *Conn) Created() time.Time {
	return c.created
}

func (c *Conn) RemoteHost() string {
	return c.tuple[0] + ":" + c.tuple[1]
}

func (c *Conn) Stat() (byte_in uint64, byte_out uint64) {
	return atomic.LoadUint64(&c.byte_in), atomic.LoadUint64(&c.byte_out)
}

func (c *Conn) MarshalObject(e *log.Entry) {
	e.Strs("socket", c.tuple).Uint64("cid", c.cid)
}
