// Package server accepts tracker connections, directly or through a yamux
// tunnel, and runs one eelink session per connection.
package server

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/yamux"
	"github.com/phuslu/log"
	proxyproto "github.com/pires/go-proxyproto"
	"nuha.dev/eelink/internal/conn"
	"nuha.dev/eelink/internal/device/eelink"
	"nuha.dev/eelink/internal/publish"
	"nuha.dev/eelink/internal/stat"
)

const (
	NEW_CONNECTION  string = "new_connection"
	TUNNEL_ACCEPTED string = "tunnel_accepted"
	TUNNEL_REJECTED string = "tunnel_rejected"
)

type ServerConfig struct {
	ListenerAddr   string
	TunnelAddr     string
	TunnelToken    string
	DeviceLogLevel string
	Device         eelink.Config
}

type session_list struct {
	mu   sync.Mutex
	list map[uint64]*eelink.Eelink
}

type Server struct {
	log         log.Logger
	config      *ServerConfig
	sink        publish.Sink
	stat        *stat.Stat
	cid_counter uint64
	session_list
}

func NewServer(sink publish.Sink, config *ServerConfig) *Server {
	s := &Server{}
	s.log = log.DefaultLogger
	s.log.Context = log.NewContext(nil).Str("module", "server").Value()
	s.config = config
	s.sink = sink
	s.stat = stat.NewStat()
	s.session_list.list = make(map[uint64]*eelink.Eelink)
	return s
}

// Stat exposes connection churn counters for the monitoring api.
func (s *Server) Stat() *stat.Stat {
	return s.stat
}

func (s *Server) Run() {
	if s.config.ListenerAddr != "" {
		go s.runListener()
	}
	if s.config.TunnelAddr != "" {
		go s.runMuxListener()
	}
}

// Sessions snapshots the connected devices for the monitoring api.
func (s *Server) Sessions() []*eelink.Eelink {
	s.session_list.mu.Lock()
	defer s.session_list.mu.Unlock()
	out := make([]*eelink.Eelink, 0, len(s.session_list.list))
	for _, dev := range s.session_list.list {
		out = append(out, dev)
	}
	return out
}

func (s *Server) runListener() {
	s.log.Info().Msgf("starting eelink server on %s", s.config.ListenerAddr)
	ln, err := net.Listen("tcp", s.config.ListenerAddr)
	if err != nil {
		s.log.Error().Err(err).Msg("unable to listen")
		return
	}
	pln := &proxyproto.Listener{Listener: ln}
	for {
		c, err := pln.Accept()
		if err != nil {
			s.log.Error().Err(err).Msg("failed to accept new connection")
			pln.Close()
			return
		}
		cid := atomic.AddUint64(&s.cid_counter, 1)
		wc := conn.NewConn(c, cid)
		s.log.Info().Str("event", NEW_CONNECTION).EmbedObject(wc).Msg("")
		go s.serve(wc)
	}
}

func (s *Server) runMuxListener() {
	runLoop := func() {
		s.log.Info().Msgf("dialling tunnel %s", s.config.TunnelAddr)
		yconn, err := net.Dial("tcp", s.config.TunnelAddr)
		if err != nil {
			s.log.Error().Err(err).Msg("unable to dial tunnel server")
			return
		}
		_, err = yconn.Write([]byte(s.config.TunnelToken))
		if err != nil {
			yconn.Close()
			s.log.Error().Err(err).Msg("unable to authenticate with tunnel server")
			return
		}
		status := []byte{0}
		_, err = yconn.Read(status)
		if err != nil {
			yconn.Close()
			s.log.Error().Err(err).Msg("unable to authenticate with tunnel server")
			return
		}
		if status[0] != '+' {
			yconn.Close()
			s.log.Error().Str("event", TUNNEL_REJECTED).Msg("tunnel rejected token")
			return
		}
		s.log.Info().Str("event", TUNNEL_ACCEPTED).Msg("tunnel accepted")
		session, err := yamux.Client(yconn, nil)
		if err != nil {
			s.log.Error().Err(err).Msg("")
			return
		}
		for {
			tconn, err := session.Accept()
			if err != nil {
				s.log.Error().Err(err).Msg("tunnel session ended")
				return
			}
			cid := atomic.AddUint64(&s.cid_counter, 1)
			go func() {
				wc, err := conn.NewTunnelConn(tconn, cid)
				if err != nil {
					s.log.Error().Err(err).Msg("no remote address on tunnel stream")
					tconn.Close()
					return
				}
				s.log.Info().Str("event", NEW_CONNECTION).EmbedObject(wc).Msg("")
				s.serve(wc)
			}()
		}
	}

	for {
		t0 := time.Now()
		runLoop()
		if time.Since(t0) > 10*time.Second {
			time.Sleep(1 * time.Second)
		} else {
			time.Sleep(5 * time.Second)
		}
	}
}

// serve blocks for the lifetime of one device session.
func (s *Server) serve(c *conn.Conn) {
	logger := log.DefaultLogger
	if s.config.DeviceLogLevel != "" {
		logger.Level = log.ParseLevel(s.config.DeviceLogLevel)
	}
	dev := eelink.NewEelink(c, s.sink, logger, &s.config.Device)
	s.saveSession(c.Cid(), dev)
	s.stat.ConnectEv(time.Now().UTC())
	dev.Run()
	s.stat.DisconnectEv(time.Now().UTC())
	s.delSession(c.Cid())
}

func (s *Server) saveSession(cid uint64, dev *eelink.Eelink) {
	s.session_list.mu.Lock()
	s.session_list.list[cid] = dev
	s.session_list.mu.Unlock()
}

func (s *Server) delSession(cid uint64) {
	s.session_list.mu.Lock()
	delete(s.session_list.list, cid)
	s.session_list.mu.Unlock()
}
