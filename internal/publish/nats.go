package publish

import (
	"time"

	"github.com/nats-io/nats.go"
	"github.com/phuslu/log"
)

const (
	NATS_DISCONNECTED string = "nats_disconnected"
	NATS_RECONNECTED  string = "nats_reconnected"
)

type NATSConfig struct {
	URL      string
	Name     string
	Username string
	Password string
	Prefix   string
}

// NATSSink publishes telemetry on <prefix>.<imei>.state subjects.
type NATSSink struct {
	nc     *nats.Conn
	log    log.Logger
	prefix string
}

func NewNATSSink(conf *NATSConfig, logger log.Logger) (*NATSSink, error) {
	s := &NATSSink{prefix: conf.Prefix}
	s.log = logger
	s.log.Context = log.NewContext(nil).Str("module", "nats").Value()
	opts := []nats.Option{
		nats.Name(conf.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			s.log.Warn().Str("event", NATS_DISCONNECTED).Err(err).Msg("")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			s.log.Info().Str("event", NATS_RECONNECTED).Str("url", nc.ConnectedUrl()).Msg("")
		}),
	}
	if conf.Username != "" {
		opts = append(opts, nats.UserInfo(conf.Username, conf.Password))
	}
	nc, err := nats.Connect(conf.URL, opts...)
	if err != nil {
		return nil, err
	}
	s.nc = nc
	return s, nil
}

func (s *NATSSink) Publish(imei string, payload []byte) error {
	return s.nc.Publish(s.prefix+"."+imei+".state", payload)
}

func (s *NATSSink) Close() {
	s.nc.Drain()
}
