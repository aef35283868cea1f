package publish

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/phuslu/log"
)

const (
	MQTT_CONNECTED    string = "mqtt_connected"
	MQTT_CONNECTLOST  string = "mqtt_connection_lost"
	MQTT_PUBLISH_FAIL string = "mqtt_publish_failed"
)

type MQTTConfig struct {
	Broker   string
	Username string
	Password string
	ClientID string
	Prefix   string
	QOS      byte
	Retained bool
}

// MQTTSink publishes telemetry to one retained topic per device,
// <prefix>/<imei>/state. The paho client reconnects on its own, publishes
// while disconnected fail and are dropped.
type MQTTSink struct {
	m      mqtt.Client
	log    log.Logger
	prefix string
	qos    byte
	ret    bool
}

func NewMQTTSink(conf *MQTTConfig, logger log.Logger) *MQTTSink {
	s := &MQTTSink{prefix: conf.Prefix, qos: conf.QOS, ret: conf.Retained}
	s.log = logger
	s.log.Context = log.NewContext(nil).Str("module", "mqtt").Value()
	mqtt.ERROR = pahoLogger{s.log.Error}
	mqtt.CRITICAL = pahoLogger{s.log.Error}
	mqtt.WARN = pahoLogger{s.log.Warn}

	cid := conf.ClientID
	if cid == "" {
		u, err := uuid.NewRandom()
		if err != nil {
			panic(err)
		}
		cid = "eelink2mqtt-" + u.String()[:8]
	}
	opt := mqtt.NewClientOptions().
		AddBroker(conf.Broker).
		SetClientID(cid).
		SetUsername(conf.Username).
		SetPassword(conf.Password).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(s.onConnect).
		SetConnectionLostHandler(s.onConnectionLost)
	s.m = mqtt.NewClient(opt)
	return s
}

// Connect starts the client. With connect-retry set it keeps trying in the
// background until the broker accepts.
func (s *MQTTSink) Connect() {
	t := s.m.Connect()
	if t.Error() != nil {
		s.log.Error().Err(t.Error()).Msg("mqtt connect")
	}
}

func (s *MQTTSink) Close() {
	s.m.Disconnect(250)
}

func (s *MQTTSink) Publish(imei string, payload []byte) error {
	t := s.m.Publish(s.prefix+"/"+imei+"/state", s.qos, s.ret, payload)
	if err := t.Error(); err != nil {
		s.log.Warn().Str("event", MQTT_PUBLISH_FAIL).Str("imei", imei).Err(err).Msg("")
		return err
	}
	return nil
}

func (s *MQTTSink) onConnect(c mqtt.Client) {
	s.log.Info().Str("event", MQTT_CONNECTED).Msg("connected to broker")
}

func (s *MQTTSink) onConnectionLost(c mqtt.Client, err error) {
	s.log.Warn().Str("event", MQTT_CONNECTLOST).Err(err).Msg("connection to broker lost")
}

// pahoLogger feeds the paho client's package level loggers into ours.
type pahoLogger struct {
	entry func() *log.Entry
}

func (p pahoLogger) Println(v ...interface{}) {
	p.entry().Msg(fmt.Sprint(v...))
}

func (p pahoLogger) Printf(format string, v ...interface{}) {
	p.entry().Msgf(format, v...)
}
