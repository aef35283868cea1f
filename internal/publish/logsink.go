package publish

import "github.com/phuslu/log"

// LogSink writes every event to the log, for running without a broker.
type LogSink struct {
	log log.Logger
}

func NewLogSink(logger log.Logger) *LogSink {
	s := &LogSink{}
	s.log = logger
	s.log.Context = log.NewContext(nil).Str("module", "logsink").Value()
	return s
}

func (s *LogSink) Publish(imei string, payload []byte) error {
	s.log.Info().Str("imei", imei).Str("event", string(payload)).Msg("")
	return nil
}
