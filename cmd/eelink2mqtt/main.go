package main

import (
	"flag"

	"github.com/phuslu/log"
	"nuha.dev/eelink/internal/config"
	"nuha.dev/eelink/internal/device/eelink"
	"nuha.dev/eelink/internal/publish"
	"nuha.dev/eelink/internal/server"
	"nuha.dev/eelink/internal/sublist"
	"nuha.dev/eelink/internal/util"
	"nuha.dev/eelink/internal/web"
)

func main() {
	confPath := flag.String("config", "", "path to yaml config file, empty runs on defaults and EELINK_ env")
	flag.Parse()

	conf, err := config.Load(*confPath)
	util.Pan1c(err)

	log.DefaultLogger.Level = log.ParseLevel(conf.LogLevel)
	logger := log.DefaultLogger
	logger.Context = log.NewContext(nil).Str("module", "main").Value()

	var backend publish.Sink
	switch conf.Publish.Kind {
	case "mqtt":
		m := publish.NewMQTTSink(&publish.MQTTConfig{
			Broker:   conf.Publish.MQTT.Broker,
			Username: conf.Publish.MQTT.Username,
			Password: conf.Publish.MQTT.Password,
			ClientID: conf.Publish.MQTT.ClientID,
			Prefix:   conf.Publish.MQTT.Prefix,
			QOS:      conf.Publish.MQTT.QOS,
			Retained: conf.Publish.MQTT.Retained,
		}, log.DefaultLogger)
		m.Connect()
		defer m.Close()
		backend = m
	case "nats":
		n, err := publish.NewNATSSink(&publish.NATSConfig{
			URL:      conf.Publish.NATS.URL,
			Name:     conf.Publish.NATS.Name,
			Username: conf.Publish.NATS.Username,
			Password: conf.Publish.NATS.Password,
			Prefix:   conf.Publish.NATS.Prefix,
		}, log.DefaultLogger)
		util.Pan1c(err)
		defer n.Close()
		backend = n
	case "log":
		backend = publish.NewLogSink(log.DefaultLogger)
	}

	hub := sublist.NewSublistMap()
	sink := publish.Multi{backend, hub}

	srv := server.NewServer(sink, &server.ServerConfig{
		ListenerAddr:   conf.Listen.Addr,
		TunnelAddr:     conf.Listen.TunnelAddr,
		TunnelToken:    conf.Listen.TunnelToken,
		DeviceLogLevel: conf.Listen.DeviceLogLevel,
		Device:         eelink.Config{StatusFlags: conf.Publish.StatusFlags},
	})
	srv.Run()
	logger.Info().Str("listen", conf.Listen.Addr).Str("publish", conf.Publish.Kind).Msg("eelink bridge started")

	if conf.Web.Addr != "" {
		api := web.NewApi(srv, hub, &web.ApiConfig{ListenAddr: conf.Web.Addr})
		api.Run()
	} else {
		select {}
	}
}
