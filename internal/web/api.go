// Package web serves the monitoring api and the live telemetry stream.
package web

import (
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/phuslu/log"
	"nuha.dev/eelink/internal/device/eelink"
	"nuha.dev/eelink/internal/server"
	"nuha.dev/eelink/internal/sublist"
	"nuha.dev/eelink/internal/util"
	"nuha.dev/eelink/internal/web/webstream"
)

type ApiConfig struct {
	ListenAddr string
}

type Api struct {
	r       chi.Router
	s       *http.Server
	config  *ApiConfig
	log     log.Logger
	gsrv    *server.Server
	started time.Time
}

// SessionInfo is one connected device as reported by /api/sessions.
type SessionInfo struct {
	Cid       uint64                `json:"cid"`
	Imei      string                `json:"imei,omitempty"`
	Remote    string                `json:"remote"`
	Connected time.Time             `json:"connected"`
	BytesIn   uint64                `json:"bytes_in"`
	BytesOut  uint64                `json:"bytes_out"`
	Frames    uint64                `json:"frames"`
	Events    uint64                `json:"events"`
	Status    uint16                `json:"status"`
	Flags     map[string]bool       `json:"status_flags,omitempty"`
	Location  *eelink.LocationEvent `json:"location,omitempty"`
}

func NewApi(gsrv *server.Server, hub *sublist.SublistMap, config *ApiConfig) *Api {
	api := &Api{config: config}
	api.log = log.DefaultLogger
	api.log.Context = log.NewContext(nil).Str("module", "api-server").Value()
	api.gsrv = gsrv
	api.started = time.Now().UTC()
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(middleware.Recoverer)
	r.Get("/health", api.health)
	r.Get("/api/sessions", api.sessions)
	r.Get("/api/stats", api.stats)
	r.Get("/stream", webstream.NewHandler(hub).Serve)
	api.r = r
	api.s = &http.Server{
		Addr:           config.ListenAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	return api
}

func (api *Api) Run() {
	api.log.Info().Msgf("starting api-server on : %s", api.s.Addr)
	err := api.s.ListenAndServe()
	if err != nil {
		api.log.Error().Err(err).Msg("")
		panic(err)
	}
}

func (api *Api) health(w http.ResponseWriter, r *http.Request) {
	util.JsonWrite(w, struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}{Status: "ok", Uptime: time.Since(api.started).String()})
}

func (api *Api) stats(w http.ResponseWriter, r *http.Request) {
	util.JsonWrite(w, api.gsrv.Stat().Snapshot())
}

func (api *Api) sessions(w http.ResponseWriter, r *http.Request) {
	devs := api.gsrv.Sessions()
	out := make([]SessionInfo, 0, len(devs))
	for _, dev := range devs {
		out = append(out, newSessionInfo(dev))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cid < out[j].Cid })
	util.JsonWrite(w, out)
}

func newSessionInfo(dev *eelink.Eelink) SessionInfo {
	c := dev.Conn()
	in, out := c.Stat()
	frames, events := dev.Counters()
	si := SessionInfo{
		Cid:       c.Cid(),
		Imei:      dev.IMEI(),
		Remote:    c.RemoteHost(),
		Connected: c.Created(),
		BytesIn:   in,
		BytesOut:  out,
		Frames:    frames,
		Events:    events,
	}
	st, st_time := dev.LastStatus()
	if !st_time.IsZero() {
		si.Status = st
		si.Flags = eelink.FlagMap(st)
	}
	rec, rec_time := dev.LastRecord()
	if !rec_time.IsZero() {
		ev := eelink.NewLocationEvent(&rec)
		si.Location = &ev
	}
	return si
}
