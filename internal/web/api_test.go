package web

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/phuslu/log"
	"nuha.dev/eelink/internal/conn"
	"nuha.dev/eelink/internal/device/eelink"
	"nuha.dev/eelink/internal/server"
	"nuha.dev/eelink/internal/stat"
	"nuha.dev/eelink/internal/sublist"
)

func newTestApi() *Api {
	gsrv := server.NewServer(nil, &server.ServerConfig{})
	return NewApi(gsrv, sublist.NewSublistMap(), &ApiConfig{ListenAddr: "127.0.0.1:0"})
}

func TestHealth(t *testing.T) {
	api := newTestApi()
	rec := httptest.NewRecorder()
	api.r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	var body struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q", body.Status)
	}
	if body.Uptime == "" {
		t.Error("uptime missing")
	}
}

func TestSessionsEmpty(t *testing.T) {
	api := newTestApi()
	rec := httptest.NewRecorder()
	api.r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %q, want empty array", got)
	}
}

func TestStatsEmpty(t *testing.T) {
	api := newTestApi()
	rec := httptest.NewRecorder()
	api.r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var snap stat.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Connects != 0 || snap.Disconnects != 0 {
		t.Errorf("fresh server has churn: %+v", snap)
	}
}

func TestSessionInfoFresh(t *testing.T) {
	p1, p2 := net.Pipe()
	defer p1.Close()
	defer p2.Close()
	dev := eelink.NewEelink(conn.NewConn(p1, 7), nil, log.DefaultLogger, nil)
	si := newSessionInfo(dev)
	if si.Cid != 7 {
		t.Errorf("cid = %d", si.Cid)
	}
	if si.Imei != "" || si.Frames != 0 || si.Events != 0 {
		t.Errorf("fresh session not empty: %+v", si)
	}
	if si.Flags != nil || si.Location != nil {
		t.Error("fresh session has status or location")
	}
	d, err := json.Marshal(si)
	if err != nil {
		t.Fatal(err)
	}
	s := string(d)
	if strings.Contains(s, "imei") || strings.Contains(s, "status_flags") || strings.Contains(s, "location") {
		t.Errorf("omitempty fields leaked: %s", s)
	}
}
