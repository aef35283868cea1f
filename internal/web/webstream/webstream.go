// Package webstream feeds device events to websocket clients. Clients pick
// devices with ADDSUB/DELSUB messages carrying comma separated imeis.
package webstream

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/phuslu/log"
	"nhooyr.io/websocket"
	"nuha.dev/eelink/internal/sublist"
)

const (
	cmdAdd = "ADDSUB "
	cmdDel = "DELSUB "

	maxSubs   = 100
	maxBuffer = 32
)

type Handler struct {
	log log.Logger
	hub *sublist.SublistMap
}

func NewHandler(hub *sublist.SublistMap) *Handler {
	o := &Handler{hub: hub}
	o.log = log.DefaultLogger
	o.log.Context = log.NewContext(nil).Str("module", "webstream").Value()
	return o
}

func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("error while upgrading websocket")
		return
	}
	wc := &Client{srv: h, c: c, log: h.log}
	wc.buf = make([][]byte, 0, 10)
	wc.sublist = make(map[string]*sublist.Sublist)
	wc.wg.Add(1)
	go wc.writeLoop()
	wc.wg.Add(1)
	go wc.readLoop()
	wc.wg.Wait()
	for _, l := range wc.sublist {
		l.Unsubscribe(wc)
	}
	c.Close(websocket.StatusNormalClosure, "")
	h.log.Info().Uint64("pushed", wc.pushed).Uint64("skipped", wc.skipped).Msg("stream client gone")
}

// Client is one websocket subscriber. Events are buffered and written by
// writeLoop, a slow client drops events instead of blocking device fanout.
type Client struct {
	lock    sync.Mutex
	wg      sync.WaitGroup
	srv     *Handler
	c       *websocket.Conn
	log     log.Logger
	closed  bool
	err     error
	buf     [][]byte
	pushed  uint64
	skipped uint64
	sublist map[string]*sublist.Sublist
}

func (wc *Client) closeErr(err error) {
	wc.closed = true
	wc.err = err
}

func (wc *Client) readLoop() {
	defer wc.wg.Done()
	for {
		_, msg, err := wc.c.Read(context.Background())
		if err != nil {
			wc.lock.Lock()
			wc.closeErr(err)
			wc.lock.Unlock()
			return
		}
		m := string(msg)
		switch {
		case strings.HasPrefix(m, cmdAdd):
			imeis := strings.Split(m[len(cmdAdd):], ",")
			wc.log.Debug().Strs("addsub", imeis).Msg("add subscription")
			for _, imei := range imeis {
				imei = strings.TrimSpace(imei)
				if imei == "" {
					continue
				}
				if _, ok := wc.sublist[imei]; ok {
					continue
				}
				if len(wc.sublist) >= maxSubs {
					wc.log.Warn().Msg("subscription limit reached")
					break
				}
				l, _ := wc.srv.hub.GetSublist(imei, true)
				l.Subscribe(wc)
				wc.sublist[imei] = l
			}
		case strings.HasPrefix(m, cmdDel):
			imeis := strings.Split(m[len(cmdDel):], ",")
			wc.log.Debug().Strs("delsub", imeis).Msg("delete subscription")
			for _, imei := range imeis {
				imei = strings.TrimSpace(imei)
				if l, ok := wc.sublist[imei]; ok {
					l.Unsubscribe(wc)
					delete(wc.sublist, imei)
				}
			}
		}
	}
}

func (wc *Client) writeLoop() {
	defer wc.wg.Done()
	for {
		wc.lock.Lock()
		if wc.closed {
			wc.lock.Unlock()
			return
		}
		l := len(wc.buf)
		for _, d := range wc.buf {
			err := wc.c.Write(context.Background(), websocket.MessageText, d)
			if err != nil {
				wc.log.Error().Err(err).Msg("error while writing to connection")
				wc.closeErr(err)
				wc.lock.Unlock()
				return
			}
		}
		wc.buf = wc.buf[:0]
		wc.lock.Unlock()
		if l == 0 {
			time.Sleep(5 * time.Second)
		} else {
			time.Sleep(time.Second)
		}
	}
}

func (wc *Client) Push(imei string, data []byte) bool {
	wc.lock.Lock()
	if wc.closed {
		wc.lock.Unlock()
		return true
	}
	if len(wc.buf) >= maxBuffer {
		wc.skipped++
		wc.lock.Unlock()
		return false
	}
	wc.buf = append(wc.buf, data)
	wc.pushed++
	wc.lock.Unlock()
	return false
}
