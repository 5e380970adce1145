/*************************************************************************
 * Copyright 2026 Cyber Group 20. All rights reserved.
 * Contact: <rootxtrem3@users.noreply.github.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package hub

import (
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/rootxtrem3/Cyber-Group-20/capture"
	"github.com/rootxtrem3/Cyber-Group-20/log"
	"github.com/rootxtrem3/Cyber-Group-20/version"
)

const (
	writeWait      = 10 * time.Second
	statsInterval  = 10 * time.Second
	maxClientFrame = 4096
)

// message type discriminators on the wire
const (
	msgWelcome     = `welcome`
	msgStats       = `stats`
	msgStatsUpdate = `stats_update`
	msgNewEvent    = `new_event`
	msgPing        = `ping`
	msgPong        = `pong`
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// the dashboard is whatever origin the operator parked it on
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wireMsg struct {
	Type         string                  `json:"type"`
	Version      string                  `json:"version,omitempty"`
	SubscriberID uint64                  `json:"subscriber_id,omitempty"`
	Stats        interface{}             `json:"stats,omitempty"`
	Event        *capture.CanonicalEvent `json:"event,omitempty"`
}

type clientMsg struct {
	Type string `json:"type"`
}

// ServeWS upgrades the request and runs the subscriber until the peer
// leaves, the transport fails its send budget, or the hub evicts it.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.lgr.Warn("websocket upgrade failed",
			log.KV("remote", r.RemoteAddr), log.KVErr(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxClientFrame)

	sub := h.Register()
	defer h.Unregister(sub)
	h.lgr.Info("subscriber connected",
		log.KV("subscriber", sub.ID()), log.KV("remote", r.RemoteAddr))

	if err = h.writeMsg(conn, wireMsg{
		Type:         msgWelcome,
		Version:      version.String(),
		SubscriberID: sub.ID(),
	}); err != nil {
		return
	}
	if err = h.writeMsg(conn, wireMsg{Type: msgStats, Stats: h.Stats()}); err != nil {
		return
	}

	// reader goroutine: answer pings, count junk, flag peer departure
	pongs := make(chan struct{}, 4)
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			_, msg, rerr := conn.ReadMessage()
			if rerr != nil {
				return
			}
			var cm clientMsg
			if json.Unmarshal(msg, &cm) != nil || cm.Type != msgPing {
				h.badMsgs.Add(1)
				continue
			}
			select {
			case pongs <- struct{}{}:
			default:
			}
		}
	}()

	tckr := time.NewTicker(statsInterval)
	defer tckr.Stop()
	for {
		select {
		case ev, ok := <-sub.C():
			if !ok {
				// evicted or hub shut down
				return
			}
			if err = h.writeMsg(conn, wireMsg{Type: msgNewEvent, Event: ev}); err != nil {
				if h.SendFailed(sub) {
					h.lgr.Warn("subscriber send budget spent",
						log.KV("subscriber", sub.ID()), log.KVErr(err))
					return
				}
			}
		case <-pongs:
			if err = h.writeMsg(conn, wireMsg{Type: msgPong}); err != nil {
				if h.SendFailed(sub) {
					return
				}
			}
		case <-tckr.C:
			if err = h.writeMsg(conn, wireMsg{Type: msgStatsUpdate, Stats: h.Stats()}); err != nil {
				if h.SendFailed(sub) {
					return
				}
			}
		case <-gone:
			h.lgr.Info("subscriber disconnected", log.KV("subscriber", sub.ID()))
			return
		}
	}
}

func (h *Hub) writeMsg(conn *websocket.Conn, msg wireMsg) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, b)
}

// BadMessages reports unparseable or unknown client frames.
func (h *Hub) BadMessages() uint64 {
	return h.badMsgs.Load()
}
