package localapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"shawarma-pos/internal/domain"
)

const eventBuffer = 64

type streamEvent struct {
	name string
	data any
}

// Events streams sync and connectivity changes as Server-Sent Events.
// A slow client loses events instead of blocking the sync engine.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch := make(chan streamEvent, eventBuffer)
	push := func(ev streamEvent) {
		select {
		case ch <- ev:
		default:
		}
	}
	unsubSync := h.sync.Subscribe(func(ev domain.SyncEvent) { push(streamEvent{name: "sync", data: ev}) })
	defer unsubSync()
	unsubNet := h.net.Subscribe(func(online bool) { push(streamEvent{name: "network", data: map[string]bool{"online": online}}) })
	defer unsubNet()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// первым делом текущее состояние
	n, _ := h.sync.PendingCount(r.Context())
	writeEvent(w, streamEvent{name: "status", data: statusResponse{Online: h.net.Status(), Syncing: h.sync.IsSyncing(), Pending: n}})
	flusher.Flush()

	tick := time.NewTicker(h.heartbeat)
	defer tick.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			if err := writeEvent(w, ev); err != nil {
				return
			}
			flusher.Flush()
		case <-tick.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, ev streamEvent) error {
	b, err := json.Marshal(ev.data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, b)
	return err
}
