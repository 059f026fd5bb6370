package transport

import (
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
)

const heartbeatInterval = 15 * time.Second

// handleEvents streams state and sync changes as server-sent events. The
// current state is sent first so a fresh client can render immediately.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported", nil)
		return
	}

	states, stopStates := s.station.SubscribeState()
	defer stopStates()
	syncs, stopSyncs := s.station.SubscribeSync()
	defer stopSyncs()

	w.Header().Set("Content-Type", sse.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := sse.Encode(w, sse.Event{Event: "state", Data: s.station.Snapshot()}); err != nil {
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		var ev sse.Event
		select {
		case <-r.Context().Done():
			return
		case snap, ok := <-states:
			if !ok {
				return
			}
			ev = sse.Event{Event: "state", Data: snap}
		case status, ok := <-syncs:
			if !ok {
				syncs = nil
				continue
			}
			ev = sse.Event{Event: "sync", Data: status}
		case <-heartbeat.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()
			continue
		}
		if err := sse.Encode(w, ev); err != nil {
			s.logger.DebugContext(r.Context(), "event stream closed", "error", err)
			return
		}
		flusher.Flush()
	}
}
