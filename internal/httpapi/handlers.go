package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/DoyleJ11/brawl-relay/internal/hub"
	"github.com/DoyleJ11/brawl-relay/internal/room"
	"github.com/DoyleJ11/brawl-relay/internal/supervisor"
)

const hubTimeout = 2 * time.Second

// ask sends msg to the hub and waits for its reply on reply.
func ask[T any](ctx context.Context, h *hub.Hub, msg hub.HubMsg, reply <-chan T) (T, error) {
	var zero T
	ctx, cancel := context.WithTimeout(ctx, hubTimeout)
	defer cancel()

	if err := h.Send(ctx, msg); err != nil {
		return zero, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-h.Done():
		return zero, hub.ErrHubClosed
	}
}

func Stats(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan supervisor.Counts, 1)
		counts, err := ask(r.Context(), h, hub.GetStats{Reply: reply}, reply)
		if err != nil {
			hubUnavailable(w, err)
			return
		}
		writeJSON(w, http.StatusOK, counts)
	}
}

func Room(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan *room.Snapshot, 1)
		snap, err := ask(r.Context(), h, hub.GetRoom{RoomID: chi.URLParam(r, "roomID"), Reply: reply}, reply)
		if err != nil {
			hubUnavailable(w, err)
			return
		}
		if snap == nil {
			writeJSON(w, http.StatusNotFound, struct {
				Error string `json:"error"`
			}{Error: "Room not found"})
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func hubUnavailable(w http.ResponseWriter, err error) {
	status := http.StatusServiceUnavailable
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
