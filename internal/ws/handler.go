package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/brawl-relay/internal/hub"
)

type Options struct {
	OutboxSize     int
	WriteTimeout   time.Duration
	// IdleTimeout bounds each read. Zero keeps a silent connection open until
	// the transport itself goes away.
	IdleTimeout    time.Duration
	OriginPatterns []string
}

func Handler(h *hub.Hub, log *zap.Logger, opts Options) http.HandlerFunc {
	if opts.OutboxSize <= 0 {
		opts.OutboxSize = 32
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.CloseNow()

		connID := uuid.NewString()
		log := log.With(zap.String("conn_id", connID))

		// The hub owns out once Connect is delivered and closes it on cleanup.
		out := make(chan []byte, opts.OutboxSize)
		if err := h.Send(r.Context(), hub.Connect{ConnID: connID, Outbox: out}); err != nil {
			conn.Close(websocket.StatusTryAgainLater, "server shutting down")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine
		go func() {
			defer cancel()
			for payload := range out {
				wctx, wcancel := context.WithTimeout(ctx, opts.WriteTimeout)
				err := conn.Write(wctx, websocket.MessageText, payload)
				wcancel()
				if err != nil {
					log.Debug("write failed", zap.Error(err))
					return
				}
			}
			select {
			case <-h.Stopping():
				conn.Close(websocket.StatusGoingAway, "server shutting down")
			default:
				conn.Close(websocket.StatusPolicyViolation, "too slow")
			}
		}()

		cause := readLoop(ctx, conn, h, connID, opts.IdleTimeout)

		// Must reach the hub however long it is busy: only the hub closes out
		// and frees the seat. Send still gives up once the hub stops.
		if err := h.Send(context.Background(), hub.Disconnect{ConnID: connID, Err: cause}); err != nil {
			log.Debug("disconnect after hub stopped", zap.Error(err))
		}
		if cause != nil {
			log.Info("connection lost", zap.Error(cause))
		}
	}
}

// readLoop pumps frames into the hub until the socket goes away. It returns
// nil for an orderly close and the transport error otherwise.
func readLoop(ctx context.Context, conn *websocket.Conn, h *hub.Hub, connID string, idle time.Duration) error {
	for {
		rctx, rcancel := ctx, context.CancelFunc(func() {})
		if idle > 0 {
			rctx, rcancel = context.WithTimeout(ctx, idle)
		}
		_, data, err := conn.Read(rctx)
		rcancel()
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		if err := h.Send(ctx, hub.Inbound{ConnID: connID, Data: data}); err != nil {
			return err
		}
	}
}
