package hub

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/brawl-relay/internal/matchmaker"
	"github.com/DoyleJ11/brawl-relay/internal/metrics"
	"github.com/DoyleJ11/brawl-relay/internal/registry"
	"github.com/DoyleJ11/brawl-relay/internal/relay"
	"github.com/DoyleJ11/brawl-relay/internal/room"
	"github.com/DoyleJ11/brawl-relay/internal/supervisor"
)

var ErrHubClosed = errors.New("hub closed")

type HubMsg interface{ isHubMsg() }

// Connect registers a transport connection. The hub owns Outbox from here on
// and closes it when the connection is cleaned up or dropped as too slow.
type Connect struct {
	ConnID string
	Outbox chan []byte
}

type Inbound struct {
	ConnID string
	Data   []byte
}

// Disconnect may be sent any number of times for a connection; only the
// first one does anything.
type Disconnect struct {
	ConnID string
	Err    error
}

type GetRoom struct {
	RoomID string
	Reply  chan *room.Snapshot // nil when the room does not exist
}

type GetStats struct {
	Reply chan supervisor.Counts
}

// Sweep runs the empty-room sweep now. Reply may be nil.
type Sweep struct {
	Reply chan int
}

type ShutdownHub struct{}

func (Connect) isHubMsg()     {}
func (Inbound) isHubMsg()     {}
func (Disconnect) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (GetStats) isHubMsg()    {}
func (Sweep) isHubMsg()       {}
func (ShutdownHub) isHubMsg() {}

// Hub is the single owner of every connection, room and the waiting pool.
// Messages are handled one at a time, to completion, on the loop goroutine.
type Hub struct {
	inbox chan HubMsg

	store *room.Store
	reg   *registry.Registry
	mm    *matchmaker.Matchmaker
	relay *relay.Engine
	sup   *supervisor.Supervisor

	log        *zap.Logger
	metrics    *metrics.Metrics
	sweepEvery time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*options)

type options struct {
	sweepEvery  time.Duration
	inboxSize   int
	roomOptions []room.Option
}

// WithSweepInterval sets how often empty rooms are swept. Zero disables the
// ticker; Sweep messages still work.
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) { o.sweepEvery = d }
}

func WithInboxSize(n int) Option {
	return func(o *options) { o.inboxSize = n }
}

func WithRoomOptions(opts ...room.Option) Option {
	return func(o *options) { o.roomOptions = append(o.roomOptions, opts...) }
}

func NewHub(parent context.Context, log *zap.Logger, m *metrics.Metrics, opts ...Option) *Hub {
	o := options{sweepEvery: 30 * time.Second, inboxSize: 256}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(parent)
	store := room.NewStore(o.roomOptions...)
	reg := registry.New()
	mm := matchmaker.New(store, reg)
	rl := relay.New(store, reg)

	h := &Hub{
		inbox:      make(chan HubMsg, o.inboxSize),
		store:      store,
		reg:        reg,
		mm:         mm,
		relay:      rl,
		sup:        supervisor.New(store, reg, mm, rl, log, m),
		log:        log,
		metrics:    m,
		sweepEvery: o.sweepEvery,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Send delivers msg to the hub unless ctx ends or the hub has shut down.
func (h *Hub) Send(ctx context.Context, msg HubMsg) error {
	select {
	case h.inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.ctx.Done():
		return ErrHubClosed
	}
}

// Done is closed once the loop has exited and every outbox is closed.
func (h *Hub) Done() <-chan struct{} { return h.done }

// Stopping is closed as soon as shutdown begins, before any outbox is closed
// by it. An outbox that closes while Stopping is still open was dropped as a
// slow consumer.
func (h *Hub) Stopping() <-chan struct{} { return h.ctx.Done() }

// Close stops the hub and waits for the loop to finish.
func (h *Hub) Close() {
	h.cancel()
	<-h.done
}

func (h *Hub) loop() {
	defer close(h.done)

	var sweep <-chan time.Time
	if h.sweepEvery > 0 {
		ticker := time.NewTicker(h.sweepEvery)
		defer ticker.Stop()
		sweep = ticker.C
	}

	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case <-sweep:
			h.sup.Sweep()

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Connect:
				h.reg.Register(msg.ConnID, msg.Outbox)
				h.sup.Observe()
				h.log.Debug("connection registered", zap.String("conn_id", msg.ConnID))

			case Inbound:
				h.handleInbound(msg.ConnID, msg.Data)

			case Disconnect:
				if h.sup.Disconnect(msg.ConnID, msg.Err) {
					h.sup.Observe()
				}

			case GetRoom:
				var snap *room.Snapshot
				if r, ok := h.store.GetRoom(msg.RoomID); ok {
					s := r.Snapshot()
					snap = &s
				}
				msg.Reply <- snap

			case GetStats:
				msg.Reply <- h.sup.Observe()

			case Sweep:
				n := h.sup.Sweep()
				if msg.Reply != nil {
					msg.Reply <- n
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	c := h.sup.Observe()
	h.cancel()
	h.reg.Close()
	h.log.Info("hub stopped",
		zap.Int("connections", c.Connections),
		zap.Int("rooms", c.Rooms),
	)
}
