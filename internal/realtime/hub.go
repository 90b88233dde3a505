package realtime

import (
	"context"
	"sort"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"fleetmarket-backend/internal/analytics"
	"fleetmarket-backend/internal/config"
	"fleetmarket-backend/internal/domain"
	"fleetmarket-backend/internal/events"
	"fleetmarket-backend/internal/logger"
)

// Snapshotter computes the current value of a metric family. Satisfied by
// analytics.Service.
type Snapshotter interface {
	Snapshot(ctx context.Context, metric, timeRange string) (interface{}, error)
}

type commandKind int

const (
	cmdSubscribe commandKind = iota
	cmdUnsubscribe
	cmdRequest
	cmdError
)

type command struct {
	kind       commandKind
	client     *Client
	metrics    []string
	metric     string
	timeRange  string
	errMessage string
}

// connState is a connection's registry entry: its identity, subscribed
// metric set, and the per-metric throttle clock. Owned exclusively by the
// hub goroutine.
type connState struct {
	client         *Client
	identity       *domain.Identity
	metrics        map[string]struct{}
	lastDispatched map[string]time.Time
	// closed marks a connection already deregistered, so a later send in the
	// same handler cannot hit a closed channel.
	closed bool
}

// Hub is the subscription registry and broadcast dispatcher in one actor.
// A single goroutine (Run) owns all registry and throttle state; clients,
// timers and domain events talk to it over channels, so a disconnect can
// never race a broadcast and a subscribe can never be lost to a tick.
type Hub struct {
	snapshots Snapshotter
	cfg       config.RealtimeConfig
	now       func() time.Time

	register   chan *Client
	unregister chan *Client
	commands   chan command
	events     chan *domain.BookingEvent

	conns map[string]*connState
}

func NewHub(snapshots Snapshotter, cfg config.RealtimeConfig) *Hub {
	return &Hub{
		snapshots:  snapshots,
		cfg:        cfg,
		now:        time.Now,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		commands:   make(chan command, 16),
		events:     make(chan *domain.BookingEvent, 64),
		conns:      make(map[string]*connState),
	}
}

// Run is the hub's event loop. It returns when the context is cancelled,
// closing every remaining connection.
func (h *Hub) Run(ctx context.Context) {
	fast := time.NewTicker(h.cfg.FastInterval())
	slow := time.NewTicker(h.cfg.SlowInterval())
	defer fast.Stop()
	defer slow.Stop()

	for {
		select {
		case c := <-h.register:
			h.handleRegister(ctx, c)
		case c := <-h.unregister:
			h.handleDisconnect(c)
		case cmd := <-h.commands:
			h.handleCommand(ctx, cmd)
		case e := <-h.events:
			h.handleEvent(e)
		case <-fast.C:
			h.broadcastPeriodic(ctx, analytics.FastMetrics)
		case <-slow.C:
			h.broadcastPeriodic(ctx, analytics.SlowMetrics)
		case <-ctx.Done():
			for id, state := range h.conns {
				delete(h.conns, id)
				close(state.client.send)
			}
			return
		}
	}
}

// ConsumeBookingEvents feeds decoded domain events from the bus into the hub
// loop. Runs on its own goroutine.
func (h *Hub) ConsumeBookingEvents(ctx context.Context, msgs <-chan *message.Message) {
	for msg := range msgs {
		e, err := events.DecodeBookingEvent(msg)
		msg.Ack()
		if err != nil {
			logger.Error("failed to decode booking event", "error", err)
			continue
		}
		select {
		case h.events <- e:
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) handleRegister(ctx context.Context, c *Client) {
	state := &connState{
		client:         c,
		identity:       c.identity,
		metrics:        make(map[string]struct{}),
		lastDispatched: make(map[string]time.Time),
	}
	h.conns[c.id] = state

	logger.Info("realtime connection admitted", "conn_id", c.id, "company", c.identity.CompanyID)

	// Proactive snapshots on connect: available metrics, current KPIs and
	// the geographic picture.
	h.send(state, ServerMessage{
		Type:      MsgConnectionConfirmed,
		Metrics:   analytics.AvailableMetrics(),
		Timestamp: h.now(),
	})
	h.pushSnapshot(ctx, state, analytics.MetricKPIs, "")
	h.pushSnapshot(ctx, state, analytics.MetricGeographic, "")
}

// handleDisconnect removes the registry entry and closes the send channel.
// Safe to call when the entry is already gone.
func (h *Hub) handleDisconnect(c *Client) {
	state, ok := h.conns[c.id]
	if !ok {
		return
	}
	state.closed = true
	delete(h.conns, c.id)
	close(state.client.send)
	logger.Info("realtime connection closed", "conn_id", c.id, "company", state.identity.CompanyID)
}

func (h *Hub) handleCommand(ctx context.Context, cmd command) {
	state, ok := h.conns[cmd.client.id]
	if !ok {
		// Raced a disconnect; the command's connection is already gone.
		return
	}

	switch cmd.kind {
	case cmdSubscribe:
		h.handleSubscribe(ctx, state, cmd.metrics)
	case cmdUnsubscribe:
		h.handleUnsubscribe(state, cmd.metrics)
	case cmdRequest:
		if !analytics.IsKnownMetric(cmd.metric) {
			h.sendError(state, "unknown metric: "+cmd.metric)
			return
		}
		h.pushSnapshot(ctx, state, cmd.metric, cmd.timeRange)
	case cmdError:
		h.sendError(state, cmd.errMessage)
	}
}

// handleSubscribe unions the requested metrics into the connection's set and
// synchronously pushes current values for the newly added metrics only, so a
// late-joining metric does not re-send data the client already has.
func (h *Hub) handleSubscribe(ctx context.Context, state *connState, metrics []string) {
	var added []string
	for _, m := range metrics {
		if !analytics.IsKnownMetric(m) {
			h.sendError(state, "unknown metric: "+m)
			continue
		}
		if _, exists := state.metrics[m]; exists {
			continue
		}
		state.metrics[m] = struct{}{}
		added = append(added, m)
	}

	for _, m := range added {
		h.pushSnapshot(ctx, state, m, "")
	}

	h.send(state, ServerMessage{
		Type:      MsgSubscriptionConfirmed,
		Metrics:   state.sortedMetrics(),
		Timestamp: h.now(),
	})
}

func (h *Hub) handleUnsubscribe(state *connState, metrics []string) {
	for _, m := range metrics {
		delete(state.metrics, m)
	}
	h.send(state, ServerMessage{
		Type:      MsgUnsubscriptionConfirmed,
		Metrics:   state.sortedMetrics(),
		Timestamp: h.now(),
	})
}

// handleEvent pushes a booking-status change to subscribers of the bookings
// family immediately, independent of the periodic timers. Disputed events
// additionally raise an alert on every connection and bypass the throttle
// floor.
func (h *Hub) handleEvent(e *domain.BookingEvent) {
	now := h.now()
	msg := ServerMessage{
		Type:      MsgMetricUpdate,
		Metric:    analytics.MetricBookings,
		Data:      e,
		Timestamp: now,
	}

	for _, state := range h.snapshotConns() {
		if _, subscribed := state.metrics[analytics.MetricBookings]; subscribed {
			if e.Critical() || h.pastFloor(state, analytics.MetricBookings, now) {
				state.lastDispatched[analytics.MetricBookings] = now
				h.send(state, msg)
			}
		}
		if e.Critical() {
			h.send(state, ServerMessage{
				Type:      MsgAnalyticsAlert,
				AlertType: string(e.Type),
				Title:     "Booking disputed",
				Message:   "Booking " + e.BookingNumber + " entered dispute",
				Timestamp: now,
			})
		}
	}
}

// broadcastPeriodic recomputes each metric family once per tick and fans the
// value out to every subscribed connection that is past its throttle floor.
func (h *Hub) broadcastPeriodic(ctx context.Context, metrics []string) {
	now := h.now()
	for _, metric := range metrics {
		var value interface{}
		computed := false

		for _, state := range h.snapshotConns() {
			if _, subscribed := state.metrics[metric]; !subscribed {
				continue
			}
			if !h.pastFloor(state, metric, now) {
				continue
			}
			if !computed {
				v, err := h.snapshots.Snapshot(ctx, metric, "")
				if err != nil {
					logger.Error("failed to compute metric snapshot", "metric", metric, "error", err)
					break
				}
				value = v
				computed = true
			}
			state.lastDispatched[metric] = now
			h.send(state, h.updateMessage(metric, value, now))
		}
	}
}

// pushSnapshot computes and delivers one metric value to one connection,
// marking the metric as freshly dispatched.
func (h *Hub) pushSnapshot(ctx context.Context, state *connState, metric, timeRange string) {
	value, err := h.snapshots.Snapshot(ctx, metric, timeRange)
	if err != nil {
		logger.Error("failed to compute metric snapshot", "metric", metric, "error", err)
		h.sendError(state, "failed to compute "+metric)
		return
	}
	now := h.now()
	state.lastDispatched[metric] = now
	h.send(state, h.updateMessage(metric, value, now))
}

func (h *Hub) updateMessage(metric string, value interface{}, now time.Time) ServerMessage {
	switch metric {
	case analytics.MetricKPIs:
		return ServerMessage{Type: MsgKPIsUpdate, Data: value, Timestamp: now}
	case analytics.MetricGeographic:
		return ServerMessage{Type: MsgGeographicUpdate, Data: value, Timestamp: now}
	default:
		return ServerMessage{Type: MsgMetricUpdate, Metric: metric, Data: value, Timestamp: now}
	}
}

// pastFloor reports whether the connection may receive another push of the
// metric without violating the minimum spacing.
func (h *Hub) pastFloor(state *connState, metric string, now time.Time) bool {
	last, ok := state.lastDispatched[metric]
	if !ok {
		return true
	}
	return now.Sub(last) >= h.cfg.ThrottleFloor()
}

func (h *Hub) sendError(state *connState, msg string) {
	h.send(state, ServerMessage{
		Type:      MsgAnalyticsError,
		Message:   msg,
		Timestamp: h.now(),
	})
}

// send delivers without blocking the hub loop. A connection whose buffer is
// full is too slow to keep; it gets dropped like a disconnect.
func (h *Hub) send(state *connState, msg ServerMessage) {
	if state.closed {
		return
	}
	select {
	case state.client.send <- msg:
	default:
		logger.Warn("dropping slow realtime connection", "conn_id", state.client.id)
		h.handleDisconnect(state.client)
	}
}

// snapshotConns copies the current connection list so handlers can drop slow
// connections mid-iteration without mutating the map being ranged.
func (h *Hub) snapshotConns() []*connState {
	states := make([]*connState, 0, len(h.conns))
	for _, s := range h.conns {
		states = append(states, s)
	}
	return states
}

func (s *connState) sortedMetrics() []string {
	out := make([]string, 0, len(s.metrics))
	for m := range s.metrics {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
