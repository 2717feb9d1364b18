package server

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"pulseops/src/interfaces"
	"pulseops/src/kpi"
	"pulseops/src/logger"
	"pulseops/src/metrics"
	"pulseops/src/models"
	"pulseops/src/utils"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

var (
	// ErrHubClosed is returned by Attach once Close has been called.
	ErrHubClosed = errors.New("hub is closed")

	// ErrTransportClosed is returned by Enqueue on an already closed transport.
	ErrTransportClosed = errors.New("transport is closed")

	// ErrSendQueueFull is returned by Enqueue when the outbound message
	// queue cannot accept another payload without blocking.
	ErrSendQueueFull = errors.New("send queue is full")
)

// -----------------------------------------------------------------------------

// PulseHub fans ingested pulse events out to live subscribers. A single
// goroutine owns the subscriber set; Attach, Detach, Broadcast and Close
// talk to it through channels so the set never needs a lock.
//
// Delivery is best-effort: a subscriber whose outbound buffer exceeds the
// configured byte threshold is skipped for that event, and a transport that
// reports itself closed is removed. One stalled reader never blocks the
// others.
type PulseHub struct {
	Config     *models.MConfig
	Logger     *logger.Logger
	Aggregator *kpi.Aggregator

	maxBufferedBytes int

	clients    map[interfaces.IPulseTransport]struct{}
	register   chan interfaces.IPulseTransport
	unregister chan interfaces.IPulseTransport
	broadcast  chan []byte

	clientCount     atomic.Int64
	messagesSent    atomic.Uint64
	messagesDropped atomic.Uint64

	started   time.Time
	closeOnce sync.Once
	quit      chan struct{}
	stopped   chan struct{}
}

// The hub is the only broadcaster in the process; the assertion keeps its
// exported surface in lockstep with the contract.
var _ interfaces.IEventBroadcaster = (*PulseHub)(nil)

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

// NewPulseHub builds the hub and starts its loop. The caller must Close the
// hub to release it.
func NewPulseHub(cfg *models.MConfig, agg *kpi.Aggregator, log *logger.Logger) *PulseHub {
	maxBuffered := cfg.Hub.MaxBufferedBytes
	if maxBuffered <= 0 {
		maxBuffered = utils.DefaultMaxBufferedBytes
	}

	h := &PulseHub{
		Config:           cfg,
		Logger:           log,
		Aggregator:       agg,
		maxBufferedBytes: maxBuffered,
		clients:          make(map[interfaces.IPulseTransport]struct{}),
		register:         make(chan interfaces.IPulseTransport),
		unregister:       make(chan interfaces.IPulseTransport),
		// Buffered queue so a burst of ingestion calls does not stall
		// the HTTP handlers feeding the hub.
		broadcast: make(chan []byte, 256),
		started:   time.Now(),
		quit:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}

	go h.run()
	return h
}

// -----------------------------------------------------------------------------
// Hub Loop
// -----------------------------------------------------------------------------

func (h *PulseHub) run() {
	for {
		select {
		case transport := <-h.register:
			h.clients[transport] = struct{}{}
			h.setClientCount(len(h.clients))

		case transport := <-h.unregister:
			if _, ok := h.clients[transport]; ok {
				delete(h.clients, transport)
				transport.Close(true)
				h.setClientCount(len(h.clients))
			}

		case payload := <-h.broadcast:
			h.fanOut(payload)

		case <-h.quit:
			for transport := range h.clients {
				delete(h.clients, transport)
				transport.Close(true)
			}
			h.setClientCount(0)
			close(h.stopped)
			return
		}
	}
}

// -----------------------------------------------------------------------------

// fanOut attempts delivery of one serialized event to every subscriber.
// Subscribers over the byte threshold are skipped but stay attached; a
// transport that reports itself closed is removed from the set.
func (h *PulseHub) fanOut(payload []byte) {
	var sent, dropped int

	for transport := range h.clients {
		if transport.BufferedBytes() > h.maxBufferedBytes {
			h.countDrop(metrics.DropReasonBackpressure)
			dropped++
			continue
		}

		if err := transport.Enqueue(payload); err != nil {
			dropped++
			if errors.Is(err, ErrTransportClosed) {
				delete(h.clients, transport)
				transport.Close(false)
				h.setClientCount(len(h.clients))
				h.countDrop(metrics.DropReasonClosed)
			} else {
				h.countDrop(metrics.DropReasonQueueFull)
			}
			continue
		}

		sent++
		h.messagesSent.Add(1)
		metrics.HubMessagesSent.Inc()
	}

	if dropped > 0 {
		h.Logger.Debug("Broadcast delivered to %d subscribers, dropped %d (payload %d bytes)", sent, dropped, len(payload))
	}
}

// -----------------------------------------------------------------------------
// Public Operations
// -----------------------------------------------------------------------------

// Attach registers a live transport with the hub. Registration is a set
// insert, so attaching the same transport twice is harmless.
func (h *PulseHub) Attach(transport interfaces.IPulseTransport) error {
	select {
	case h.register <- transport:
		return nil
	case <-h.quit:
		return ErrHubClosed
	}
}

// -----------------------------------------------------------------------------

// Detach removes a transport from the delivery set and closes it. Safe to
// call for transports the hub already dropped.
func (h *PulseHub) Detach(transport interfaces.IPulseTransport) {
	select {
	case h.unregister <- transport:
	case <-h.quit:
	}
}

// -----------------------------------------------------------------------------

// Broadcast records the event in the KPI window, serializes it once and
// queues it for fan-out. The aggregator update is synchronous: a stats read
// issued after Broadcast returns sees the new sample.
func (h *PulseHub) Broadcast(event *models.MPulseEvent) {
	h.Aggregator.PushSample(event.Composites.Sorrow, event.Composites.Hope)
	metrics.KPIWindowSize.Set(float64(h.Aggregator.Size()))

	payload, err := json.Marshal(event)
	if err != nil {
		h.Logger.Error("Failed to serialize pulse event: %v", err)
		return
	}

	select {
	case h.broadcast <- payload:
	case <-h.quit:
	}
}

// -----------------------------------------------------------------------------

// ClientCount reports the current size of the delivery set.
func (h *PulseHub) ClientCount() int {
	return int(h.clientCount.Load())
}

// -----------------------------------------------------------------------------

// Stats snapshots the hub counters.
func (h *PulseHub) Stats() models.MHubStats {
	return models.MHubStats{
		ConnectedClients: h.ClientCount(),
		MessagesSent:     h.messagesSent.Load(),
		MessagesDropped:  h.messagesDropped.Load(),
		UptimeSeconds:    time.Since(h.started).Seconds(),
	}
}

// -----------------------------------------------------------------------------

// Close gracefully closes every subscriber, clears the set and stops the
// loop. It blocks until the loop has exited, so ClientCount reports 0 as
// soon as Close returns. Subsequent calls return immediately.
func (h *PulseHub) Close() {
	h.closeOnce.Do(func() {
		close(h.quit)
	})
	<-h.stopped
}

// -----------------------------------------------------------------------------
// Internal Helpers
// -----------------------------------------------------------------------------

func (h *PulseHub) setClientCount(count int) {
	h.clientCount.Store(int64(count))
	metrics.HubConnectedClients.Set(float64(count))
}

// -----------------------------------------------------------------------------

func (h *PulseHub) countDrop(reason string) {
	h.messagesDropped.Add(1)
	metrics.HubMessagesDropped.WithLabelValues(reason).Inc()
}
