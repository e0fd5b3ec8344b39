// Package broadcast implements the pub/sub fan-out hub and the HTTP
// snapshot API, generalized from the teacher's api/routes.go gin+cors
// server and enriched with a gorilla/websocket fan-out grounded on
// rahjooh-CryptoTrade and alanyoungcy-polymarketbot's dependency on the
// same library.
package broadcast

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"arbwatch/applog"
	"arbwatch/models"
)

const subscriberBufferSize = 16

// subscriber is one connected WebSocket session with a bounded send buffer.
// A full buffer means the subscriber is too slow; it gets disconnected
// rather than allowed to back-pressure the detector.
type subscriber struct {
	conn   *websocket.Conn
	send   chan []byte
	closed chan struct{}
	once   sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() {
		close(s.closed)
		s.conn.Close()
	})
}

// Hub fans out the latest Opportunity list to every connected subscriber
// and retains a last-good copy for HTTP snapshot reads.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}

	writeTimeout time.Duration
	lastGoodTTL  time.Duration

	lastGood     []models.Opportunity
	lastGoodAt   time.Time
	log          *applog.Entry
}

// NewHub builds a Hub with the given per-write timeout and last-good
// retention window.
func NewHub(writeTimeout, lastGoodTTL time.Duration) *Hub {
	return &Hub{
		subscribers:  make(map[*subscriber]struct{}),
		writeTimeout: writeTimeout,
		lastGoodTTL:  lastGoodTTL,
		log:          applog.Default().WithComponent("broadcast"),
	}
}

// Register wraps a live WebSocket connection as a subscriber and starts its
// dedicated write pump. Call the returned func to unregister on
// disconnect.
func (h *Hub) Register(conn *websocket.Conn) func() {
	sub := &subscriber{
		conn:   conn,
		send:   make(chan []byte, subscriberBufferSize),
		closed: make(chan struct{}),
	}

	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()

	go h.writePump(sub)

	return func() {
		h.mu.Lock()
		delete(h.subscribers, sub)
		h.mu.Unlock()
		sub.close()
	}
}

func (h *Hub) writePump(sub *subscriber) {
	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()
	for {
		select {
		case <-sub.closed:
			return
		case msg, ok := <-sub.send:
			if !ok {
				return
			}
			sub.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := sub.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.log.WithError(err).Debug("subscriber write failed, disconnecting")
				h.mu.Lock()
				delete(h.subscribers, sub)
				h.mu.Unlock()
				sub.close()
				return
			}
		case <-heartbeat.C:
			sub.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.mu.Lock()
				delete(h.subscribers, sub)
				h.mu.Unlock()
				sub.close()
				return
			}
		}
	}
}

// Publish pushes one detection tick's Opportunity list to every subscriber
// with a non-full buffer, disconnecting the rest, and updates the last-good
// snapshot for HTTP reads. An empty tick still reaches live subscribers
// (it is real-time information), but it never overwrites the last-good
// HTTP snapshot: that snapshot is retained across empty ticks for up to
// lastGoodTTL rather than flipping HTTP readers to "no opportunities".
func (h *Hub) Publish(opps []models.Opportunity) {
	payload, err := json.Marshal(opps)
	if err != nil {
		h.log.WithError(err).Error("failed to marshal opportunity frame")
		return
	}

	h.mu.Lock()
	if len(opps) > 0 {
		h.lastGood = opps
		h.lastGoodAt = time.Now()
	}
	subs := make([]*subscriber, 0, len(h.subscribers))
	for s := range h.subscribers {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.send <- payload:
		default:
			h.log.Debug("subscriber send buffer full, disconnecting")
			h.mu.Lock()
			delete(h.subscribers, sub)
			h.mu.Unlock()
			sub.close()
		}
	}
}

// Snapshot returns the last published Opportunity list plus whether it is
// still within the last-good TTL window.
func (h *Hub) Snapshot() (opps []models.Opportunity, fresh bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.lastGood == nil {
		return nil, false
	}
	return h.lastGood, time.Since(h.lastGoodAt) <= h.lastGoodTTL
}

// SubscriberCount reports the number of currently connected subscribers,
// used by the health endpoint.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
