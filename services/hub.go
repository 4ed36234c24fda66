package services

import (
	"sync"

	"github.com/sirupsen/logrus"

	"strategy-game-server/engine"
	"strategy-game-server/logger"
)

// Notifier receives engine events once their transition is committed.
type Notifier interface {
	Publish(events ...engine.Event)
}

// Hub fans events out to per-game subscribers. Slow subscribers miss events
// rather than block the publisher.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan engine.Event]struct{}
	buffer      int
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[chan engine.Event]struct{}),
		buffer:      64,
	}
}

// Subscribe registers a channel for gameID. Call the returned func to
// unsubscribe; it closes the channel.
func (h *Hub) Subscribe(gameID string) (<-chan engine.Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan engine.Event, h.buffer)
	if h.subscribers[gameID] == nil {
		h.subscribers[gameID] = make(map[chan engine.Event]struct{})
	}
	h.subscribers[gameID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() { h.unsubscribe(gameID, ch) })
	}
}

func (h *Hub) unsubscribe(gameID string, ch chan engine.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.subscribers[gameID]
	if _, ok := subs[ch]; !ok {
		return
	}
	delete(subs, ch)
	close(ch)
	if len(subs) == 0 {
		delete(h.subscribers, gameID)
	}
}

func (h *Hub) Publish(events ...engine.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ev := range events {
		for ch := range h.subscribers[ev.GameID] {
			select {
			case ch <- ev:
			default:
				logger.Log.WithFields(logrus.Fields{
					"component": "hub",
					"game_id":   ev.GameID,
					"event":     ev.Type,
				}).Warn("Subscriber buffer full, event dropped.")
			}
		}
	}
}

// SubscriberCount reports how many streams follow gameID.
func (h *Hub) SubscriberCount(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[gameID])
}
