package web

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/peterkuimelis/cardrules/internal/log"
	cardnet "github.com/peterkuimelis/cardrules/internal/net"
	"github.com/peterkuimelis/cardrules/internal/table"
)

// subscriberBuffer is how many messages a slow connection may fall behind
// before messages are dropped.
const subscriberBuffer = 64

// Subscriber receives the messages pushed to one connection.
type Subscriber struct {
	gameID   string
	playerID string
	table    *table.Table
	out      chan outbound
}

// outbound is a queued message. A refresh is turned into a view of the game
// by the reader, outside the table's locks.
type outbound struct {
	msg     cardnet.ServerMessage
	refresh bool
}

// Next blocks for the next message. Views are built here, on the
// connection's own goroutine.
func (s *Subscriber) Next(ctx context.Context) (cardnet.ServerMessage, error) {
	select {
	case <-ctx.Done():
		return cardnet.ServerMessage{}, ctx.Err()
	case o := <-s.out:
		if o.refresh {
			return cardnet.StateMessage(s.table.View(s.playerID)), nil
		}
		return o.msg, nil
	}
}

// Hub fans committed events out to the websocket connections watching each
// game. After every batch each subscriber also gets a fresh view of the game
// from its own seat. Publish runs under the table's publish lock, so it only
// queues; it never reads the table.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscriber]struct{}
	log  logrus.FieldLogger
}

// NewHub creates an empty hub.
func NewHub(logger logrus.FieldLogger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{subs: make(map[string]map[*Subscriber]struct{}), log: logger}
}

// Subscribe registers a connection watching t from playerID's seat. An empty
// playerID watches as a spectator.
func (h *Hub) Subscribe(t *table.Table, playerID string) *Subscriber {
	s := &Subscriber{
		gameID:   t.ID(),
		playerID: playerID,
		table:    t,
		out:      make(chan outbound, subscriberBuffer),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[s.gameID] == nil {
		h.subs[s.gameID] = make(map[*Subscriber]struct{})
	}
	h.subs[s.gameID][s] = struct{}{}
	return s
}

// Unsubscribe removes a subscriber. Its channel is not closed.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[s.gameID]
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, s.gameID)
	}
}

// Subscribers counts the connections watching a game.
func (h *Hub) Subscribers(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[gameID])
}

// Publish implements notify.Publisher.
func (h *Hub) Publish(_ context.Context, gameID string, events []log.GameEvent) error {
	h.mu.RLock()
	subs := make([]*Subscriber, 0, len(h.subs[gameID]))
	for s := range h.subs[gameID] {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	for _, s := range subs {
		for _, ev := range events {
			h.send(s, outbound{msg: cardnet.EventMessage(ev)})
		}
		h.send(s, outbound{msg: cardnet.ServerMessage{Type: cardnet.TypeState}, refresh: true})
	}
	return nil
}

func (h *Hub) send(s *Subscriber, o outbound) {
	select {
	case s.out <- o:
	default:
		h.log.WithFields(logrus.Fields{
			"game_id":   s.gameID,
			"player_id": s.playerID,
			"type":      o.msg.Type,
		}).Warn("subscriber is behind, dropping message")
	}
}
