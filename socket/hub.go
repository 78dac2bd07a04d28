// Package socket pushes live snapshots of matches, conversations and
// incoming likes to Socket.IO clients.
package socket

import (
	"context"
	"fmt"
	"sync"

	"roomie_server/apperrors"
	"roomie_server/logging"
	"roomie_server/services"
	"roomie_server/store"
)

const (
	KindMatches  = "matches"
	KindMessages = "messages"
	KindLikes    = "likes"

	EventSnapshot = "snapshot"
)

// Request is the payload of subscribe and unsubscribe. ID is the match id
// for KindMessages and unused otherwise.
type Request struct {
	Kind  string `json:"kind"`
	ID    string `json:"id,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

func (r Request) key() string {
	return r.Kind + ":" + r.ID
}

// Snapshot is emitted whenever a subscribed view changes.
type Snapshot struct {
	Kind string `json:"kind"`
	ID   string `json:"id,omitempty"`
	Data any    `json:"data"`
}

// client is the part of a socket connection the hub needs.
type client interface {
	ID() string
	Emit(event string, v ...interface{})
}

// Hub tracks the live subscriptions of every connection.
type Hub struct {
	Interactions *services.InteractionService
	Matches      *services.MatchService
	Chat         *services.ChatService

	ctx    context.Context
	logger logging.Logger

	mu    sync.Mutex
	conns map[string]map[string]func()
}

// NewHub returns a hub whose subscriptions all end when ctx is done.
func NewHub(ctx context.Context, interactions *services.InteractionService, matches *services.MatchService, chat *services.ChatService, logger logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Hub{
		Interactions: interactions,
		Matches:      matches,
		Chat:         chat,
		ctx:          ctx,
		logger:       logger,
		conns:        map[string]map[string]func(){},
	}
}

// Connect registers a connection. Subscriptions of unknown connections are refused.
func (h *Hub) Connect(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[connID]; !ok {
		h.conns[connID] = map[string]func(){}
	}
}

func forward[T any](sub *store.Subscription[T], c client, req Request) {
	for v := range sub.C {
		c.Emit(EventSnapshot, Snapshot{Kind: req.Kind, ID: req.ID, Data: v})
	}
}

// Subscribe starts streaming req's view to c on behalf of uid. Subscribing
// to the same view twice replaces the first subscription.
func (h *Hub) Subscribe(c client, uid string, req Request) error {
	if uid == "" {
		return apperrors.ErrUnauthorized
	}

	var cancel func()
	switch req.Kind {
	case KindMatches:
		req.ID = ""
		sub := h.Matches.WatchMatches(h.ctx, uid)
		go forward(sub, c, req)
		cancel = sub.Cancel
	case KindLikes:
		req.ID = ""
		sub := h.Interactions.WatchIncomingLikes(h.ctx, uid)
		go forward(sub, c, req)
		cancel = sub.Cancel
	case KindMessages:
		sub, err := h.Chat.WatchMessages(h.ctx, req.ID, uid, req.Limit)
		if err != nil {
			return err
		}
		go forward(sub, c, req)
		cancel = sub.Cancel
	default:
		return apperrors.Validation(fmt.Sprintf("unknown subscription kind %q", req.Kind))
	}

	h.mu.Lock()
	subs, ok := h.conns[c.ID()]
	var previous func()
	if ok {
		previous = subs[req.key()]
		subs[req.key()] = cancel
	}
	h.mu.Unlock()

	if !ok {
		cancel()
		return apperrors.ErrUnauthorized
	}
	if previous != nil {
		previous()
	}
	h.logger.Debug(h.ctx, "subscribed", "conn", c.ID(), "userId", uid, "kind", req.Kind, "id", req.ID)
	return nil
}

// Unsubscribe stops one view of a connection.
func (h *Hub) Unsubscribe(connID string, req Request) {
	if req.Kind != KindMessages {
		req.ID = ""
	}
	h.mu.Lock()
	cancel := h.conns[connID][req.key()]
	delete(h.conns[connID], req.key())
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Drop cancels everything a connection subscribed to.
func (h *Hub) Drop(connID string) {
	h.mu.Lock()
	subs := h.conns[connID]
	delete(h.conns, connID)
	h.mu.Unlock()
	for _, cancel := range subs {
		cancel()
	}
}

// Subscriptions returns the number of live subscriptions of a connection.
func (h *Hub) Subscriptions(connID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns[connID])
}
