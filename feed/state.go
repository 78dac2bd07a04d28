package feed

import (
	"sync"

	"roomie_server/models"
)

// SeenCache is the append-only set of profile ids a session has been shown.
type SeenCache struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

func NewSeenCache() *SeenCache {
	return &SeenCache{ids: map[string]struct{}{}}
}

func (c *SeenCache) Add(ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		c.ids[id] = struct{}{}
	}
}

func (c *SeenCache) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.ids[id]
	return ok
}

func (c *SeenCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ids)
}

// State is the feed a session currently holds. Items are addressed by id
// only; positions shift when pages are merged or swipes fail.
//
// A swipe is two-phase: BeginSwipe takes the item out of the visible feed
// and parks it as pending, then Confirm drops it for good or Fail puts it
// back at the head of the feed.
type State struct {
	mu      sync.Mutex
	items   []models.FeedItem
	pending map[string]models.FeedItem
}

func NewState() *State {
	return &State{pending: map[string]models.FeedItem{}}
}

func (s *State) indexOf(id string) int {
	for i, it := range s.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// Merge appends the items whose id is neither visible nor pending and
// returns how many were added.
func (s *State) Merge(items []models.FeedItem) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	present := make(map[string]struct{}, len(s.items)+len(s.pending))
	for _, it := range s.items {
		present[it.ID] = struct{}{}
	}
	for id := range s.pending {
		present[id] = struct{}{}
	}

	added := 0
	for _, it := range items {
		if _, ok := present[it.ID]; ok {
			continue
		}
		present[it.ID] = struct{}{}
		s.items = append(s.items, it)
		added++
	}
	return added
}

// Items returns a copy of the visible feed.
func (s *State) Items() []models.FeedItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.FeedItem(nil), s.items...)
}

func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Remove drops the visible item with id.
func (s *State) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return true
}

// BeginSwipe moves the item with id from the feed to pending.
func (s *State) BeginSwipe(id string) (models.FeedItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return models.FeedItem{}, false
	}
	it := s.items[i]
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.pending[id] = it
	return it, true
}

// Confirm forgets a pending swipe.
func (s *State) Confirm(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
}

// Fail requeues a pending item at the head of the feed.
func (s *State) Fail(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.pending[id]
	if !ok {
		return false
	}
	delete(s.pending, id)
	s.items = append([]models.FeedItem{it}, s.items...)
	return true
}

func (s *State) Pending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[id]
	return ok
}

func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.pending = map[string]models.FeedItem{}
}
