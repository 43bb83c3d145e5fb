package cache

import (
	"container/list"
	"sync"

	"main/internal/model"
)

// memoryTier is the bounded tier-1 map with recency eviction. It owns the
// pooled books stored in it until they are evicted or removed.
type memoryTier struct {
	mu       sync.Mutex
	capacity int
	entries  map[Key]*list.Element
	order    *list.List // front = most recent
}

type memoryEntry struct {
	key  Key
	book *model.OrderBook
}

func newMemoryTier(capacity int) *memoryTier {
	if capacity <= 0 {
		capacity = 1
	}
	return &memoryTier{
		capacity: capacity,
		entries:  make(map[Key]*list.Element, capacity),
		order:    list.New(),
	}
}

// put stores book under key, returning a superseded book (same key) and an
// evicted entry (capacity overflow), either of which may be nil.
func (t *memoryTier) put(key Key, book *model.OrderBook) (superseded *model.OrderBook, evicted *memoryEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if el, ok := t.entries[key]; ok {
		entry := el.Value.(*memoryEntry)
		superseded = entry.book
		entry.book = book
		t.order.MoveToFront(el)
		return superseded, nil
	}

	el := t.order.PushFront(&memoryEntry{key: key, book: book})
	t.entries[key] = el
	if t.order.Len() <= t.capacity {
		return nil, nil
	}

	back := t.order.Back()
	victim := back.Value.(*memoryEntry)
	t.order.Remove(back)
	delete(t.entries, victim.key)
	return nil, victim
}

// get returns an independent copy of the stored book and marks it most
// recent. Cloning under the lock keeps a concurrent supersede of the same
// key from recycling the book mid-copy.
func (t *memoryTier) get(key Key) (*model.OrderBook, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	el, ok := t.entries[key]
	if !ok {
		return nil, false
	}
	t.order.MoveToFront(el)
	return el.Value.(*memoryEntry).book.Clone(), true
}

// remove drops key, returning the owned book if present.
func (t *memoryTier) remove(key Key) *model.OrderBook {
	t.mu.Lock()
	defer t.mu.Unlock()
	el, ok := t.entries[key]
	if !ok {
		return nil
	}
	t.order.Remove(el)
	delete(t.entries, key)
	return el.Value.(*memoryEntry).book
}

// removeExchange drops every key of one exchange, returning owned books.
func (t *memoryTier) removeExchange(exchange string) []*model.OrderBook {
	t.mu.Lock()
	defer t.mu.Unlock()
	var books []*model.OrderBook
	for key, el := range t.entries {
		if key.Exchange != exchange {
			continue
		}
		t.order.Remove(el)
		delete(t.entries, key)
		books = append(books, el.Value.(*memoryEntry).book)
	}
	return books
}

func (t *memoryTier) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.order.Len()
}
