package products

import (
	"container/list"
	"sync"
	"time"
)

type reservation struct {
	key       string
	productID int64
	quantity  int
	expiresAt time.Time
}

// ReservationCache holds stock reserved by sales that are still being
// composed. It is bounded: once capacity is reached the least recently
// touched reservation is evicted. Entries also expire after ttl.
type ReservationCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List
	entries  map[string]*list.Element
	now      func() time.Time
}

// NewReservationCache constructs a cache. Non-positive values fall back to
// 256 entries and a two minute ttl.
func NewReservationCache(capacity int, ttl time.Duration) *ReservationCache {
	if capacity <= 0 {
		capacity = 256
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &ReservationCache{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
		now:      time.Now,
	}
}

// WithNow overrides the clock.
func (c *ReservationCache) WithNow(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now != nil {
		c.now = now
	}
}

// Reserve holds quantity units of productID under key. stock is the on-hand
// quantity read from storage; the call fails with ErrInsufficientStock when
// the units already held by other keys leave less than quantity available.
// Reserving an existing key replaces its quantity and refreshes it.
func (c *ReservationCache) Reserve(key string, productID int64, quantity, stock int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.purge(now)

	held := c.held(productID, key)
	if stock-held < quantity {
		return ErrInsufficientStock.Wrapf("%d requested, %d available", quantity, max(stock-held, 0))
	}
	if el, ok := c.entries[key]; ok {
		r := el.Value.(*reservation)
		r.productID, r.quantity, r.expiresAt = productID, quantity, now.Add(c.ttl)
		c.order.MoveToFront(el)
		return nil
	}
	c.entries[key] = c.order.PushFront(&reservation{
		key:       key,
		productID: productID,
		quantity:  quantity,
		expiresAt: now.Add(c.ttl),
	})
	for c.order.Len() > c.capacity {
		c.remove(c.order.Back())
	}
	return nil
}

// Release drops the reservation under key. Unknown keys are ignored.
func (c *ReservationCache) Release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.remove(el)
	}
}

// Available returns stock minus the live reservations for productID.
func (c *ReservationCache) Available(productID int64, stock int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purge(c.now())
	return max(stock-c.held(productID, ""), 0)
}

// Len counts live reservations.
func (c *ReservationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purge(c.now())
	return c.order.Len()
}

func (c *ReservationCache) held(productID int64, exceptKey string) int {
	total := 0
	for el := c.order.Front(); el != nil; el = el.Next() {
		r := el.Value.(*reservation)
		if r.productID == productID && r.key != exceptKey {
			total += r.quantity
		}
	}
	return total
}

func (c *ReservationCache) purge(now time.Time) {
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*reservation).expiresAt) {
			c.remove(el)
		}
		el = prev
	}
}

func (c *ReservationCache) remove(el *list.Element) {
	r := c.order.Remove(el).(*reservation)
	delete(c.entries, r.key)
}
