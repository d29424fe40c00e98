package loyalty

import (
	"context"
	"sync"
	"time"

	"studentslife/pkg/rediskey"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"
)

var (
	cardCacheHits = promauto.NewCounter(prometheus.CounterOpts{Name: "loyalty_card_cache_hits_total"})
	cardCacheMiss = promauto.NewCounter(prometheus.CounterOpts{Name: "loyalty_card_cache_miss_total"})
)

type cachedCard struct {
	card     *LoyaltyCard
	loadedAt time.Time
}

// CardCache keeps the active card per partner, including the absence of one.
// Concurrent misses for the same partner share a single load.
type CardCache struct {
	mu    sync.RWMutex
	items map[string]cachedCard
	ttl   time.Duration
	group singleflight.Group
}

func NewCardCache(ttl time.Duration) *CardCache {
	return &CardCache{
		items: make(map[string]cachedCard),
		ttl:   ttl,
	}
}

type cardLoader func(ctx context.Context, partnerID string) (*LoyaltyCard, error)

func (c *CardCache) Get(ctx context.Context, partnerID string, load cardLoader) (*LoyaltyCard, error) {
	if card, ok := c.lookup(partnerID); ok {
		cardCacheHits.Inc()
		return copyCard(card), nil
	}
	cardCacheMiss.Inc()

	v, err, _ := c.group.Do(rediskey.BuildLoyaltyCardKey(partnerID), func() (any, error) {
		card, err := load(ctx, partnerID)
		if err != nil {
			return nil, err
		}
		c.set(partnerID, card)
		return card, nil
	})
	if err != nil {
		return nil, err
	}

	card, _ := v.(*LoyaltyCard)
	return copyCard(card), nil
}

func (c *CardCache) lookup(partnerID string) (*LoyaltyCard, bool) {
	if c.ttl <= 0 {
		return nil, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[partnerID]
	if !ok || time.Since(v.loadedAt) > c.ttl {
		return nil, false
	}
	return v.card, true
}

func (c *CardCache) set(partnerID string, card *LoyaltyCard) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[partnerID] = cachedCard{card: card, loadedAt: time.Now()}
}

func (c *CardCache) Invalidate(partnerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, partnerID)
}

func copyCard(card *LoyaltyCard) *LoyaltyCard {
	if card == nil {
		return nil
	}
	cp := *card
	return &cp
}
