package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/railfleet/capacity-engine/internal/models"
	"github.com/railfleet/capacity-engine/internal/notify"
	"github.com/railfleet/capacity-engine/internal/types"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// CachedReader is a read-through Redis cache in front of a Reader.
//
// Entries are evicted when a capacity event for their facility month is
// published, so the CachedReader must be registered as a notifier publisher.
// Any Redis failure falls back to the wrapped Reader.
type CachedReader struct {
	next   Reader
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

// NewCachedReader wraps next with a cache on client. Keys are prefixed with prefix.
func NewCachedReader(next Reader, client redis.UniversalClient, ttl time.Duration, prefix string) *CachedReader {
	return &CachedReader{
		next:   next,
		client: client,
		ttl:    ttl,
		prefix: prefix,
	}
}

// Key returns the cache key of a facility month.
func (c *CachedReader) Key(facility string, month types.Month) string {
	key := fmt.Sprintf("capacity:%s:%s", models.NormalizeFacilityCode(facility), month)
	if c.prefix != "" {
		key = fmt.Sprintf("%s:%s", c.prefix, key)
	}
	return key
}

func (c *CachedReader) Read(ctx context.Context, facility string, month types.Month) (models.ShopMonthlyCapacity, bool, error) {
	key := c.Key(facility, month)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var row models.ShopMonthlyCapacity
		if err := json.Unmarshal(data, &row); err == nil {
			return row, true, nil
		}
		log.Warn().Str("key", key).Msg("discarding malformed capacity cache entry")
	} else if err != redis.Nil {
		log.Debug().Err(err).Str("key", key).Msg("capacity cache unavailable, reading from database")
	}

	row, found, err := c.next.Read(ctx, facility, month)
	if err != nil || !found {
		return row, found, err
	}

	if data, err := json.Marshal(row); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			log.Debug().Err(err).Str("key", key).Msg("could not populate capacity cache")
		}
	}

	return row, true, nil
}

func (c *CachedReader) Name() string {
	return "capacity-cache"
}

// Publish evicts the cache entry of the facility month of a capacity event.
func (c *CachedReader) Publish(ctx context.Context, e notify.Event) error {
	if e.Type != notify.EventCapacityChanged {
		return nil
	}

	return c.client.Del(ctx, c.Key(e.Facility, e.Month)).Err()
}
