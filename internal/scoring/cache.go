package scoring

import (
	"context"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"

	"github.com/scribeworks/backend/internal/models"
)

const cacheKeyPrefix = "score:"

// CachedAdapter memoises scores in Redis keyed by a fingerprint of the
// content and reference, so a resubmission after a timeout does not pay for
// scoring twice. Cache failures fall through to the wrapped adapter.
type CachedAdapter struct {
	next  Adapter
	redis *redis.Client
	ttl   time.Duration
	log   logrus.FieldLogger
}

// NewCachedAdapter wraps next. A nil client disables caching and returns next.
func NewCachedAdapter(next Adapter, client *redis.Client, ttl time.Duration, log logrus.FieldLogger) Adapter {
	if client == nil {
		return next
	}
	return &CachedAdapter{next: next, redis: client, ttl: ttl, log: log}
}

func Fingerprint(content string, ref models.Reference) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(ref.ImageURL))
	h.Write([]byte{0})
	h.Write([]byte(ref.Text))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}

func (c *CachedAdapter) Score(ctx context.Context, content string, ref models.Reference) (float64, error) {
	key := cacheKeyPrefix + Fingerprint(content, ref)

	cached, err := c.redis.Get(ctx, key).Result()
	if err == nil {
		if score, perr := strconv.ParseFloat(cached, 64); perr == nil {
			return score, nil
		}
	} else if err != redis.Nil {
		c.log.WithError(err).Warn("[SCORING] cache read failed")
	}

	score, err := c.next.Score(ctx, content, ref)
	if err != nil {
		return 0, err
	}

	if err := c.redis.Set(ctx, key, strconv.FormatFloat(score, 'f', -1, 64), c.ttl).Err(); err != nil {
		c.log.WithError(err).Warn("[SCORING] cache write failed")
	}
	return score, nil
}
