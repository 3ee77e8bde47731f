package clinic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/nexushealth/clinic-concierge/pkg/logging"
)

// Cache fronts a Resolver with a short-TTL Redis cache so gateway retries of
// the same event do not pay a relational round-trip each time. Any cache
// failure falls through to the underlying resolver.
type Cache struct {
	redis  *redis.Client
	next   Resolver
	ttl    time.Duration
	tracer trace.Tracer
	logger *logging.Logger
}

// NewCache wraps a resolver with Redis caching.
func NewCache(redisClient *redis.Client, next Resolver, ttl time.Duration, logger *logging.Logger) *Cache {
	if redisClient == nil {
		panic("clinic: redis client cannot be nil")
	}
	if next == nil {
		panic("clinic: resolver cannot be nil")
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Cache{
		redis:  redisClient,
		next:   next,
		ttl:    ttl,
		tracer: otel.Tracer("nexus.internal.clinic.cache"),
		logger: logger,
	}
}

var _ Resolver = (*Cache)(nil)

// ResolveWebhookContext serves from Redis when possible, refreshing on miss.
func (c *Cache) ResolveWebhookContext(ctx context.Context, zapiInstanceID string) (*WebhookContext, error) {
	ctx, span := c.tracer.Start(ctx, "clinic.resolve_context")
	defer span.End()

	key := contextKey(zapiInstanceID)
	if data, err := c.redis.Get(ctx, key).Bytes(); err == nil {
		var wc WebhookContext
		if err := json.Unmarshal(data, &wc); err == nil {
			return &wc, nil
		}
		c.logger.Warn("corrupt cached webhook context, refreshing", "zapi_instance_id", zapiInstanceID)
	} else if err != redis.Nil {
		span.RecordError(err)
		c.logger.Warn("webhook context cache unavailable", "error", err)
	}

	wc, err := c.next.ResolveWebhookContext(ctx, zapiInstanceID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(wc); err == nil {
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
			span.RecordError(err)
			c.logger.Warn("failed to cache webhook context", "error", err)
		}
	}
	return wc, nil
}

func contextKey(zapiInstanceID string) string {
	return fmt.Sprintf("webhook_ctx:%s", zapiInstanceID)
}
