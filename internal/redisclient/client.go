package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"crm-service/internal/models"

	"github.com/go-redis/redis/v8"
)

// Client caches derived payment summaries so repeated dashboard reads do not
// re-aggregate the ledger. Mutation paths invalidate; entries also expire.
type Client struct {
	rdb        *redis.Client
	summaryTTL time.Duration
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int, summaryTTL time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb, summaryTTL: summaryTTL}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func summaryKey(orderID int64) string {
	return fmt.Sprintf("payment-summary:%d", orderID)
}

// GetSummary returns a cached summary, or nil on cache miss.
func (c *Client) GetSummary(ctx context.Context, orderID int64) (*models.PaymentSummary, error) {
	data, err := c.rdb.Get(ctx, summaryKey(orderID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("summary cache get failed: %w", err)
	}

	var summary models.PaymentSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("summary cache decode failed: %w", err)
	}
	return &summary, nil
}

// SetSummary stores a summary with the configured TTL.
func (c *Client) SetSummary(ctx context.Context, summary *models.PaymentSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("summary cache encode failed: %w", err)
	}
	return c.rdb.Set(ctx, summaryKey(summary.OrderID), data, c.summaryTTL).Err()
}

// InvalidateSummary drops the cached summary for an order.
func (c *Client) InvalidateSummary(ctx context.Context, orderID int64) error {
	return c.rdb.Del(ctx, summaryKey(orderID)).Err()
}
