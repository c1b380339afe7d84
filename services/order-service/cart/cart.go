// Package cart reads and clears the shopping cart that cart-service keeps in
// Redis.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/yashrajoria/checkout-saga/services/common/validation"
)

type CartItem struct {
	ProductID string          `json:"product_id" validate:"required"`
	Name      string          `json:"name"`
	ImageURL  string          `json:"image_url,omitempty"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	Price     decimal.Decimal `json:"price" validate:"nonneg_decimal"`
	Size      string          `json:"size,omitempty"`
	Color     string          `json:"color,omitempty"`
}

type Cart struct {
	UserID    string     `json:"user_id"`
	Items     []CartItem `json:"items" validate:"dive"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TotalPrice is the sum of price times quantity over all items.
func (c *Cart) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// Validate rejects carts that cannot be charged.
func (c *Cart) Validate() error {
	if err := validation.Struct(c); err != nil {
		return err
	}
	if !c.TotalPrice().IsPositive() {
		return fmt.Errorf("cart total must be positive, got %s", c.TotalPrice())
	}
	return nil
}

type CartClient interface {
	// GetCart returns an empty cart when the user has none.
	GetCart(ctx context.Context, userID string) (*Cart, error)
	// ClearCart removes the cart and reports how many items it held.
	ClearCart(ctx context.Context, userID string) (int, error)
}

// store is the slice of the go-redis API the cart needs.
type store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	GetDel(ctx context.Context, key string) *redis.StringCmd
}

type RedisCartClient struct {
	client store
}

func NewRedisCartClient(client store) *RedisCartClient {
	return &RedisCartClient{client: client}
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func key(userID string) string {
	return fmt.Sprintf("cart:user:%s", userID)
}

func (r *RedisCartClient) GetCart(ctx context.Context, userID string) (*Cart, error) {
	return decode(userID, r.client.Get(ctx, key(userID)))
}

func (r *RedisCartClient) ClearCart(ctx context.Context, userID string) (int, error) {
	c, err := decode(userID, r.client.GetDel(ctx, key(userID)))
	if err != nil {
		return 0, err
	}
	return len(c.Items), nil
}

func decode(userID string, cmd *redis.StringCmd) (*Cart, error) {
	data, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return &Cart{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cart for user %s: %w", userID, err)
	}

	var c Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode cart for user %s: %w", userID, err)
	}
	if c.UserID == "" {
		c.UserID = userID
	}
	return &c, nil
}
