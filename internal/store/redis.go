package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/sai-karthik-k/ecommerce-microservices/internal/orders"
)

const (
	// hash orders -> {order_id: json}
	KeyOrders = "orders"

	// counter used to assign order ids
	KeyOrderSeq = "orders:seq"
)

// RedisStore implements orders.Repository on a Redis hash
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisClient creates a client for addr
func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

// NewRedisStore creates a RedisStore over the client
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) FindAll(ctx context.Context) ([]orders.Order, error) {
	values, err := s.rdb.HGetAll(ctx, KeyOrders).Result()
	if err != nil {
		return nil, err
	}

	out := make([]orders.Order, 0, len(values))
	for field, raw := range values {
		var o orders.Order
		if err := json.Unmarshal([]byte(raw), &o); err != nil {
			return nil, fmt.Errorf("decode order %s: %w", field, err)
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *RedisStore) FindByID(ctx context.Context, id int64) (*orders.Order, error) {
	raw, err := s.rdb.HGet(ctx, KeyOrders, field(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, orders.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	var o orders.Order
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		return nil, fmt.Errorf("decode order %d: %w", id, err)
	}
	return &o, nil
}

func (s *RedisStore) Save(ctx context.Context, order *orders.Order) (*orders.Order, error) {
	saved := *order
	if saved.ID == 0 {
		id, err := s.rdb.Incr(ctx, KeyOrderSeq).Result()
		if err != nil {
			return nil, fmt.Errorf("assign order id: %w", err)
		}
		saved.ID = id
	}

	b, err := json.Marshal(saved)
	if err != nil {
		return nil, err
	}
	if err := s.rdb.HSet(ctx, KeyOrders, field(saved.ID), b).Err(); err != nil {
		return nil, err
	}
	return &saved, nil
}

func (s *RedisStore) DeleteByID(ctx context.Context, id int64) error {
	return s.rdb.HDel(ctx, KeyOrders, field(id)).Err()
}

func (s *RedisStore) ExistsByID(ctx context.Context, id int64) (bool, error) {
	return s.rdb.HExists(ctx, KeyOrders, field(id)).Result()
}

func field(id int64) string { return strconv.FormatInt(id, 10) }
