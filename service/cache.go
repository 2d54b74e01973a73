package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chaos-io/cutout/config"
	"github.com/chaos-io/cutout/util"
)

const keyPrefix = "cutout:"

// ResultCache stores encoded results keyed by upload hash and operation
// parameters. A disabled cache always misses.
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewResultCache(cfg *config.RedisConfig) *ResultCache {
	if !cfg.Enabled {
		return &ResultCache{}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &ResultCache{
		client: client,
		ttl:    cfg.TTL,
	}
}

func (c *ResultCache) Enabled() bool {
	return c != nil && c.client != nil
}

func (c *ResultCache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Key builds the cache key of one operation on one upload.
func Key(op string, data []byte, params ...string) string {
	var b strings.Builder
	b.WriteString(keyPrefix)
	b.WriteString(op)
	b.WriteByte(':')
	b.WriteString(util.BytesMD5(data))
	for _, p := range params {
		b.WriteByte(':')
		b.WriteString(p)
	}
	return b.String()
}

// Result is one cached response: the PNG body plus the response headers
// that describe it.
type Result struct {
	PNG    []byte
	Header map[string]string
}

// Each entry is a hash so the headers expire together with the image.
const (
	fieldPNG    = "png"
	fieldHeader = "header"
)

// Get returns the entry stored under key; ok is false on a miss.
func (c *ResultCache) Get(ctx context.Context, key string) (res *Result, ok bool, err error) {
	if !c.Enabled() {
		return nil, false, nil
	}
	fields, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, false, err
	}
	data, ok := fields[fieldPNG]
	if !ok {
		return nil, false, nil
	}
	res = &Result{PNG: []byte(data)}
	if h := fields[fieldHeader]; h != "" {
		if err := json.Unmarshal([]byte(h), &res.Header); err != nil {
			return nil, false, fmt.Errorf("decode cached header: %w", err)
		}
	}
	return res, true, nil
}

func (c *ResultCache) Set(ctx context.Context, key string, res *Result) error {
	if !c.Enabled() || res == nil {
		return nil
	}
	header, err := json.Marshal(res.Header)
	if err != nil {
		return err
	}
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldPNG, res.PNG, fieldHeader, header)
		if c.ttl > 0 {
			pipe.Expire(ctx, key, c.ttl)
		}
		return nil
	})
	if err != nil {
		util.Logger.Warn("failed to set cache", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

func (c *ResultCache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}
