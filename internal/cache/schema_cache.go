package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// SchemaCache stores the rendered schema description of a storage table.
// Storage tables never change after ingestion, so entries only expire.
type SchemaCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewSchemaCache(client *redisv9.Client, ttl time.Duration) *SchemaCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SchemaCache{client: client, ttl: ttl}
}

func (c *SchemaCache) Get(ctx context.Context, table string) (string, bool, error) {
	if c == nil || c.client == nil {
		return "", false, nil
	}
	raw, err := c.client.Get(ctx, schemaKey(table)).Result()
	if errors.Is(err, redisv9.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get schema failed: %w", err)
	}
	return raw, true, nil
}

func (c *SchemaCache) Set(ctx context.Context, table, schema string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Set(ctx, schemaKey(table), schema, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set schema failed: %w", err)
	}
	return nil
}

func (c *SchemaCache) Delete(ctx context.Context, table string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, schemaKey(table)).Err(); err != nil {
		return fmt.Errorf("redis delete schema failed: %w", err)
	}
	return nil
}

func schemaKey(table string) string {
	return "analyst:schema:" + table
}
