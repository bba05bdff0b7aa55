package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/env"
	"github.com/kyle-eros/eros-schedule-generator-sub006/internal/pkg/logger"
)

// NewClient builds a redis client from env and verifies connectivity before
// handing it out.
func NewClient(log *logger.Logger) (*goredis.Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(env.Get("REDIS_ADDR", "localhost:6379", log))
	password := env.Get("REDIS_PASSWORD", "", log)
	db := env.GetInt("REDIS_DB", 0, log)

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Info("Connected to redis", "addr", addr, "db", db)
	return rdb, nil
}
