package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const clientName = "restore-server"

type Client struct {
	*redis.Client
}

// NewClient parses a redis:// or rediss:// URL and pings the server within
// ctx before returning.
func NewClient(ctx context.Context, redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.ClientName = clientName

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}

	return &Client{client}, nil
}

// AdmissionKey is the counter key holding a session's in-flight request count.
func AdmissionKey(sessionToken string) string {
	return "admission:" + sessionToken
}
