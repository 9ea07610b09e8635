package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/daybook-dev/daybook/internal/core/domain"
)

// Client wraps Redis operations for the collector's caches: discovered
// project lists and rendered reports.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Key helpers
func projectsKey(source string) string {
	return fmt.Sprintf("daybook:projects:%s", source)
}

func reportKey(day, format string) string {
	return fmt.Sprintf("daybook:report:%s:%s", day, format)
}

// CacheProjects stores a source's discovered project list.
func (c *Client) CacheProjects(ctx context.Context, source string, projects []domain.ProjectRef, ttl time.Duration) error {
	data, err := json.Marshal(projects)
	if err != nil {
		return fmt.Errorf("failed to marshal projects: %w", err)
	}
	return c.rdb.Set(ctx, projectsKey(source), data, ttl).Err()
}

// Projects returns the cached project list for a source, with found=false
// on a cache miss.
func (c *Client) Projects(ctx context.Context, source string) ([]domain.ProjectRef, bool, error) {
	data, err := c.rdb.Get(ctx, projectsKey(source)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var projects []domain.ProjectRef
	if err := json.Unmarshal(data, &projects); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal projects: %w", err)
	}
	return projects, true, nil
}

// InvalidateProjects drops a source's cached project list.
func (c *Client) InvalidateProjects(ctx context.Context, source string) error {
	return c.rdb.Del(ctx, projectsKey(source)).Err()
}

// CacheReport stores a rendered report for a day.
func (c *Client) CacheReport(ctx context.Context, day, format, content string, ttl time.Duration) error {
	return c.rdb.Set(ctx, reportKey(day, format), content, ttl).Err()
}

// Report returns the cached rendered report for a day, with found=false
// on a cache miss.
func (c *Client) Report(ctx context.Context, day, format string) (string, bool, error) {
	content, err := c.rdb.Get(ctx, reportKey(day, format)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return content, true, nil
}
