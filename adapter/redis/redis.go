// Package redis implements a Redis pub/sub transcript publisher.
//
// Publishes transcript updates as JSON to a configurable Redis channel.
// Retries with exponential backoff on connection errors.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pithecene-io/runnel/adapter"
)

// DefaultChannel is the default pub/sub channel name.
const DefaultChannel = "runnel:transcript"

// DefaultTimeout is the default per-publish timeout.
const DefaultTimeout = 5 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// Config configures the Redis publisher.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Channel is the pub/sub channel name (default: runnel:transcript).
	Channel string
	// PerSession additionally publishes each session's slice of the
	// transcript to "<Channel>:<session>".
	PerSession bool
	// Timeout is the per-publish timeout (default 5s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure (default 3).
	Retries int
	// Backoff is the base retry delay (default 500ms).
	Backoff time.Duration
}

// Publisher publishes transcript updates via Redis PUBLISH.
type Publisher struct {
	config Config
	client *goredis.Client
}

// New creates a Redis publisher from the given config.
// Returns an error if the URL is empty or invalid.
func New(cfg Config) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis publisher requires a URL")
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis publisher: invalid URL: %w", err)
	}

	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = adapter.DefaultBackoff
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}

	return &Publisher{
		config: cfg,
		client: goredis.NewClient(opts),
	}, nil
}

// Publish sends the update as a JSON PUBLISH to the configured channel, then
// to each per-session channel when enabled.
func (p *Publisher) Publish(ctx context.Context, update *adapter.TranscriptUpdate) error {
	if err := p.publish(ctx, p.config.Channel, update); err != nil {
		return err
	}
	if !p.config.PerSession {
		return nil
	}
	for _, session := range update.Sessions() {
		if err := p.publish(ctx, SessionChannel(p.config.Channel, session), update.ForSession(session)); err != nil {
			return err
		}
	}
	return nil
}

// SessionChannel returns the per-session channel name.
func SessionChannel(channel, session string) string {
	return channel + ":" + session
}

// publish marshals and sends one message, retrying with exponential backoff.
func (p *Publisher) publish(ctx context.Context, channel string, update *adapter.TranscriptUpdate) error {
	body, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("redis: marshal update: %w", err)
	}

	var lastErr error
	// attempts = 1 initial + retries
	attempts := 1 + p.config.Retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("redis: context canceled: %w", err)
		}

		// Exponential backoff before retries (not before first attempt)
		if i > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("redis: context canceled during backoff: %w", ctx.Err())
			case <-time.After(adapter.RetryDelay(i, p.config.Backoff)):
			}
		}

		publishCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
		lastErr = p.client.Publish(publishCtx, channel, body).Err()
		cancel()

		if lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("redis: failed after %d attempts: %w", attempts, lastErr)
}

// Close releases publisher resources.
func (p *Publisher) Close() error {
	return p.client.Close()
}

// Verify Publisher implements the adapter interface.
var _ adapter.Publisher = (*Publisher)(nil)
