package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"
)

// Listener holds one pooled connection in LISTEN mode and forwards every
// notification on Channel to a Hub. A dropped connection is re-acquired
// with capped exponential backoff until the context ends.
type Listener struct {
	pool   *pgxpool.Pool
	hub    *Hub
	logger *slog.Logger

	// MaxBackoff caps the wait between reconnects.
	MaxBackoff time.Duration
}

// NewListener returns a Listener that publishes into hub.
func NewListener(pool *pgxpool.Pool, hub *Hub, logger *slog.Logger) *Listener {
	return &Listener{pool: pool, hub: hub, logger: logger, MaxBackoff: 30 * time.Second}
}

// Run blocks until ctx is cancelled. It only returns ctx's error.
func (l *Listener) Run(ctx context.Context) error {
	backoff := retry.WithCappedDuration(l.MaxBackoff, retry.NewExponential(250*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.logger.WarnContext(ctx, "change listener lost connection, reconnecting", "error", err)
		return retry.RetryableError(err)
	})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ctx.Err()
	}
	return err
}

func (l *Listener) listen(ctx context.Context) error {
	pooled, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("realtime.Listener.listen: acquire: %w", err)
	}
	// A connection that is still listening must not go back to the pool.
	conn := pooled.Hijack()
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return fmt.Errorf("realtime.Listener.listen: listen: %w", err)
	}
	l.logger.InfoContext(ctx, "change listener ready", "channel", Channel)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("realtime.Listener.listen: wait: %w", err)
		}
		change, err := ParseChange(n.Payload)
		if err != nil {
			l.logger.WarnContext(ctx, "ignoring change notification", "payload", n.Payload, "error", err)
			continue
		}
		delivered := l.hub.Publish(change)
		l.logger.DebugContext(ctx, "change published",
			"carpool_id", change.CarpoolID,
			"collection", change.Collection,
			"delivered", delivered,
		)
	}
}
