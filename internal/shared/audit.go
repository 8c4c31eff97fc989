package shared

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ActivityEntry represents a record stored in activity_log.
type ActivityEntry struct {
	ActorID     int64
	ActorName   string
	ActionType  string
	Module      string
	Description string
	At          time.Time
}

// ActivityLogger writes append-only records into activity_log. Failures are
// reported to the caller but must never abort the surrounding operation.
type ActivityLogger struct {
	pool *pgxpool.Pool
}

// NewActivityLogger returns a new ActivityLogger.
func NewActivityLogger(pool *pgxpool.Pool) *ActivityLogger {
	return &ActivityLogger{pool: pool}
}

// Record persists the log entry.
func (l *ActivityLogger) Record(ctx context.Context, entry ActivityEntry) error {
	if l == nil {
		return errors.New("activity logger not initialised")
	}
	if entry.ActionType == "" || entry.Module == "" {
		return errors.New("activity log requires action_type/module")
	}
	var actorID any
	if entry.ActorID != 0 {
		actorID = entry.ActorID
	}
	_, err := l.pool.Exec(ctx, `INSERT INTO activity_log (user_id, actor_name, action_type, module, description, occurred_at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`,
		actorID, entry.ActorName, entry.ActionType, entry.Module, entry.Description, nullTime(entry.At))
	return err
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
