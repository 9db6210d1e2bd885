// Package queue is a durable work queue with SQS-like delivery
// semantics: at-least-once, invisible for a visibility timeout after
// each receive, and dead-lettered once the receive count exceeds its
// budget. All state lives in SQLite so workers coordinate only through
// the database.
package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type Message struct {
	ID           string
	Body         string
	ReceiveCount int
	EnqueuedAt   time.Time
}

type Options struct {
	VisibilityTimeout time.Duration
	MaxReceiveCount   int
}

type Queue struct {
	db     *sql.DB
	name   string
	opts   Options
	logger zerolog.Logger
}

func New(db *sql.DB, name string, opts Options, logger zerolog.Logger) *Queue {
	return &Queue{
		db:     db,
		name:   name,
		opts:   opts,
		logger: logger.With().Str("queue", name).Logger(),
	}
}

func (q *Queue) Enqueue(ctx context.Context, body string) error {
	id, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("failed to generate message id: %w", err)
	}

	now := time.Now()
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO queue_messages (id, queue, body, receive_count, visible_at, enqueued_at)
		VALUES (?, ?, ?, 0, ?, ?)`,
		id, q.name, body, now, now)
	if err != nil {
		return fmt.Errorf("failed to enqueue on %s: %w", q.name, err)
	}

	q.logger.Debug().Str("message_id", id).Msg("message enqueued")
	return nil
}

// Receive claims the oldest visible message and hides it for the
// visibility timeout. Messages past their receive budget move to the
// dead-letter table instead of being delivered again. Returns (nil,
// nil) when the queue is empty.
func (q *Queue) Receive(ctx context.Context) (*Message, error) {
	for {
		tx, err := q.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to begin receive: %w", err)
		}

		now := time.Now()
		var msg Message
		err = tx.QueryRowContext(ctx, `
			SELECT id, body, receive_count, enqueued_at
			FROM queue_messages
			WHERE queue = ? AND visible_at <= ?
			ORDER BY enqueued_at, id
			LIMIT 1`, q.name, now).
			Scan(&msg.ID, &msg.Body, &msg.ReceiveCount, &msg.EnqueuedAt)
		if err == sql.ErrNoRows {
			tx.Rollback()
			return nil, nil
		}
		if err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to select message: %w", err)
		}

		if msg.ReceiveCount >= q.opts.MaxReceiveCount {
			if err := q.deadLetter(ctx, tx, &msg, now); err != nil {
				tx.Rollback()
				return nil, err
			}
			if err := tx.Commit(); err != nil {
				return nil, fmt.Errorf("failed to commit dead-letter: %w", err)
			}
			continue
		}

		msg.ReceiveCount++
		_, err = tx.ExecContext(ctx, `
			UPDATE queue_messages SET receive_count = ?, visible_at = ? WHERE id = ?`,
			msg.ReceiveCount, now.Add(q.opts.VisibilityTimeout), msg.ID)
		if err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to claim message %s: %w", msg.ID, err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit receive: %w", err)
		}

		q.logger.Debug().
			Str("message_id", msg.ID).
			Int("receive_count", msg.ReceiveCount).
			Msg("message received")
		return &msg, nil
	}
}

func (q *Queue) deadLetter(ctx context.Context, tx *sql.Tx, msg *Message, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO dead_letters (id, queue, body, receive_count, enqueued_at, dead_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, q.name, msg.Body, msg.ReceiveCount, msg.EnqueuedAt, now)
	if err != nil {
		return fmt.Errorf("failed to dead-letter message %s: %w", msg.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM queue_messages WHERE id = ?`, msg.ID); err != nil {
		return fmt.Errorf("failed to remove dead-lettered message %s: %w", msg.ID, err)
	}

	q.logger.Warn().
		Str("message_id", msg.ID).
		Int("receive_count", msg.ReceiveCount).
		Msg("message dead-lettered")
	return nil
}

// Ack deletes a processed message.
func (q *Queue) Ack(ctx context.Context, id string) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM queue_messages WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to ack message %s: %w", id, err)
	}
	return nil
}

// Nack makes a message immediately visible again for redelivery.
func (q *Queue) Nack(ctx context.Context, id string) error {
	if _, err := q.db.ExecContext(ctx, `
		UPDATE queue_messages SET visible_at = ? WHERE id = ?`, time.Now(), id); err != nil {
		return fmt.Errorf("failed to nack message %s: %w", id, err)
	}
	return nil
}

// Depth counts messages still on the queue, visible or not.
func (q *Queue) Depth(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM queue_messages WHERE queue = ?`, q.name).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count queue %s: %w", q.name, err)
	}
	return n, nil
}

// DeadLetterDepth counts messages parked on the dead-letter table.
func (q *Queue) DeadLetterDepth(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letters WHERE queue = ?`, q.name).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count dead letters for %s: %w", q.name, err)
	}
	return n, nil
}
