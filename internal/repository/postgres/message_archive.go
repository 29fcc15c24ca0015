package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"chatapp/internal/domain"
	"chatapp/internal/observability"
)

const (
	archiveQueueSize = 1024
	archiveTimeout   = 5 * time.Second
	messagesPkey     = "chat_messages_pkey"
)

const schema = `
		CREATE TABLE IF NOT EXISTS chat_messages (
			id         UUID PRIMARY KEY,
			room       TEXT NOT NULL,
			username   TEXT NOT NULL,
			body       TEXT NOT NULL,
			is_guest   BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL
		)
	`

const roomIndex = `
		CREATE INDEX IF NOT EXISTS chat_messages_room_created_at_idx
		ON chat_messages (room, created_at)
	`

const insertMessage = `
		INSERT INTO chat_messages (id, room, username, body, is_guest, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

type archivedMessage struct {
	room string
	msg  domain.Message
}

// MessageArchive keeps a write-only audit copy of posted messages. History
// served to clients always comes from memory; the archive is never read
// back.
type MessageArchive struct {
	db    *sql.DB
	tx    *TxManager
	queue chan archivedMessage
}

// NewMessageArchive creates an archive writing to db
func NewMessageArchive(db *sql.DB) *MessageArchive {
	return &MessageArchive{
		db:    db,
		tx:    NewTxManager(db),
		queue: make(chan archivedMessage, archiveQueueSize),
	}
}

// EnsureSchema creates the archive table and its index
func (a *MessageArchive) EnsureSchema(ctx context.Context) error {
	return a.tx.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("failed to create chat_messages table: %w", err)
		}
		if _, err := tx.ExecContext(ctx, roomIndex); err != nil {
			return fmt.Errorf("failed to create chat_messages index: %w", err)
		}
		return nil
	})
}

// Record queues new_message events for archiving; other events are
// ignored. A full queue drops the message.
func (a *MessageArchive) Record(room string, ev domain.Outbound) {
	posted, ok := ev.(domain.NewMessage)
	if !ok {
		return
	}

	select {
	case a.queue <- archivedMessage{room: room, msg: posted.Message}:
	default:
		observability.RecorderDropped.WithLabelValues("postgres").Inc()
		slog.Warn("archive queue full, dropping message",
			slog.String("message_id", posted.ID))
	}
}

// Run writes queued messages until ctx is cancelled, then drains what is
// left in the queue.
func (a *MessageArchive) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			a.drain()
			return ctx.Err()
		case m := <-a.queue:
			if ctx.Err() != nil {
				a.drain(m)
				return ctx.Err()
			}
			a.write(ctx, m)
		}
	}
}

func (a *MessageArchive) drain(pending ...archivedMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()

	for _, m := range pending {
		a.write(ctx, m)
	}
	for {
		select {
		case m := <-a.queue:
			a.write(ctx, m)
		default:
			return
		}
	}
}

func (a *MessageArchive) write(ctx context.Context, m archivedMessage) {
	if err := a.Insert(ctx, m.room, m.msg); err != nil {
		slog.Error("failed to archive message",
			slog.String("message_id", m.msg.ID),
			slog.String("error", err.Error()))
	}
}

// Insert stores one message. Re-inserting an archived id is not an error.
func (a *MessageArchive) Insert(ctx context.Context, room string, msg domain.Message) error {
	ctx, cancel := context.WithTimeout(ctx, archiveTimeout)
	defer cancel()

	start := time.Now()
	_, err := a.db.ExecContext(ctx, insertMessage,
		msg.ID,
		room,
		msg.Username,
		msg.Body,
		msg.IsGuest,
		msg.Timestamp,
	)
	observability.DBQueryDuration.WithLabelValues("insert", "chat_messages").Observe(time.Since(start).Seconds())

	if err != nil {
		if IsUniqueViolation(err, messagesPkey) {
			slog.Debug("message already archived", slog.String("message_id", msg.ID))
			return nil
		}
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}
