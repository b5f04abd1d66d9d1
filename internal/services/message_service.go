// Package services – MessageService
//
// This file implements MessageService, the append-only message log shared by
// the realtime router and the HTTP API. It validates new messages, stamps
// the delivered flag from live presence, flips the three monotonic status
// flags with single conditional UPDATEs and serves both history shapes:
// cursor-by-id for live fetches and offset pages for the HTTP endpoint.
//
// Observability: all public methods are OpenTelemetry-instrumented.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-relay/internal/domain"
	"github.com/tbourn/go-chat-relay/internal/observability"
	"github.com/tbourn/go-chat-relay/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// idempotency records store the HTTP status of the original response
	statusCreated = 201

	defaultIdempotencyTTL = 24 * time.Hour
)

// PresenceChecker reports whether a user currently has a live connection.
type PresenceChecker interface {
	IsRegistered(userID uint) bool
}

// MessageService owns message persistence.
type MessageService struct {
	DB *gorm.DB
	// Presence decides the delivered flag at creation. Nil means nobody is
	// online.
	Presence PresenceChecker
	// IdempotencyTTL bounds how long an Idempotency-Key replays the original
	// message. Zero uses 24h.
	IdempotencyTTL time.Duration
}

func (s *MessageService) tracer() trace.Tracer { return otel.Tracer("services/MessageService") }

func validateNew(in domain.NewMessage) error {
	if in.SenderID == 0 || in.ReceiverID == 0 {
		return ErrMissingParticipant
	}
	if !in.HasContent() {
		return ErrEmptyContent
	}
	return nil
}

func kindOf(m *domain.Message) string {
	switch {
	case m.HasImage():
		return "image"
	case m.HasFile():
		return "file"
	default:
		return "text"
	}
}

func (s *MessageService) delivered(receiverID uint) bool {
	return s.Presence != nil && s.Presence.IsRegistered(receiverID)
}

// Append validates and persists a new message. The message is delivered
// at creation iff the receiver is registered right now.
func (s *MessageService) Append(ctx context.Context, in domain.NewMessage) (*domain.Message, error) {
	ctx, span := s.tracer().Start(ctx, "Append",
		trace.WithAttributes(
			attribute.Int64("sender.id", int64(in.SenderID)),
			attribute.Int64("receiver.id", int64(in.ReceiverID)),
		),
	)
	defer span.End()

	if err := validateNew(in); err != nil {
		return nil, err
	}
	m, err := repo.CreateMessage(ctx, s.DB, in, s.delivered(in.ReceiverID))
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	observability.MessagesPersisted.WithLabelValues(kindOf(m)).Inc()
	return m, nil
}

// AppendIdempotent behaves like Append but records key for the
// (sender, receiver) pair. A retry with the same key inside the TTL returns
// the originally created message and replayed=true instead of appending
// again. An empty key degrades to Append.
func (s *MessageService) AppendIdempotent(ctx context.Context, in domain.NewMessage, key string) (*domain.Message, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		m, err := s.Append(ctx, in)
		return m, false, err
	}

	ctx, span := s.tracer().Start(ctx, "AppendIdempotent",
		trace.WithAttributes(
			attribute.Int64("sender.id", int64(in.SenderID)),
			attribute.Int64("receiver.id", int64(in.ReceiverID)),
		),
	)
	defer span.End()

	if err := validateNew(in); err != nil {
		return nil, false, err
	}
	if m, err := s.replay(ctx, in, key); err != nil || m != nil {
		return m, m != nil, err
	}

	ttl := s.IdempotencyTTL
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	var created *domain.Message
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// an expired record still holds the unique key
		if _, err := repo.DeleteExpiredIdempotency(ctx, tx, time.Now().UTC()); err != nil {
			return err
		}
		m, err := repo.CreateMessage(ctx, tx, in, s.delivered(in.ReceiverID))
		if err != nil {
			return err
		}
		if _, err := repo.CreateIdempotency(ctx, tx, in.SenderID, in.ReceiverID, key, m.ID, statusCreated, ttl); err != nil {
			return err
		}
		created = m
		return nil
	})
	if errors.Is(err, repo.ErrDuplicate) {
		// lost a race against a concurrent request with the same key
		m, rerr := s.replay(ctx, in, key)
		if rerr != nil {
			return nil, false, rerr
		}
		if m != nil {
			return m, true, nil
		}
	}
	if err != nil {
		return nil, false, fmt.Errorf("append message: %w", err)
	}
	observability.MessagesPersisted.WithLabelValues(kindOf(created)).Inc()
	return created, false, nil
}

func (s *MessageService) replay(ctx context.Context, in domain.NewMessage, key string) (*domain.Message, error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, in.SenderID, in.ReceiverID, key, time.Now().UTC())
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}
	m, err := repo.GetMessage(ctx, s.DB, rec.MessageID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("idempotency message: %w", err)
	}
	return m, nil
}

// Get returns a message by id or ErrMessageNotFound.
func (s *MessageService) Get(ctx context.Context, id uint) (*domain.Message, error) {
	ctx, span := s.tracer().Start(ctx, "Get", trace.WithAttributes(attribute.Int64("message.id", int64(id))))
	defer span.End()

	m, err := repo.GetMessage(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

// MarkDelivered flips every pending message addressed to receiverID.
func (s *MessageService) MarkDelivered(ctx context.Context, receiverID uint) (int64, error) {
	ctx, span := s.tracer().Start(ctx, "MarkDelivered", trace.WithAttributes(attribute.Int64("receiver.id", int64(receiverID))))
	defer span.End()

	n, err := repo.MarkDelivered(ctx, s.DB, receiverID)
	if err != nil {
		return 0, fmt.Errorf("mark delivered: %w", err)
	}
	return n, nil
}

// MarkRead flips is_read on messages sent by senderID to receiverID.
// Calling it again changes nothing.
func (s *MessageService) MarkRead(ctx context.Context, senderID, receiverID uint) (int64, error) {
	ctx, span := s.tracer().Start(ctx, "MarkRead",
		trace.WithAttributes(
			attribute.Int64("sender.id", int64(senderID)),
			attribute.Int64("receiver.id", int64(receiverID)),
		),
	)
	defer span.End()

	if senderID == 0 || receiverID == 0 {
		return 0, ErrMissingParticipant
	}
	n, err := repo.MarkRead(ctx, s.DB, senderID, receiverID)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return n, nil
}

// MarkAdminRead flips is_admin_read on both directions of a conversation.
func (s *MessageService) MarkAdminRead(ctx context.Context, a, b uint) (int64, error) {
	ctx, span := s.tracer().Start(ctx, "MarkAdminRead",
		trace.WithAttributes(attribute.String("pair", domain.NewPairKey(a, b).String())),
	)
	defer span.End()

	if a == 0 || b == 0 {
		return 0, ErrMissingParticipant
	}
	n, err := repo.MarkAdminRead(ctx, s.DB, a, b)
	if err != nil {
		return 0, fmt.Errorf("mark admin read: %w", err)
	}
	return n, nil
}

// HistoryBefore returns up to limit messages of the conversation strictly
// older than beforeID (0 = newest), in chronological order.
func (s *MessageService) HistoryBefore(ctx context.Context, a, b, beforeID uint, limit int) ([]domain.Message, error) {
	ctx, span := s.tracer().Start(ctx, "HistoryBefore",
		trace.WithAttributes(
			attribute.String("pair", domain.NewPairKey(a, b).String()),
			attribute.Int64("before.id", int64(beforeID)),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	if limit <= 0 {
		limit = TranscriptCursorSize
	}
	rows, err := repo.ListPairBefore(ctx, s.DB, a, b, beforeID, limit)
	if err != nil {
		return nil, fmt.Errorf("history before: %w", err)
	}
	lo.Reverse(rows)
	return rows, nil
}

// HistoryPage returns one offset page (1-based) of the conversation in
// chronological order within the page, plus the conversation total. Page 1
// holds the newest messages.
func (s *MessageService) HistoryPage(ctx context.Context, a, b uint, page, pageSize int) ([]domain.Message, int64, error) {
	ctx, span := s.tracer().Start(ctx, "HistoryPage",
		trace.WithAttributes(
			attribute.String("pair", domain.NewPairKey(a, b).String()),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		return nil, 0, ErrInvalidPage
	}
	if pageSize <= 0 {
		pageSize = TranscriptPageSize
	}
	total, err := repo.CountPair(ctx, s.DB, a, b)
	if err != nil {
		return nil, 0, fmt.Errorf("history count: %w", err)
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}
	rows, err := repo.ListPairPage(ctx, s.DB, a, b, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("history page: %w", err)
	}
	lo.Reverse(rows)
	return rows, total, nil
}

// Stats returns the message count and latest update time of a
// conversation, for conditional HTTP responses.
func (s *MessageService) Stats(ctx context.Context, a, b uint) (int64, *time.Time, error) {
	return repo.PairStats(ctx, s.DB, a, b)
}

// PurgeAll deletes every message. Administrative use only.
func (s *MessageService) PurgeAll(ctx context.Context) (int64, error) {
	ctx, span := s.tracer().Start(ctx, "PurgeAll")
	defer span.End()

	n, err := repo.PurgeAll(ctx, s.DB)
	if err != nil {
		return 0, fmt.Errorf("purge messages: %w", err)
	}
	return n, nil
}
