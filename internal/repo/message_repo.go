// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model: appends, monotonic flag flips, two-party history queries and the
// grouped aggregates the conversation views are computed from.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They contain no business rules.
//
// Error semantics:
//   - A missing row surfaces as gorm.ErrRecordNotFound (exported as ErrNotFound).
//   - Other DB errors are propagated unchanged.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-relay/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// pairScope restricts a query to messages exchanged between a and b in either
// direction.
func pairScope(a, b uint) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		return q.Where("((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))", a, b, b, a)
	}
}

// CreateMessage inserts a new message row. Read flags always start false.
func CreateMessage(ctx context.Context, db *gorm.DB, in domain.NewMessage, delivered bool) (*domain.Message, error) {
	m := &domain.Message{
		SenderID:    in.SenderID,
		ReceiverID:  in.ReceiverID,
		Body:        in.Body,
		Image:       in.Image,
		File:        in.File,
		FileName:    in.FileName,
		FileSize:    in.FileSize,
		IsDelivered: delivered,
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// GetMessage fetches a message by ID or returns ErrNotFound.
func GetMessage(ctx context.Context, db *gorm.DB, id uint) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// MarkDelivered flips is_delivered on every undelivered message addressed to
// receiverID and returns the number of rows changed.
func MarkDelivered(ctx context.Context, db *gorm.DB, receiverID uint) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("receiver_id = ? AND is_delivered = ?", receiverID, false).
		Update("is_delivered", true)
	return res.RowsAffected, res.Error
}

// MarkRead flips is_read on unread messages sent by senderID to receiverID.
func MarkRead(ctx context.Context, db *gorm.DB, senderID, receiverID uint) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("sender_id = ? AND receiver_id = ? AND is_read = ?", senderID, receiverID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// MarkAdminRead flips is_admin_read on both directions of the pair (a, b).
func MarkAdminRead(ctx context.Context, db *gorm.DB, a, b uint) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Scopes(pairScope(a, b)).
		Where("is_admin_read = ?", false).
		Update("is_admin_read", true)
	return res.RowsAffected, res.Error
}

// ListPairBefore returns up to limit messages of the pair ordered newest
// first. beforeID = 0 starts from the latest message; otherwise only ids
// strictly lower than beforeID are returned.
func ListPairBefore(ctx context.Context, db *gorm.DB, a, b, beforeID uint, limit int) ([]domain.Message, error) {
	var out []domain.Message
	q := db.WithContext(ctx).Scopes(pairScope(a, b))
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}
	err := q.Order("id DESC").Limit(limit).Find(&out).Error
	return out, err
}

// ListPairPage returns one offset page of the pair ordered newest first.
func ListPairPage(ctx context.Context, db *gorm.DB, a, b uint, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Scopes(pairScope(a, b)).
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountPair returns the number of messages exchanged between a and b.
func CountPair(ctx context.Context, db *gorm.DB, a, b uint) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Scopes(pairScope(a, b)).
		Count(&total).Error
	return total, err
}

// PairHasMessage reports whether message id belongs to the pair (a, b).
func PairHasMessage(ctx context.Context, db *gorm.DB, a, b, id uint) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Scopes(pairScope(a, b)).
		Where("id = ?", id).
		Count(&n).Error
	return n > 0, err
}

// ConversationHead is the newest message id of one conversation.
type ConversationHead struct {
	Pair   domain.PairKey
	LastID uint
}

type directedHead struct {
	SenderID   uint
	ReceiverID uint
	LastID     uint
}

// ConversationHeads returns one entry per conversation with its newest
// message id. userID = 0 covers every conversation in the store; otherwise
// only conversations involving userID are returned. Result order is
// unspecified.
func ConversationHeads(ctx context.Context, db *gorm.DB, userID uint) ([]ConversationHead, error) {
	var rows []directedHead
	q := db.WithContext(ctx).
		Model(&domain.Message{}).
		Select("sender_id, receiver_id, MAX(id) AS last_id")
	if userID != 0 {
		q = q.Where("sender_id = ? OR receiver_id = ?", userID, userID)
	}
	if err := q.Group("sender_id, receiver_id").Scan(&rows).Error; err != nil {
		return nil, err
	}

	heads := make(map[domain.PairKey]uint, len(rows))
	for _, r := range rows {
		k := domain.NewPairKey(r.SenderID, r.ReceiverID)
		if r.LastID > heads[k] {
			heads[k] = r.LastID
		}
	}
	out := make([]ConversationHead, 0, len(heads))
	for k, id := range heads {
		out = append(out, ConversationHead{Pair: k, LastID: id})
	}
	return out, nil
}

// GetMessagesByIDs loads the given messages keyed by id.
func GetMessagesByIDs(ctx context.Context, db *gorm.DB, ids []uint) (map[uint]domain.Message, error) {
	out := make(map[uint]domain.Message, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []domain.Message
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, m := range rows {
		out[m.ID] = m
	}
	return out, nil
}

// UnreadBySender counts unread messages addressed to receiverID, grouped by
// sender.
func UnreadBySender(ctx context.Context, db *gorm.DB, receiverID uint) (map[uint]int64, error) {
	var rows []struct {
		SenderID uint
		N        int64
	}
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Select("sender_id, COUNT(*) AS n").
		Where("receiver_id = ? AND is_read = ?", receiverID, false).
		Group("sender_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uint]int64, len(rows))
	for _, r := range rows {
		out[r.SenderID] = r.N
	}
	return out, nil
}

// AdminUnreadByPair counts messages not yet seen by an admin, grouped by
// conversation.
func AdminUnreadByPair(ctx context.Context, db *gorm.DB) (map[domain.PairKey]int64, error) {
	var rows []struct {
		SenderID   uint
		ReceiverID uint
		N          int64
	}
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Select("sender_id, receiver_id, COUNT(*) AS n").
		Where("is_admin_read = ?", false).
		Group("sender_id, receiver_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[domain.PairKey]int64, len(rows))
	for _, r := range rows {
		out[domain.NewPairKey(r.SenderID, r.ReceiverID)] += r.N
	}
	return out, nil
}

// PurgeAll deletes every message and every idempotency record pointing at
// one, returning the number of messages removed.
func PurgeAll(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		res := all.Delete(&domain.Message{})
		if res.Error != nil {
			return res.Error
		}
		n = res.RowsAffected
		return all.Delete(&domain.Idempotency{}).Error
	})
	return n, err
}
