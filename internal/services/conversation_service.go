// Package services – ConversationService
//
// This file implements ConversationService, which derives the per-user
// inbox, the system-wide admin inbox and viewer-relative transcripts from
// the message log on demand. Nothing here is cached: every call reflects the
// store at call time.
//
// Rendering rules:
//   - preview: image, then file, then text, else ""
//   - attachment and avatar URLs are absolute (ServiceURL + stored path)
//   - missing users fall back to "User <id>" and the default avatar
//   - rows are ordered newest activity first; ties by newest message id,
//     then counterpart id (user inbox) or pair key (admin inbox) ascending
package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/text/cases"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-relay/internal/domain"
	"github.com/tbourn/go-chat-relay/internal/repo"
	"github.com/tbourn/go-chat-relay/internal/timefmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TranscriptCursorSize is the page size of cursor-mode transcripts.
	TranscriptCursorSize = 15
	// TranscriptPageSize is the page size of the HTTP history endpoint.
	TranscriptPageSize = 16

	defaultAvatarPath = "/default-profile.png"
)

// ConversationService computes conversation views.
type ConversationService struct {
	DB       *gorm.DB
	Messages *MessageService
	// ServiceURL prefixes every stored path returned to clients.
	ServiceURL string
	Clock      timefmt.Clock
}

// NewConversationService wires a ConversationService over msgs.
func NewConversationService(msgs *MessageService, serviceURL string, clock timefmt.Clock) *ConversationService {
	return &ConversationService{
		DB:         msgs.DB,
		Messages:   msgs,
		ServiceURL: strings.TrimRight(serviceURL, "/"),
		Clock:      clock,
	}
}

func (s *ConversationService) tracer() trace.Tracer {
	return otel.Tracer("services/ConversationService")
}

func (s *ConversationService) absolute(p *string) *string {
	if p == nil || strings.TrimSpace(*p) == "" {
		return nil
	}
	u := s.ServiceURL + *p
	return &u
}

func (s *ConversationService) avatar(u domain.User, ok bool) string {
	if ok && strings.TrimSpace(u.ProfilePicture) != "" {
		return s.ServiceURL + u.ProfilePicture
	}
	return s.ServiceURL + defaultAvatarPath
}

func displayName(u domain.User, ok bool, id uint) string {
	if ok && strings.TrimSpace(u.Name) != "" {
		return u.Name
	}
	return fmt.Sprintf("User %d", id)
}

// Inbox lists every conversation of userID, one row per counterpart.
func (s *ConversationService) Inbox(ctx context.Context, userID uint) ([]domain.ConversationSummary, error) {
	ctx, span := s.tracer().Start(ctx, "Inbox", trace.WithAttributes(attribute.Int64("user.id", int64(userID))))
	defer span.End()

	if userID == 0 {
		return []domain.ConversationSummary{}, nil
	}

	heads, err := repo.ConversationHeads(ctx, s.DB, userID)
	if err != nil {
		return nil, fmt.Errorf("inbox heads: %w", err)
	}
	// a self-conversation is not listed
	heads = lo.Filter(heads, func(h repo.ConversationHead, _ int) bool {
		return h.Pair.Contains(userID) && h.Pair.Other(userID) != userID
	})
	if len(heads) == 0 {
		return []domain.ConversationSummary{}, nil
	}

	last, err := repo.GetMessagesByIDs(ctx, s.DB, lo.Map(heads, func(h repo.ConversationHead, _ int) uint { return h.LastID }))
	if err != nil {
		return nil, fmt.Errorf("inbox last messages: %w", err)
	}
	unread, err := repo.UnreadBySender(ctx, s.DB, userID)
	if err != nil {
		return nil, fmt.Errorf("inbox unread: %w", err)
	}
	counterparts := lo.Map(heads, func(h repo.ConversationHead, _ int) uint { return h.Pair.Other(userID) })
	users, err := repo.GetUsersByIDs(ctx, s.DB, counterparts)
	if err != nil {
		return nil, fmt.Errorf("inbox users: %w", err)
	}

	now := s.Clock.Now()
	out := make([]domain.ConversationSummary, 0, len(heads))
	for _, h := range heads {
		other := h.Pair.Other(userID)
		m := last[h.LastID]
		u, ok := users[other]

		userType := domain.RoleUser
		if ok && u.UserType != "" {
			userType = u.UserType
		}
		lastSeen := ""
		if ok && u.LastSeenTime != nil {
			lastSeen = timefmt.LastSeen(*u.LastSeenTime, now)
		}

		row := domain.ConversationSummary{
			UserID:           other,
			Name:             displayName(u, ok, other),
			ProfilePicture:   s.avatar(u, ok),
			UserType:         userType,
			IsOnline:         ok && u.IsOnline,
			LastSeenTime:     lastSeen,
			LastMessage:      m.Preview(),
			LastMessageImage: s.absolute(m.Image),
			LastMessageFile:  s.absolute(m.File),
			LastMessageTime:  timefmt.Summary(m.CreatedAt, now),
			UnreadCount:      unread[other],
			DateTime:         m.CreatedAt,
		}
		out = append(out, row.WithLastMessageID(h.LastID))
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.DateTime.Equal(b.DateTime) {
			return a.DateTime.After(b.DateTime)
		}
		if a.LastMessageID() != b.LastMessageID() {
			return a.LastMessageID() > b.LastMessageID()
		}
		return a.UserID < b.UserID
	})
	return out, nil
}

// AdminInbox lists every conversation in the store, one row per unordered
// pair, with counts of messages no admin has looked at yet.
func (s *ConversationService) AdminInbox(ctx context.Context) ([]domain.AdminConversationSummary, error) {
	ctx, span := s.tracer().Start(ctx, "AdminInbox")
	defer span.End()

	heads, err := repo.ConversationHeads(ctx, s.DB, 0)
	if err != nil {
		return nil, fmt.Errorf("admin inbox heads: %w", err)
	}
	if len(heads) == 0 {
		return []domain.AdminConversationSummary{}, nil
	}

	last, err := repo.GetMessagesByIDs(ctx, s.DB, lo.Map(heads, func(h repo.ConversationHead, _ int) uint { return h.LastID }))
	if err != nil {
		return nil, fmt.Errorf("admin inbox last messages: %w", err)
	}
	unread, err := repo.AdminUnreadByPair(ctx, s.DB)
	if err != nil {
		return nil, fmt.Errorf("admin inbox unread: %w", err)
	}
	ids := lo.Uniq(lo.FlatMap(heads, func(h repo.ConversationHead, _ int) []uint { return []uint{h.Pair.Low, h.Pair.High} }))
	users, err := repo.GetUsersByIDs(ctx, s.DB, ids)
	if err != nil {
		return nil, fmt.Errorf("admin inbox users: %w", err)
	}

	now := s.Clock.Now()
	out := make([]domain.AdminConversationSummary, 0, len(heads))
	for _, h := range heads {
		m := last[h.LastID]
		ua, okA := users[h.Pair.Low]
		ub, okB := users[h.Pair.High]
		row := domain.AdminConversationSummary{
			UserAID:             h.Pair.Low,
			UserAName:           displayName(ua, okA, h.Pair.Low),
			UserAProfile:        s.avatar(ua, okA),
			UserBID:             h.Pair.High,
			UserBName:           displayName(ub, okB, h.Pair.High),
			UserBProfile:        s.avatar(ub, okB),
			LastMessage:         m.Preview(),
			LastMessageSenderID: m.SenderID,
			LastMessageImage:    s.absolute(m.Image),
			LastMessageFile:     s.absolute(m.File),
			LastMessageTime:     timefmt.Summary(m.CreatedAt, now),
			UnreadAdminCount:    unread[h.Pair],
			DateTime:            m.CreatedAt,
		}
		out = append(out, row.WithLastMessageID(h.LastID))
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.DateTime.Equal(b.DateTime) {
			return a.DateTime.After(b.DateTime)
		}
		if a.LastMessageID() != b.LastMessageID() {
			return a.LastMessageID() > b.LastMessageID()
		}
		return a.Pair().Less(b.Pair())
	})
	return out, nil
}

func (s *ConversationService) view(m domain.Message, viewer uint) domain.MessageView {
	return domain.MessageView{
		ID:          m.ID,
		SenderID:    m.SenderID,
		ReceiverID:  m.ReceiverID,
		Message:     m.Body,
		Image:       s.absolute(m.Image),
		File:        s.absolute(m.File),
		FileName:    m.FileName,
		FileSize:    m.FileSize,
		IsDelivered: m.IsDelivered,
		IsRead:      m.IsRead,
		IsAdminRead: m.IsAdminRead,
		IsMine:      m.SenderID == viewer,
		CreatedAt:   timefmt.Transcript(m.CreatedAt, s.Clock.Now()),
		DateTime:    m.CreatedAt,
	}
}

// Transcript returns up to 15 messages between viewer and peer strictly
// older than beforeID (0 = newest), oldest first. Concatenating successive
// calls that pass the first id of the previous result yields the whole
// history without gaps or duplicates.
func (s *ConversationService) Transcript(ctx context.Context, viewer, peer, beforeID uint) ([]domain.MessageView, error) {
	ctx, span := s.tracer().Start(ctx, "Transcript",
		trace.WithAttributes(
			attribute.Int64("viewer.id", int64(viewer)),
			attribute.Int64("peer.id", int64(peer)),
			attribute.Int64("before.id", int64(beforeID)),
		),
	)
	defer span.End()

	if viewer == 0 || peer == 0 {
		return nil, ErrMissingParticipant
	}
	if beforeID > 0 {
		ok, err := repo.PairHasMessage(ctx, s.DB, viewer, peer, beforeID)
		if err != nil {
			return nil, fmt.Errorf("transcript anchor: %w", err)
		}
		if !ok {
			return nil, ErrAnchorNotFound
		}
	}
	rows, err := s.Messages.HistoryBefore(ctx, viewer, peer, beforeID, TranscriptCursorSize)
	if err != nil {
		return nil, err
	}
	return lo.Map(rows, func(m domain.Message, _ int) domain.MessageView { return s.view(m, viewer) }), nil
}

// Today returns the current date in the rendering location. Time labels
// change when it does.
func (s *ConversationService) Today() string {
	return s.Clock.Now().Format("2006-01-02")
}

// TranscriptPage returns page (1-based, newest first) of the conversation
// between viewer and peer with pagination metadata.
func (s *ConversationService) TranscriptPage(ctx context.Context, viewer, peer uint, page int) (domain.TranscriptPage, error) {
	ctx, span := s.tracer().Start(ctx, "TranscriptPage",
		trace.WithAttributes(
			attribute.Int64("viewer.id", int64(viewer)),
			attribute.Int64("peer.id", int64(peer)),
			attribute.Int("page", page),
		),
	)
	defer span.End()

	if viewer == 0 || peer == 0 {
		return domain.TranscriptPage{}, ErrMissingParticipant
	}
	rows, total, err := s.Messages.HistoryPage(ctx, viewer, peer, page, TranscriptPageSize)
	if err != nil {
		return domain.TranscriptPage{}, err
	}
	pages := int(math.Ceil(float64(total) / float64(TranscriptPageSize)))
	return domain.TranscriptPage{
		Pagination: domain.PageInfo{
			CurrentPage:   page,
			TotalPages:    pages,
			PerPage:       TranscriptPageSize,
			TotalMessages: total,
			HasNext:       page < pages,
			HasPrevious:   page > 1,
		},
		Messages: lo.Map(rows, func(m domain.Message, _ int) domain.MessageView { return s.view(m, viewer) }),
	}, nil
}

func fold(s string) string { return cases.Fold().String(s) }

// SearchInbox filters the inbox of userID by counterpart name,
// case-insensitively. Blank text returns the full inbox.
func (s *ConversationService) SearchInbox(ctx context.Context, userID uint, text string) ([]domain.ConversationSummary, error) {
	list, err := s.Inbox(ctx, userID)
	if err != nil {
		return nil, err
	}
	needle := fold(strings.TrimSpace(text))
	if needle == "" {
		return list, nil
	}
	return lo.Filter(list, func(c domain.ConversationSummary, _ int) bool {
		return strings.Contains(fold(c.Name), needle)
	}), nil
}

// SearchAdminInbox filters the admin inbox by either participant's name or
// the last-message preview. Blank text matches nothing.
func (s *ConversationService) SearchAdminInbox(ctx context.Context, text string) ([]domain.AdminConversationSummary, error) {
	needle := fold(strings.TrimSpace(text))
	if needle == "" {
		return []domain.AdminConversationSummary{}, nil
	}
	list, err := s.AdminInbox(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Filter(list, func(c domain.AdminConversationSummary, _ int) bool {
		return strings.Contains(fold(c.UserAName), needle) ||
			strings.Contains(fold(c.UserBName), needle) ||
			strings.Contains(fold(c.LastMessage), needle)
	}), nil
}
