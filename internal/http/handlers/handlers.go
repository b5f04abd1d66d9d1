package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-relay/internal/domain"
	"github.com/tbourn/go-chat-relay/internal/utils"
)

// MessageStore is the slice of the message store used over HTTP.
type MessageStore interface {
	// Stats returns the message count and newest update of a pair.
	Stats(ctx context.Context, a, b uint) (int64, *time.Time, error)
	// PurgeAll deletes every stored message.
	PurgeAll(ctx context.Context) (int64, error)
}

// Views renders conversation views for one viewer.
type Views interface {
	Inbox(ctx context.Context, userID uint) ([]domain.ConversationSummary, error)
	AdminInbox(ctx context.Context) ([]domain.AdminConversationSummary, error)
	TranscriptPage(ctx context.Context, viewer, peer uint, page int) (domain.TranscriptPage, error)
	// Today is the viewer-local date rendered labels depend on.
	Today() string
}

// Sender stores a message and fans it out to live connections.
type Sender interface {
	Send(ctx context.Context, in domain.NewMessage, key string) (*domain.Message, bool, error)
}

// Handlers groups the REST endpoints.
type Handlers struct {
	msgs   MessageStore
	views  Views
	sender Sender

	// MaintenanceToken, when non-empty, must match X-Maintenance-Token on
	// destructive endpoints.
	MaintenanceToken string
}

// New binds the handlers to their services.
func New(msgs MessageStore, views Views, sender Sender) *Handlers {
	return &Handlers{msgs: msgs, views: views, sender: sender}
}

// queryID reads a positive numeric id from the query string.
func queryID(c *gin.Context, name string) (uint, bool) {
	return utils.ParseID(c.Query(name))
}
