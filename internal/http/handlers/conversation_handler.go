// Conversation HTTP handlers.
//
//   - GET /conversations?user_id  (inbox of one user)
//   - GET /conversations/admin    (system-wide admin inbox)
//
// Both return the same rows the live get_main_chat and get_admin_main_chat
// events push.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-relay/internal/domain"
)

// InboxResponse lists the conversations of one user.
type InboxResponse struct {
	Success       bool                         `json:"success" example:"true"`
	Conversations []domain.ConversationSummary `json:"conversations"`
}

// AdminInboxResponse lists every conversation pair.
type AdminInboxResponse struct {
	Success       bool                              `json:"success" example:"true"`
	Conversations []domain.AdminConversationSummary `json:"conversations"`
}

// ListConversations godoc
// @ID          listConversations
// @Summary     Inbox of a user
// @Description One row per counterpart, newest activity first, with unread counts.
// @Tags        Conversations
// @Produce     json
// @Param       user_id  query  int  true  "User id"  minimum(1)
// @Success     200  {object}  handlers.InboxResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /conversations [get]
func (h *Handlers) ListConversations(c *gin.Context) {
	userID, found := queryID(c, "user_id")
	if !found {
		fail(c, http.StatusBadRequest, ErrCodeMissingParams, "user_id is required")
		return
	}
	rows, err := h.views.Inbox(c.Request.Context(), userID)
	if err != nil {
		failErr(c, err, http.StatusInternalServerError, ErrCodeInboxFailed, "Failed to fetch main chat")
		return
	}
	if rows == nil {
		rows = []domain.ConversationSummary{}
	}
	ok(c, http.StatusOK, InboxResponse{Success: true, Conversations: rows})
}

// ListAdminConversations godoc
// @ID          listAdminConversations
// @Summary     Admin inbox
// @Description One row per conversation pair with the count of messages no admin has read.
// @Tags        Conversations
// @Produce     json
// @Success     200  {object}  handlers.AdminInboxResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /conversations/admin [get]
func (h *Handlers) ListAdminConversations(c *gin.Context) {
	rows, err := h.views.AdminInbox(c.Request.Context())
	if err != nil {
		failErr(c, err, http.StatusInternalServerError, ErrCodeInboxFailed, "Failed to fetch admin main chat")
		return
	}
	if rows == nil {
		rows = []domain.AdminConversationSummary{}
	}
	ok(c, http.StatusOK, AdminInboxResponse{Success: true, Conversations: rows})
}
