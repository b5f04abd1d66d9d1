// Message HTTP handlers.
//
//   - GET  /messages  (offset pages of a two-party transcript)
//   - POST /messages  (send a message; same fan-out as the live send_message)
//
// Replays of POST /messages with a known Idempotency-Key return the original
// message with `Idempotency-Replayed: true` and emit nothing.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-relay/internal/domain"
	"github.com/tbourn/go-chat-relay/internal/http/middleware"
	"github.com/tbourn/go-chat-relay/internal/media"
	"github.com/tbourn/go-chat-relay/internal/services"
	"github.com/tbourn/go-chat-relay/internal/utils"
)

// MaxMessageRunes caps the text body of a message sent over HTTP.
const MaxMessageRunes = 4000

// ListMessagesResponse is one page of a transcript seen by user_id.
type ListMessagesResponse struct {
	Success    bool                 `json:"success" example:"true"`
	Pagination domain.PageInfo      `json:"pagination"`
	Messages   []domain.MessageView `json:"messages"`
}

// PostMessageRequest is the body of POST /messages. Image and File accept
// a base64 data URI or an /uploads path returned by an earlier upload.
type PostMessageRequest struct {
	SenderID   uint    `json:"sender_id" binding:"required" example:"1"`
	ReceiverID uint    `json:"receiver_id" binding:"required" example:"2"`
	Message    *string `json:"message" example:"hello"`
	Image      *string `json:"image"`
	File       *string `json:"file"`
}

// PostMessageResponse wraps the stored message.
type PostMessageResponse struct {
	Success bool            `json:"success" example:"true"`
	Message *domain.Message `json:"message"`
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List a conversation transcript
// @Description Returns 16 messages per page, newest page first, oldest-first within a page.
// @Description Times are rendered for the viewer and is_me is relative to user_id.
// @Tags        Messages
// @Produce     json
// @Param       user_id      query  int  true   "Viewer id"        minimum(1)
// @Param       receiver_id  query  int  true   "Other participant" minimum(1)
// @Param       page         query  int  false  "Page number"      minimum(1) default(1)
// @Success     200  {object}  handlers.ListMessagesResponse
// @Success     304  "Not modified (If-None-Match)"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	userID, okU := queryID(c, "user_id")
	receiverID, okR := queryID(c, "receiver_id")
	if !okU || !okR {
		fail(c, http.StatusBadRequest, ErrCodeMissingParams, "user_id and receiver_id are required")
		return
	}
	page := utils.Page(c.Query("page"))

	if h.msgs != nil {
		if count, maxTS, err := h.msgs.Stats(ctx, userID, receiverID); err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.UnixMilli()
			}
			// labels such as "Yesterday 03:04 PM" roll over at local midnight
			etag := fmt.Sprintf(`W/"messages:%d:%d:%d:%d:%d:%s"`, userID, receiverID, page, count, ts, h.views.Today())
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	tp, err := h.views.TranscriptPage(ctx, userID, receiverID, page)
	if err != nil {
		failErr(c, err, http.StatusInternalServerError, ErrCodeFetchFailed, "Failed to fetch messages")
		return
	}
	if tp.Messages == nil {
		tp.Messages = []domain.MessageView{}
	}
	ok(c, http.StatusOK, ListMessagesResponse{Success: true, Pagination: tp.Pagination, Messages: tp.Messages})
}

// PostMessage godoc
// @ID          postMessage
// @Summary     Send a message
// @Description Stores a message and pushes refreshed views to connected participants and admins.
// @Description Supports safe retries via the Idempotency-Key header.
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string  false  "Key for safe retries"
// @Param       body             body    handlers.PostMessageRequest  true  "Message"
// @Success     201  {object}  handlers.PostMessageResponse  "Created"
// @Success     200  {object}  handlers.PostMessageResponse  "Replayed"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "request body too large")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeMissingParams, "sender_id and receiver_id are required")
		return
	}
	if req.Message != nil {
		if utf8.RuneCountInString(*req.Message) > MaxMessageRunes {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("message too long: max %d characters", MaxMessageRunes))
			return
		}
		req.Message = domain.StringPtr(*req.Message)
	}

	key, _ := middleware.GetIdempotencyKey(c)
	m, replayed, err := h.sender.Send(c.Request.Context(), domain.NewMessage{
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		Body:       req.Message,
		Image:      req.Image,
		File:       req.File,
	}, key)
	switch {
	case err == nil:
	case services.IsValidation(err):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	case errors.Is(err, media.ErrMalformedPayload):
		fail(c, http.StatusBadRequest, ErrCodeInvalidMedia, "attachment is not a valid base64 data URI")
		return
	default:
		failErr(c, err, http.StatusInternalServerError, ErrCodeSendFailed, "Failed to send message")
		return
	}

	if replayed {
		c.Header("Idempotency-Replayed", "true")
		ok(c, http.StatusOK, PostMessageResponse{Success: true, Message: m})
		return
	}
	ok(c, http.StatusCreated, PostMessageResponse{Success: true, Message: m})
}
