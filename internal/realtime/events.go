// Package realtime implements the live event protocol of the chat relay:
// a websocket transport (Hub, Client), a per-connection Session and the
// Router that turns inbound events into store operations and fan-out.
//
// Every frame in either direction is a JSON envelope
//
//	{"event": "<name>", "data": <payload>}
package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Inbound events.
const (
	EventRegister             = "register"
	EventGetSubChat           = "get_sub_chat"
	EventGetMainChat          = "get_main_chat"
	EventGetAdminMainChat     = "get_admin_main_chat"
	EventMarkConversationRead = "mark_conversation_read"
	EventSendMessage          = "send_message"
	EventReadMessage          = "read_message"
	EventTyping               = "typing"
	EventFileChunk            = "file_chunk"
	EventSearchMainChat       = "search_main_chat"
	EventSearchAdminMainChat  = "search_admin_main_chat"
)

// Outbound-only events. get_sub_chat, get_main_chat, get_admin_main_chat
// and typing reuse the inbound names.
const (
	EventSearchResult       = "search_main_chat_result"
	EventMessagesMarkedRead = "messages_marked_read"
	EventError              = "error"
)

// Envelope is the wire frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Frame is an outbound envelope before encoding.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// ErrorPayload is the body of an outbound error event.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ID is a user or message id that clients send either as a JSON number or
// as a numeric string. null and "" decode to 0.
type ID uint

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*id = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
	}
	if s == "" {
		*id = 0
		return nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", s)
	}
	*id = ID(n)
	return nil
}

// Uint returns the id as uint.
func (id ID) Uint() uint { return uint(id) }

type registerObject struct {
	UserID    ID `json:"userId"`
	UserIDAlt ID `json:"user_id"`
}

// parseRegister accepts a bare id (number or string) or an object carrying
// userId or user_id.
func parseRegister(raw json.RawMessage) (uint, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, nil
	}
	if raw[0] == '{' {
		var obj registerObject
		if err := json.Unmarshal(raw, &obj); err != nil {
			return 0, err
		}
		if obj.UserID != 0 {
			return obj.UserID.Uint(), nil
		}
		return obj.UserIDAlt.Uint(), nil
	}
	var id ID
	if err := json.Unmarshal(raw, &id); err != nil {
		return 0, err
	}
	return id.Uint(), nil
}

// GetSubChatPayload requests a cursor page of a transcript.
type GetSubChatPayload struct {
	UserID     ID `json:"user_id"     validate:"required"`
	ReceiverID ID `json:"receiver_id" validate:"required"`
	MaxID      ID `json:"max_id"`
}

// GetMainChatPayload requests a user's inbox.
type GetMainChatPayload struct {
	UserID ID `json:"user_id" validate:"required"`
}

// MarkConversationReadPayload names the pair an admin has looked at.
type MarkConversationReadPayload struct {
	UserAID ID `json:"user_a_id" validate:"required"`
	UserBID ID `json:"user_b_id" validate:"required"`
}

// SendMessagePayload carries a new message. Image and File are data URIs
// or paths of already stored uploads.
type SendMessagePayload struct {
	SenderID   ID      `json:"sender_id"   validate:"required"`
	ReceiverID ID      `json:"receiver_id" validate:"required"`
	Message    *string `json:"message"     validate:"omitempty,max=4000"`
	Image      *string `json:"image"`
	File       *string `json:"file"`
}

// ReadMessagePayload marks sender->receiver messages read.
type ReadMessagePayload struct {
	SenderID   ID `json:"sender_id"   validate:"required"`
	ReceiverID ID `json:"receiver_id" validate:"required"`
}

// TypingPayload is relayed to the receiver.
type TypingPayload struct {
	SenderID   ID   `json:"sender_id"   validate:"required"`
	ReceiverID ID   `json:"receiver_id" validate:"required"`
	IsTyping   bool `json:"is_typing"`
}

// typingNotice is what the receiver gets.
type typingNotice struct {
	SenderID uint `json:"sender_id"`
	IsTyping bool `json:"is_typing"`
}

// FileChunkPayload is one base64 piece of a chunked upload.
type FileChunkPayload struct {
	SenderID   ID     `json:"sender_id"   validate:"required"`
	ReceiverID ID     `json:"receiver_id" validate:"required"`
	FileName   string `json:"fileName"    validate:"required,max=255"`
	FileSize   int64  `json:"filesize"    validate:"gte=0"`
	Chunk      string `json:"chunk"`
	IsLast     bool   `json:"isLast"`
}

// SearchPayload filters an inbox by text.
type SearchPayload struct {
	UserID     ID     `json:"user_id"`
	SearchText string `json:"search_text" validate:"max=200"`
}

// readAck acknowledges read_message to its origin.
type readAck struct {
	SenderID   uint `json:"sender_id"`
	ReceiverID uint `json:"receiver_id"`
}
