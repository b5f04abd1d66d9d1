package domain

import "time"

// ConversationSummary is one row of a user's inbox.
type ConversationSummary struct {
	UserID           uint      `json:"user_id"`
	Name             string    `json:"name"`
	ProfilePicture   string    `json:"profile_pictures"`
	UserType         string    `json:"user_type"`
	IsOnline         bool      `json:"is_online"`
	LastSeenTime     string    `json:"last_seen_time"`
	LastMessage      string    `json:"last_message"`
	LastMessageImage *string   `json:"last_message_image"`
	LastMessageFile  *string   `json:"last_message_file"`
	LastMessageTime  string    `json:"last_message_time"`
	UnreadCount      int64     `json:"unread_count"`
	DateTime         time.Time `json:"date_time"`

	lastMessageID uint
}

// LastMessageID returns the id of the newest message in the conversation.
func (c ConversationSummary) LastMessageID() uint { return c.lastMessageID }

// WithLastMessageID returns a copy carrying the newest message id.
func (c ConversationSummary) WithLastMessageID(id uint) ConversationSummary {
	c.lastMessageID = id
	return c
}

// AdminConversationSummary is one row of the system-wide admin inbox.
type AdminConversationSummary struct {
	UserAID             uint      `json:"user_a_id"`
	UserAName           string    `json:"user_a_name"`
	UserAProfile        string    `json:"user_a_profile"`
	UserBID             uint      `json:"user_b_id"`
	UserBName           string    `json:"user_b_name"`
	UserBProfile        string    `json:"user_b_profile"`
	LastMessage         string    `json:"last_message"`
	LastMessageSenderID uint      `json:"last_message_sender_id"`
	LastMessageImage    *string   `json:"last_message_image"`
	LastMessageFile     *string   `json:"last_message_file"`
	LastMessageTime     string    `json:"last_message_time"`
	UnreadAdminCount    int64     `json:"unread_admin_count"`
	DateTime            time.Time `json:"date_time"`

	lastMessageID uint
}

// Pair returns the canonical pair key of the row.
func (c AdminConversationSummary) Pair() PairKey { return NewPairKey(c.UserAID, c.UserBID) }

// LastMessageID returns the id of the newest message in the conversation.
func (c AdminConversationSummary) LastMessageID() uint { return c.lastMessageID }

// WithLastMessageID returns a copy carrying the newest message id.
func (c AdminConversationSummary) WithLastMessageID(id uint) AdminConversationSummary {
	c.lastMessageID = id
	return c
}

// MessageView is a transcript entry rendered for one viewer.
type MessageView struct {
	ID          uint      `json:"id"`
	SenderID    uint      `json:"sender_id"`
	ReceiverID  uint      `json:"receiver_id"`
	Message     *string   `json:"message"`
	Image       *string   `json:"image"`
	File        *string   `json:"file"`
	FileName    *string   `json:"file_name"`
	FileSize    *int64    `json:"file_size"`
	IsDelivered bool      `json:"is_delivered"`
	IsRead      bool      `json:"is_read"`
	IsAdminRead bool      `json:"is_admin_read"`
	IsMine      bool      `json:"is_me"`
	CreatedAt   string    `json:"created_at"`
	DateTime    time.Time `json:"date_time"`
}

// PageInfo carries offset pagination metadata for the HTTP history endpoint.
type PageInfo struct {
	CurrentPage   int   `json:"current_page"`
	TotalPages    int   `json:"total_pages"`
	PerPage       int   `json:"per_page"`
	TotalMessages int64 `json:"total_messages"`
	HasNext       bool  `json:"has_next"`
	HasPrevious   bool  `json:"has_previous"`
}

// TranscriptPage is one offset page of a two-party transcript.
type TranscriptPage struct {
	Pagination PageInfo      `json:"pagination"`
	Messages   []MessageView `json:"messages"`
}
