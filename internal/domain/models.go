// Package domain defines the persistence models for direct messages and the
// user presence projection. These types are mapped with GORM and form the
// core data layer of the chat relay.
package domain

import (
	"strings"
	"time"
)

// User roles as stored in users.user_type.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Message is a single direct message between two users.
//
// Fields:
//   - ID: auto-increment primary key; strictly increasing, used as cursor.
//   - SenderID / ReceiverID: the two participants (indexed as a pair).
//   - Body: optional text content (json "message").
//   - Image / File: optional web paths of stored attachments (/uploads/...).
//   - FileName / FileSize: original name and declared size of an attachment.
//   - IsDelivered / IsRead / IsAdminRead: monotonic flags, never reset.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Message struct {
	ID          uint      `json:"id"            gorm:"primaryKey;autoIncrement"`
	SenderID    uint      `json:"sender_id"     gorm:"not null;index:idx_msg_pair,priority:1"`
	ReceiverID  uint      `json:"receiver_id"   gorm:"not null;index:idx_msg_pair,priority:2;index:idx_msg_receiver"`
	Body        *string   `json:"message"       gorm:"column:message;type:varchar(4000)"`
	Image       *string   `json:"image"         gorm:"type:varchar(4000)"`
	File        *string   `json:"file"          gorm:"type:varchar(4000)"`
	FileName    *string   `json:"file_name"     gorm:"type:varchar(500)"`
	FileSize    *int64    `json:"file_size"`
	IsDelivered bool      `json:"is_delivered"  gorm:"not null;default:false"`
	IsRead      bool      `json:"is_read"       gorm:"not null;default:false"`
	IsAdminRead bool      `json:"is_admin_read" gorm:"not null;default:false"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// HasImage reports whether the message carries an image attachment.
func (m Message) HasImage() bool { return nonEmpty(m.Image) }

// HasFile reports whether the message carries a generic file attachment.
func (m Message) HasFile() bool { return nonEmpty(m.File) }

// Text returns the body or "" when absent.
func (m Message) Text() string {
	if m.Body == nil {
		return ""
	}
	return *m.Body
}

// Preview renders the one-line inbox preview. Image wins over file, file
// wins over text.
func (m Message) Preview() string {
	switch {
	case m.HasImage():
		return "Sent an image"
	case m.HasFile():
		return "Sent a file"
	default:
		return m.Text()
	}
}

// Pair returns the canonical pair key of the message participants.
func (m Message) Pair() PairKey { return NewPairKey(m.SenderID, m.ReceiverID) }

// NewMessage is the input to the message store's append operation.
type NewMessage struct {
	SenderID   uint
	ReceiverID uint
	Body       *string
	Image      *string
	File       *string
	FileName   *string
	FileSize   *int64
}

// HasContent reports whether at least one of text, image or file is set.
func (n NewMessage) HasContent() bool {
	return nonEmpty(n.Body) || nonEmpty(n.Image) || nonEmpty(n.File)
}

// User is the presence-relevant projection of the external user directory.
// This service reads profile and role fields and writes only IsOnline and
// LastSeenTime.
type User struct {
	ID             uint       `json:"id"               gorm:"primaryKey;autoIncrement"`
	Name           string     `json:"name"             gorm:"type:varchar(100)"`
	ProfilePicture string     `json:"profile_pictures" gorm:"column:profile_pictures;type:varchar(4000)"`
	UserType       string     `json:"user_type"        gorm:"type:varchar(30);not null;default:'user';index"`
	IsOnline       bool       `json:"is_online"        gorm:"not null;default:false"`
	LastSeenTime   *time.Time `json:"last_seen_time"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// IsAdmin reports whether the user holds the admin observer role.
func (u User) IsAdmin() bool { return strings.EqualFold(u.UserType, RoleAdmin) }

func nonEmpty(s *string) bool { return s != nil && strings.TrimSpace(*s) != "" }

// StringPtr returns nil for blank strings and a pointer otherwise.
func StringPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
