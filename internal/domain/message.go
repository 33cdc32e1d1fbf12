package domain

import (
	"time"

	pkglogger "github.com/stayhub/stayhub-backend/pkg/logger"
)

// Participant roles (closed set)
const (
	RoleGuest = "guest"
	RoleOwner = "owner"
	RoleStaff = "staff"
)

// ValidRole reports whether a role belongs to the closed participant set
func ValidRole(role string) bool {
	switch role {
	case RoleGuest, RoleOwner, RoleStaff:
		return true
	}
	return false
}

// Message represents a single directed message between two parties.
// Content is immutable after creation; only the is_read flag changes.
type Message struct {
	ID            uint64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	SenderID      string     `gorm:"column:sender_id;size:64;index:idx_messages_sender" json:"senderId"`
	SenderRole    string     `gorm:"column:sender_role;size:16" json:"senderRole"`
	RecipientID   string     `gorm:"column:recipient_id;size:64;index:idx_messages_recipient" json:"recipientId"`
	RecipientRole string     `gorm:"column:recipient_role;size:16" json:"recipientRole"`
	Subject       string     `gorm:"column:subject;size:255" json:"subject,omitempty"`
	Content       string     `gorm:"column:content;type:text" json:"content"`
	ReservationID *string    `gorm:"column:reservation_id;size:64;index" json:"reservationId,omitempty"`
	IsRead        bool       `gorm:"column:is_read;default:false;index" json:"isRead"`
	SentAt        time.Time  `gorm:"column:sent_at;index" json:"sentAt"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`

	Attachments []MessageAttachment `gorm:"foreignKey:MessageID" json:"attachments,omitempty"`
}

func (Message) TableName() string {
	return "messages"
}

// HasReservation reports whether the message is scoped to a booking
func (m *Message) HasReservation() bool {
	return m.ReservationID != nil && *m.ReservationID != ""
}

// MessageAttachment is a metadata reference to an externally-stored file.
// The physical file is owned by the attachment service.
type MessageAttachment struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	MessageID uint64    `gorm:"column:message_id;index" json:"-"`
	FileName  string    `gorm:"column:file_name;size:255" json:"fileName"`
	FileURL   string    `gorm:"column:file_url;size:1024" json:"fileUrl"`
	FileType  string    `gorm:"column:file_type;size:100" json:"fileType"`
	FileSize  int64     `gorm:"column:file_size" json:"fileSize"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"-"`
}

func (MessageAttachment) TableName() string {
	return "message_attachments"
}

// AttachmentInput references already-uploaded file metadata
type AttachmentInput struct {
	FileName string `json:"fileName" binding:"required"`
	FileURL  string `json:"fileUrl" binding:"required"`
	FileType string `json:"fileType"`
	FileSize int64  `json:"fileSize"`
}

// SendMessageRequest represents a send message request
type SendMessageRequest struct {
	RecipientID   string            `json:"recipientId" binding:"required"`
	RecipientRole string            `json:"recipientType" binding:"required"`
	Content       string            `json:"content" binding:"required"`
	ReservationID *string           `json:"reservationId"`
	Attachments   []AttachmentInput `json:"attachments"`
}

// StartConversationRequest represents the first message of a conversation
type StartConversationRequest struct {
	RecipientID   string  `json:"recipientId" binding:"required"`
	RecipientRole string  `json:"recipientType" binding:"required"`
	Subject       string  `json:"subject"`
	Content       string  `json:"content" binding:"required"`
	ReservationID *string `json:"reservationId"`
}

// MarkReadRequest marks a set of messages read
type MarkReadRequest struct {
	MessageIDs []uint64 `json:"messageIds" binding:"required"`
}

// MessageResponse represents a message in API responses
type MessageResponse struct {
	ID             uint64              `json:"id"`
	ConversationID string              `json:"conversationId"`
	SenderID       string              `json:"senderId"`
	SenderRole     string              `json:"senderRole"`
	RecipientID    string              `json:"recipientId"`
	RecipientRole  string              `json:"recipientType"`
	Subject        string              `json:"subject,omitempty"`
	Content        string              `json:"content"`
	ReservationID  *string             `json:"reservationId,omitempty"`
	IsRead         bool                `json:"isRead"`
	SentAt         time.Time           `json:"sentAt"`
	Attachments    []MessageAttachment `json:"attachments,omitempty"`
}

// ToResponse converts Message to MessageResponse.
// The conversation key is re-derived rather than stored on the row.
func (m *Message) ToResponse() *MessageResponse {
	key, err := DeriveConversationKey(m.SenderID, m.RecipientID, m.ReservationID)
	if err != nil {
		// Send validation rejects such pairs, so a failure here means a
		// corrupt row; surface it in the logs instead of hiding it.
		pkglogger.GetLogger().Error().Err(err).
			Uint64("message_id", m.ID).
			Msg("conversation key derivation failed for stored message")
	}
	return &MessageResponse{
		ID:             m.ID,
		ConversationID: key,
		SenderID:       m.SenderID,
		SenderRole:     m.SenderRole,
		RecipientID:    m.RecipientID,
		RecipientRole:  m.RecipientRole,
		Subject:        m.Subject,
		Content:        m.Content,
		ReservationID:  m.ReservationID,
		IsRead:         m.IsRead,
		SentAt:         m.SentAt,
		Attachments:    m.Attachments,
	}
}
