package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/stayhub/stayhub-backend/internal/common"
)

// Conversation kinds
const (
	KindReservation = "reservation"
	KindGeneral     = "general"
	KindSupport     = "support"
)

// Conversation key prefixes; the encoded key is part of the public API
// contract and must round-trip through URL path parameters.
const (
	reservationKeyPrefix = "reservation_"
	generalKeyPrefix     = "general_"
)

// DeriveConversationKey maps a participant pair plus optional reservation
// scope to a stable conversation identifier.
//
// The derivation is commutative in the participants: a reservation-scoped
// message keys on the reservation alone, a general message keys on the
// lexicographically sorted pair. Two messages share a key iff they share
// the unordered pair and the reservation scope (including both nil).
func DeriveConversationKey(a, b string, reservationID *string) (string, error) {
	if a == "" || b == "" {
		return "", fmt.Errorf("%w: participant id is empty", common.ErrInvalidInput)
	}
	if a == b {
		return "", fmt.Errorf("%w: participants must differ", common.ErrInvalidInput)
	}
	// Underscore is the key separator; ids containing it would break
	// the round-trip contract.
	if strings.Contains(a, "_") || strings.Contains(b, "_") {
		return "", fmt.Errorf("%w: participant id must not contain '_'", common.ErrInvalidInput)
	}

	if reservationID != nil && *reservationID != "" {
		if strings.Contains(*reservationID, "_") {
			return "", fmt.Errorf("%w: reservation id must not contain '_'", common.ErrInvalidInput)
		}
		return reservationKeyPrefix + *reservationID, nil
	}

	lo, hi := SortParticipants(a, b)
	return generalKeyPrefix + lo + "_" + hi, nil
}

// SortParticipants returns the pair in lexicographic order
func SortParticipants(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}

// ParsedKey is the decoded form of a conversation identifier
type ParsedKey struct {
	Kind          string // KindReservation or KindGeneral (support resolves at read time)
	ReservationID string
	ParticipantLo string
	ParticipantHi string
}

// ParseConversationKey decodes a key received as a path parameter
func ParseConversationKey(key string) (*ParsedKey, error) {
	switch {
	case strings.HasPrefix(key, reservationKeyPrefix):
		id := strings.TrimPrefix(key, reservationKeyPrefix)
		if id == "" || strings.Contains(id, "_") {
			return nil, fmt.Errorf("%w: %q", common.ErrMalformedKey, key)
		}
		return &ParsedKey{Kind: KindReservation, ReservationID: id}, nil

	case strings.HasPrefix(key, generalKeyPrefix):
		rest := strings.TrimPrefix(key, generalKeyPrefix)
		parts := strings.Split(rest, "_")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("%w: %q", common.ErrMalformedKey, key)
		}
		if parts[0] >= parts[1] {
			return nil, fmt.Errorf("%w: participants out of order in %q", common.ErrMalformedKey, key)
		}
		return &ParsedKey{Kind: KindGeneral, ParticipantLo: parts[0], ParticipantHi: parts[1]}, nil
	}

	return nil, fmt.Errorf("%w: %q", common.ErrMalformedKey, key)
}

// ConversationKindOf computes the conversation type as a pure function
// of the reservation scope and the participant roles. Any staff
// involvement without a reservation makes it a support conversation.
func ConversationKindOf(hasReservation bool, roleA, roleB string) string {
	if hasReservation {
		return KindReservation
	}
	if roleA == RoleStaff || roleB == RoleStaff {
		return KindSupport
	}
	return KindGeneral
}

// ConversationIndex is a derived, rebuildable index over the message log:
// one row per conversation key, maintained in the same transaction as the
// writes it summarizes. The message rows stay the source of truth.
type ConversationIndex struct {
	ConversationKey string    `gorm:"column:conversation_key;primaryKey;size:160" json:"conversationId"`
	ParticipantLo   string    `gorm:"column:participant_lo;size:64;index" json:"-"`
	ParticipantHi   string    `gorm:"column:participant_hi;size:64;index" json:"-"`
	LoRole          string    `gorm:"column:lo_role;size:16" json:"-"`
	HiRole          string    `gorm:"column:hi_role;size:16" json:"-"`
	ReservationID   *string   `gorm:"column:reservation_id;size:64;index" json:"reservationId,omitempty"`
	Kind            string    `gorm:"column:kind;size:16;index" json:"type"`
	Subject         string    `gorm:"column:subject;size:255" json:"subject,omitempty"` // from the opening message, replies never change it
	LastMessageID   uint64    `gorm:"column:last_message_id" json:"-"`
	LastMessageAt   time.Time `gorm:"column:last_message_at;index" json:"lastMessageAt"`
	MessageCount    int64     `gorm:"column:message_count" json:"totalMessages"`
	UnreadLo        int64     `gorm:"column:unread_lo" json:"-"` // unread where recipient = participant_lo
	UnreadHi        int64     `gorm:"column:unread_hi" json:"-"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime" json:"-"`
}

func (ConversationIndex) TableName() string {
	return "conversation_index"
}

// Involves reports whether the user participates in the conversation
func (ci *ConversationIndex) Involves(userID string) bool {
	return ci.ParticipantLo == userID || ci.ParticipantHi == userID
}

// UnreadFor returns the unread count from the user's recipient perspective
func (ci *ConversationIndex) UnreadFor(userID string) int64 {
	switch userID {
	case ci.ParticipantLo:
		return ci.UnreadLo
	case ci.ParticipantHi:
		return ci.UnreadHi
	}
	return 0
}

// OtherParticipant returns the counterpart's id and role
func (ci *ConversationIndex) OtherParticipant(userID string) (string, string) {
	if ci.ParticipantLo == userID {
		return ci.ParticipantHi, ci.HiRole
	}
	return ci.ParticipantLo, ci.LoRole
}

// Participant display identity resolved through the user directory
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// ReservationInfo reservation context shown alongside a conversation
type ReservationInfo struct {
	ID           string `json:"id"`
	PropertyName string `json:"propertyName"`
	CheckIn      string `json:"checkIn"`
	CheckOut     string `json:"checkOut"`
}

// ConversationSummary is the computed, never-persisted list entry
type ConversationSummary struct {
	ConversationID   string           `json:"conversationId"`
	Type             string           `json:"type"`
	OtherParticipant Participant      `json:"otherParticipant"`
	Reservation      *ReservationInfo `json:"reservation,omitempty"`
	Subject          string           `json:"subject,omitempty"`
	LastMessage      *MessageResponse `json:"lastMessage,omitempty"`
	UnreadCount      int64            `json:"unreadCount"`
	TotalMessages    int64            `json:"totalMessages"`
}

// Conversation list filter values for the type parameter
const (
	FilterTypeAll          = "all"
	FilterTypeReservations = "reservations"
	FilterTypeGeneral      = "general"
	FilterTypeSupport      = "support"
)

// ConversationFilters narrows a conversation listing
type ConversationFilters struct {
	Type             string // all | reservations | general | support
	UnreadOnly       bool
	ConversationWith string
	ReservationID    string
}

// SearchFilters narrows a message content search
type SearchFilters struct {
	Type          string
	ReservationID string
}
