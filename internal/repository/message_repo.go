package repository

import (
	"fmt"
	"strings"

	"github.com/stayhub/stayhub-backend/internal/common"
	"github.com/stayhub/stayhub-backend/internal/domain"
	"gorm.io/gorm"
)

// MessageRepository message data access interface
type MessageRepository interface {
	Create(msg *domain.Message) error
	FindByID(id uint64) (*domain.Message, error)
	FindByIDs(ids []uint64) ([]*domain.Message, error)
	FindGeneralPair(lo, hi string, page, limit int) ([]*domain.Message, int64, error)
	FindByReservation(reservationID string, page, limit int) ([]*domain.Message, int64, error)
	MarkRead(ids []uint64, userID string) error
	MarkConversationRead(parsed *domain.ParsedKey, key, userID string) error
	CountUnread(userID string) (int64, error)
	Search(userID, query string, filters domain.SearchFilters, page, limit int) ([]*domain.Message, int64, error)
}

type messageRepository struct {
	db      *gorm.DB
	indexes ConversationIndexRepository
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(db *gorm.DB, indexes ConversationIndexRepository) MessageRepository {
	return &messageRepository{db: db, indexes: indexes}
}

// Create appends one message (with its attachment rows) and maintains the
// conversation index inside the same transaction, so a reader never sees
// a message without its index entry or vice versa.
func (r *messageRepository) Create(msg *domain.Message) error {
	key, err := domain.DeriveConversationKey(msg.SenderID, msg.RecipientID, msg.ReservationID)
	if err != nil {
		return err
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("%w: %v", common.ErrStorage, err)
		}
		if err := r.indexes.ApplySend(tx, msg, key); err != nil {
			return fmt.Errorf("%w: %v", common.ErrStorage, err)
		}
		return nil
	})
}

// FindByID finds a message by ID with its attachments
func (r *messageRepository) FindByID(id uint64) (*domain.Message, error) {
	var msg domain.Message
	err := r.db.Preload("Attachments").Where("id = ?", id).First(&msg).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, common.ErrMessageNotFound
		}
		return nil, fmt.Errorf("%w: %v", common.ErrStorage, err)
	}
	return &msg, nil
}

// FindByIDs loads a set of messages with attachments
func (r *messageRepository) FindByIDs(ids []uint64) ([]*domain.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var messages []*domain.Message
	if err := r.db.Preload("Attachments").Where("id IN ?", ids).Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorage, err)
	}
	return messages, nil
}

// generalPairScope scopes a query to the unordered pair with no reservation
func generalPairScope(db *gorm.DB, lo, hi string) *gorm.DB {
	return db.Where("reservation_id IS NULL").
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)", lo, hi, hi, lo)
}

// FindGeneralPair returns the chronological message page of a general conversation
func (r *messageRepository) FindGeneralPair(lo, hi string, page, limit int) ([]*domain.Message, int64, error) {
	var messages []*domain.Message
	var total int64

	base := generalPairScope(r.db.Model(&domain.Message{}), lo, hi)
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: %v", common.ErrStorage, err)
	}

	offset := (page - 1) * limit
	err := generalPairScope(r.db.Preload("Attachments"), lo, hi).
		Order("sent_at ASC, id ASC").
		Offset(offset).Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", common.ErrStorage, err)
	}
	return messages, total, nil
}

// FindByReservation returns the chronological message page of a reservation conversation
func (r *messageRepository) FindByReservation(reservationID string, page, limit int) ([]*domain.Message, int64, error) {
	var messages []*domain.Message
	var total int64

	if err := r.db.Model(&domain.Message{}).
		Where("reservation_id = ?", reservationID).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: %v", common.ErrStorage, err)
	}

	offset := (page - 1) * limit
	err := r.db.Preload("Attachments").
		Where("reservation_id = ?", reservationID).
		Order("sent_at ASC, id ASC").
		Offset(offset).Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", common.ErrStorage, err)
	}
	return messages, total, nil
}

// MarkRead marks a set of messages read for their recipient. The set
// update is atomic: either every given message is read afterwards or
// none is. Re-marking already-read messages is a no-op.
func (r *messageRepository) MarkRead(ids []uint64, userID string) error {
	if len(ids) == 0 {
		return nil
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		var messages []*domain.Message
		if err := tx.Where("id IN ?", ids).Find(&messages).Error; err != nil {
			return fmt.Errorf("%w: %v", common.ErrStorage, err)
		}

		found := make(map[uint64]bool, len(messages))
		for _, m := range messages {
			// Not the recipient: report not-found, never reveal the row
			if m.RecipientID != userID {
				return common.ErrMessageNotFound
			}
			found[m.ID] = true
		}
		for _, id := range ids {
			if !found[id] {
				return common.ErrMessageNotFound
			}
		}

		if err := tx.Model(&domain.Message{}).
			Where("id IN ? AND recipient_id = ? AND is_read = ?", ids, userID, false).
			Update("is_read", true).Error; err != nil {
			return fmt.Errorf("%w: %v", common.ErrStorage, err)
		}

		// Recompute unread counters for every touched conversation from
		// the message rows themselves, in the same transaction.
		seen := make(map[string]bool)
		for _, m := range messages {
			key, err := domain.DeriveConversationKey(m.SenderID, m.RecipientID, m.ReservationID)
			if err != nil {
				return err
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			if err := r.indexes.RecomputeUnread(tx, key); err != nil {
				return fmt.Errorf("%w: %v", common.ErrStorage, err)
			}
		}
		return nil
	})
}

// MarkConversationRead marks every unread message the user received in
// the conversation as read. Messages that arrive after the transaction
// snapshot stay unread.
func (r *messageRepository) MarkConversationRead(parsed *domain.ParsedKey, key, userID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		scope := tx.Model(&domain.Message{})
		if parsed.Kind == domain.KindReservation {
			scope = scope.Where("reservation_id = ?", parsed.ReservationID)
		} else {
			scope = generalPairScope(scope, parsed.ParticipantLo, parsed.ParticipantHi)
		}

		if err := scope.
			Where("recipient_id = ? AND is_read = ?", userID, false).
			Update("is_read", true).Error; err != nil {
			return fmt.Errorf("%w: %v", common.ErrStorage, err)
		}

		if err := r.indexes.RecomputeUnread(tx, key); err != nil {
			return fmt.Errorf("%w: %v", common.ErrStorage, err)
		}
		return nil
	})
}

// CountUnread derives the caller's total unread count fresh from message rows
func (r *messageRepository) CountUnread(userID string) (int64, error) {
	var total int64
	err := r.db.Model(&domain.Message{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Count(&total).Error
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrStorage, err)
	}
	return total, nil
}

// likeEscaper neutralizes LIKE metacharacters so a query matches its
// characters literally. Backslash must come first.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search performs a case-insensitive content match over the user's
// messages, newest first. This is the SQL fallback used when the
// Elasticsearch backend is disabled.
func (r *messageRepository) Search(userID, query string, filters domain.SearchFilters, page, limit int) ([]*domain.Message, int64, error) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"

	scope := func(db *gorm.DB) *gorm.DB {
		// The escape char is bound as a parameter so both MySQL and the
		// SQLite test driver see a single backslash.
		db = db.Where("(sender_id = ? OR recipient_id = ?)", userID, userID).
			Where(`LOWER(content) LIKE ? ESCAPE ?`, pattern, `\`)
		switch filters.Type {
		case domain.FilterTypeReservations:
			db = db.Where("reservation_id IS NOT NULL")
		case domain.FilterTypeGeneral:
			db = db.Where("reservation_id IS NULL AND sender_role <> ? AND recipient_role <> ?", domain.RoleStaff, domain.RoleStaff)
		case domain.FilterTypeSupport:
			db = db.Where("reservation_id IS NULL AND (sender_role = ? OR recipient_role = ?)", domain.RoleStaff, domain.RoleStaff)
		}
		if filters.ReservationID != "" {
			db = db.Where("reservation_id = ?", filters.ReservationID)
		}
		return db
	}

	var total int64
	if err := scope(r.db.Model(&domain.Message{})).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: %v", common.ErrStorage, err)
	}

	var messages []*domain.Message
	offset := (page - 1) * limit
	err := scope(r.db.Preload("Attachments")).
		Order("sent_at DESC, id DESC").
		Offset(offset).Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", common.ErrStorage, err)
	}
	return messages, total, nil
}
