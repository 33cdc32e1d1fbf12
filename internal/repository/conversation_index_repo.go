package repository

import (
	"fmt"

	"github.com/stayhub/stayhub-backend/internal/common"
	"github.com/stayhub/stayhub-backend/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationIndexRepository maintains the derived conversation index.
// The index is a rebuildable cache over the message log: one row per
// conversation key carrying the last-message pointer and counters.
type ConversationIndexRepository interface {
	ApplySend(tx *gorm.DB, msg *domain.Message, key string) error
	RecomputeUnread(tx *gorm.DB, key string) error
	FindByKey(key string) (*domain.ConversationIndex, error)
	ListForUser(userID string, filters domain.ConversationFilters, page, limit int) ([]*domain.ConversationIndex, int64, error)
	Rebuild() error
}

type conversationIndexRepository struct {
	db *gorm.DB
}

// NewConversationIndexRepository creates a new ConversationIndexRepository
func NewConversationIndexRepository(db *gorm.DB) ConversationIndexRepository {
	return &conversationIndexRepository{db: db}
}

// ApplySend upserts the index row for a freshly inserted message. Must run
// inside the same transaction as the message insert.
func (r *conversationIndexRepository) ApplySend(tx *gorm.DB, msg *domain.Message, key string) error {
	lo, hi := domain.SortParticipants(msg.SenderID, msg.RecipientID)
	loRole, hiRole := msg.SenderRole, msg.RecipientRole
	if msg.SenderID != lo {
		loRole, hiRole = msg.RecipientRole, msg.SenderRole
	}

	row := &domain.ConversationIndex{
		ConversationKey: key,
		ParticipantLo:   lo,
		ParticipantHi:   hi,
		LoRole:          loRole,
		HiRole:          hiRole,
		ReservationID:   msg.ReservationID,
		Kind:            domain.ConversationKindOf(msg.HasReservation(), msg.SenderRole, msg.RecipientRole),
		Subject:         msg.Subject,
		LastMessageID:   msg.ID,
		LastMessageAt:   msg.SentAt,
		MessageCount:    1,
	}

	unreadCol := "unread_hi"
	if msg.RecipientID == lo {
		unreadCol = "unread_lo"
		row.UnreadLo = 1
	} else {
		row.UnreadHi = 1
	}

	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "conversation_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_message_id": msg.ID,
			"last_message_at": msg.SentAt,
			"lo_role":         loRole,
			"hi_role":         hiRole,
			"message_count":   gorm.Expr("message_count + 1"),
			unreadCol:         gorm.Expr(unreadCol + " + 1"),
		}),
	}).Create(row).Error
}

// RecomputeUnread re-derives both unread counters of a conversation from
// the message rows. Runs inside the transaction that flipped the is_read
// flags so the counters can never drift from the flags.
func (r *conversationIndexRepository) RecomputeUnread(tx *gorm.DB, key string) error {
	var row domain.ConversationIndex
	q := tx.Where("conversation_key = ?", key)
	// SQLite has no FOR UPDATE; its writers are serialized anyway
	if tx.Dialector.Name() == "mysql" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := q.First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil // nothing indexed yet
		}
		return err
	}

	count := func(recipient string) (int64, error) {
		var n int64
		scope := tx.Model(&domain.Message{}).
			Where("recipient_id = ? AND is_read = ?", recipient, false)
		if row.ReservationID != nil {
			scope = scope.Where("reservation_id = ?", *row.ReservationID)
		} else {
			scope = generalPairScope(scope, row.ParticipantLo, row.ParticipantHi)
		}
		err := scope.Count(&n).Error
		return n, err
	}

	unreadLo, err := count(row.ParticipantLo)
	if err != nil {
		return err
	}
	unreadHi, err := count(row.ParticipantHi)
	if err != nil {
		return err
	}

	return tx.Model(&domain.ConversationIndex{}).
		Where("conversation_key = ?", key).
		Updates(map[string]interface{}{
			"unread_lo": unreadLo,
			"unread_hi": unreadHi,
		}).Error
}

// FindByKey loads a single index row
func (r *conversationIndexRepository) FindByKey(key string) (*domain.ConversationIndex, error) {
	var row domain.ConversationIndex
	err := r.db.Where("conversation_key = ?", key).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, common.ErrConversationNotFound
		}
		return nil, fmt.Errorf("%w: %v", common.ErrStorage, err)
	}
	return &row, nil
}

// ListForUser returns one page of the user's conversations, newest
// activity first, conversation key as the stable tie-break.
func (r *conversationIndexRepository) ListForUser(userID string, filters domain.ConversationFilters, page, limit int) ([]*domain.ConversationIndex, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("participant_lo = ? OR participant_hi = ?", userID, userID)
		switch filters.Type {
		case domain.FilterTypeReservations:
			db = db.Where("kind = ?", domain.KindReservation)
		case domain.FilterTypeGeneral:
			db = db.Where("kind = ?", domain.KindGeneral)
		case domain.FilterTypeSupport:
			db = db.Where("kind = ?", domain.KindSupport)
		}
		if filters.ReservationID != "" {
			db = db.Where("reservation_id = ?", filters.ReservationID)
		}
		if filters.ConversationWith != "" {
			db = db.Where("(participant_lo = ? OR participant_hi = ?)", filters.ConversationWith, filters.ConversationWith)
		}
		if filters.UnreadOnly {
			db = db.Where("(participant_lo = ? AND unread_lo > 0) OR (participant_hi = ? AND unread_hi > 0)", userID, userID)
		}
		return db
	}

	var total int64
	if err := scope(r.db.Model(&domain.ConversationIndex{})).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: %v", common.ErrStorage, err)
	}

	var rows []*domain.ConversationIndex
	offset := (page - 1) * limit
	err := scope(r.db.Model(&domain.ConversationIndex{})).
		Order("last_message_at DESC, conversation_key ASC").
		Offset(offset).Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", common.ErrStorage, err)
	}
	return rows, total, nil
}

// Rebuild regenerates the whole index from the message log. Used by the
// migrate tool after schema changes or suspected drift.
func (r *conversationIndexRepository) Rebuild() error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&domain.ConversationIndex{}).Error; err != nil {
			return err
		}

		index := make(map[string]*domain.ConversationIndex)
		var batch []*domain.Message
		result := tx.Model(&domain.Message{}).Order("id ASC").FindInBatches(&batch, 1000, func(_ *gorm.DB, _ int) error {
			for _, msg := range batch {
				key, err := domain.DeriveConversationKey(msg.SenderID, msg.RecipientID, msg.ReservationID)
				if err != nil {
					return err
				}

				row, ok := index[key]
				if !ok {
					lo, hi := domain.SortParticipants(msg.SenderID, msg.RecipientID)
					row = &domain.ConversationIndex{
						ConversationKey: key,
						ParticipantLo:   lo,
						ParticipantHi:   hi,
						ReservationID:   msg.ReservationID,
						Kind:            domain.ConversationKindOf(msg.HasReservation(), msg.SenderRole, msg.RecipientRole),
						Subject:         msg.Subject,
					}
					index[key] = row
				}

				if msg.SenderID == row.ParticipantLo {
					row.LoRole, row.HiRole = msg.SenderRole, msg.RecipientRole
				} else {
					row.LoRole, row.HiRole = msg.RecipientRole, msg.SenderRole
				}

				row.MessageCount++
				if !msg.IsRead {
					if msg.RecipientID == row.ParticipantLo {
						row.UnreadLo++
					} else {
						row.UnreadHi++
					}
				}
				if msg.SentAt.After(row.LastMessageAt) || row.LastMessageID == 0 {
					row.LastMessageID = msg.ID
					row.LastMessageAt = msg.SentAt
				}
			}
			return nil
		})
		if result.Error != nil {
			return result.Error
		}

		for _, row := range index {
			if err := tx.Create(row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
