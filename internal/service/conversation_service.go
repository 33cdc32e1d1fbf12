package service

import (
	"context"
	"fmt"

	"github.com/stayhub/stayhub-backend/internal/common"
	"github.com/stayhub/stayhub-backend/internal/directory"
	"github.com/stayhub/stayhub-backend/internal/domain"
	"github.com/stayhub/stayhub-backend/internal/repository"
	pkglogger "github.com/stayhub/stayhub-backend/pkg/logger"
)

// ConversationService derives conversations from the message log.
// Conversations are never persisted as rows of their own; every listing
// is computed from the maintained index plus the message log.
type ConversationService interface {
	ListConversations(ctx context.Context, userID string, filters domain.ConversationFilters, page, limit int) ([]*domain.ConversationSummary, *common.Meta, error)
	GetConversationMessages(ctx context.Context, userID, key string, page, limit int) ([]*domain.MessageResponse, *common.Meta, error)
	MarkConversationAsRead(ctx context.Context, userID, key string) error
	DeleteConversation(ctx context.Context, userID, key string) error
}

type conversationService struct {
	messages     repository.MessageRepository
	indexes      repository.ConversationIndexRepository
	users        directory.UserDirectory
	reservations directory.ReservationDirectory
}

// NewConversationService creates a new ConversationService
func NewConversationService(
	messages repository.MessageRepository,
	indexes repository.ConversationIndexRepository,
	users directory.UserDirectory,
	reservations directory.ReservationDirectory,
) ConversationService {
	return &conversationService{
		messages:     messages,
		indexes:      indexes,
		users:        users,
		reservations: reservations,
	}
}

// ListConversations returns one page of the user's conversations sorted by
// last-message time descending. A user with no messages gets an empty
// list, not an error. Listing never mutates read state.
func (s *conversationService) ListConversations(ctx context.Context, userID string, filters domain.ConversationFilters, page, limit int) ([]*domain.ConversationSummary, *common.Meta, error) {
	page, limit = normalizePagination(page, limit)

	switch filters.Type {
	case "", domain.FilterTypeAll, domain.FilterTypeReservations, domain.FilterTypeGeneral, domain.FilterTypeSupport:
	default:
		return nil, nil, fmt.Errorf("%w: unknown conversation type %q", common.ErrInvalidInput, filters.Type)
	}

	rows, total, err := s.indexes.ListForUser(userID, filters, page, limit)
	if err != nil {
		pkglogger.GetLogger().Error().Err(err).
			Str("op", "list_conversations").
			Str("user_id", userID).
			Msg("conversation listing failed")
		return nil, nil, err
	}

	lastMessages, err := s.loadLastMessages(rows)
	if err != nil {
		return nil, nil, err
	}

	summaries := make([]*domain.ConversationSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, s.buildSummary(ctx, userID, row, lastMessages[row.LastMessageID]))
	}

	meta := &common.Meta{Page: page, Limit: limit, Total: total}
	return summaries, meta, nil
}

// GetConversationMessages returns one chronological page of a conversation
func (s *conversationService) GetConversationMessages(ctx context.Context, userID, key string, page, limit int) ([]*domain.MessageResponse, *common.Meta, error) {
	page, limit = normalizePagination(page, limit)

	parsed, err := s.authorize(userID, key)
	if err != nil {
		return nil, nil, err
	}

	var messages []*domain.Message
	var total int64
	if parsed.Kind == domain.KindReservation {
		messages, total, err = s.messages.FindByReservation(parsed.ReservationID, page, limit)
	} else {
		messages, total, err = s.messages.FindGeneralPair(parsed.ParticipantLo, parsed.ParticipantHi, page, limit)
	}
	if err != nil {
		pkglogger.GetLogger().Error().Err(err).
			Str("op", "get_conversation").
			Str("user_id", userID).
			Str("conversation_key", key).
			Msg("conversation fetch failed")
		return nil, nil, err
	}

	responses := make([]*domain.MessageResponse, len(messages))
	for i, m := range messages {
		responses[i] = m.ToResponse()
	}

	meta := &common.Meta{Page: page, Limit: limit, Total: total}
	return responses, meta, nil
}

// MarkConversationAsRead marks every unread message the user received in
// the conversation as read
func (s *conversationService) MarkConversationAsRead(ctx context.Context, userID, key string) error {
	parsed, err := s.authorize(userID, key)
	if err != nil {
		return err
	}
	return s.messages.MarkConversationRead(parsed, key, userID)
}

// DeleteConversation soft-deletes a conversation by marking it read.
// No message row is removed; the log stays intact as an audit trail.
func (s *conversationService) DeleteConversation(ctx context.Context, userID, key string) error {
	if err := s.MarkConversationAsRead(ctx, userID, key); err != nil {
		return err
	}
	pkglogger.GetLogger().Info().
		Str("op", "delete_conversation").
		Str("user_id", userID).
		Str("conversation_key", key).
		Msg("conversation soft-deleted")
	return nil
}

// authorize parses the key and verifies the caller participates in the
// conversation. Non-participants get a bare forbidden error so neither
// existence nor content leaks.
func (s *conversationService) authorize(userID, key string) (*domain.ParsedKey, error) {
	parsed, err := domain.ParseConversationKey(key)
	if err != nil {
		return nil, err
	}

	if parsed.Kind == domain.KindGeneral {
		if userID != parsed.ParticipantLo && userID != parsed.ParticipantHi {
			return nil, common.ErrForbidden
		}
		return parsed, nil
	}

	// Reservation keys carry no participants; resolve them via the index
	row, err := s.indexes.FindByKey(key)
	if err != nil {
		return nil, err
	}
	if !row.Involves(userID) {
		return nil, common.ErrForbidden
	}
	return parsed, nil
}

func (s *conversationService) loadLastMessages(rows []*domain.ConversationIndex) (map[uint64]*domain.Message, error) {
	ids := make([]uint64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.LastMessageID)
	}

	messages, err := s.messages.FindByIDs(ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[uint64]*domain.Message, len(messages))
	for _, m := range messages {
		byID[m.ID] = m
	}
	return byID, nil
}

func (s *conversationService) buildSummary(ctx context.Context, userID string, row *domain.ConversationIndex, last *domain.Message) *domain.ConversationSummary {
	otherID, otherRole := row.OtherParticipant(userID)

	participant := domain.Participant{ID: otherID, Name: otherID, Role: otherRole}
	if s.users != nil {
		if resolved, err := s.users.LookupUser(ctx, otherID); err == nil {
			participant = *resolved
		} else {
			pkglogger.GetLogger().Warn().Err(err).
				Str("op", "list_conversations").
				Str("user_id", otherID).
				Msg("user directory lookup failed")
		}
	}

	summary := &domain.ConversationSummary{
		ConversationID:   row.ConversationKey,
		Type:             row.Kind,
		OtherParticipant: participant,
		// The opening message's subject lives on the index row; the last
		// message of a long exchange usually carries none.
		Subject:       row.Subject,
		UnreadCount:   row.UnreadFor(userID),
		TotalMessages: row.MessageCount,
	}

	if last != nil {
		summary.LastMessage = last.ToResponse()
	}

	if row.ReservationID != nil && s.reservations != nil {
		if info, err := s.reservations.LookupReservation(ctx, *row.ReservationID); err == nil {
			summary.Reservation = info
		} else {
			pkglogger.GetLogger().Warn().Err(err).
				Str("op", "list_conversations").
				Str("reservation_id", *row.ReservationID).
				Msg("reservation lookup failed")
		}
	}

	return summary
}

func normalizePagination(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
