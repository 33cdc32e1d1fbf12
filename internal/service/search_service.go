package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/stayhub/stayhub-backend/internal/common"
	"github.com/stayhub/stayhub-backend/internal/domain"
	"github.com/stayhub/stayhub-backend/internal/repository"
	es "github.com/stayhub/stayhub-backend/pkg/elasticsearch"
	pkglogger "github.com/stayhub/stayhub-backend/pkg/logger"
)

// MessagesIndex Elasticsearch index for message content
const MessagesIndex = "stayhub_messages"

// MessageDocument represents a message indexed in Elasticsearch.
// Content is analyzed for matching; everything else is filter metadata.
type MessageDocument struct {
	MessageID     uint64    `json:"message_id"`
	SenderID      string    `json:"sender_id"`
	RecipientID   string    `json:"recipient_id"`
	SenderRole    string    `json:"sender_role"`
	RecipientRole string    `json:"recipient_role"`
	Content       string    `json:"content"`
	ReservationID string    `json:"reservation_id,omitempty"`
	Kind          string    `json:"kind"`
	SentAt        time.Time `json:"sent_at"`
}

// SearchService full-text message search, Elasticsearch-backed when
// enabled with a SQL LIKE fallback
type SearchService struct {
	esClient *es.Client
	repo     repository.MessageRepository
}

// NewSearchService creates a new SearchService
func NewSearchService(esClient *es.Client, repo repository.MessageRepository) *SearchService {
	svc := &SearchService{esClient: esClient, repo: repo}
	if esClient != nil {
		if err := svc.ensureIndex(context.Background()); err != nil {
			pkglogger.GetLogger().Error().Err(err).Msg("failed to create messages index")
		}
	}
	return svc
}

func (s *SearchService) ensureIndex(ctx context.Context) error {
	mapping := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"message_id":     map[string]interface{}{"type": "long"},
				"sender_id":      map[string]interface{}{"type": "keyword"},
				"recipient_id":   map[string]interface{}{"type": "keyword"},
				"sender_role":    map[string]interface{}{"type": "keyword"},
				"recipient_role": map[string]interface{}{"type": "keyword"},
				"content":        map[string]interface{}{"type": "text"},
				"reservation_id": map[string]interface{}{"type": "keyword"},
				"kind":           map[string]interface{}{"type": "keyword"},
				"sent_at":        map[string]interface{}{"type": "date"},
			},
		},
	}
	return s.esClient.CreateIndex(ctx, MessagesIndex, mapping)
}

// IndexMessage indexes a delivered message, best-effort. Search lags a
// failed indexing attempt; delivery never does.
func (s *SearchService) IndexMessage(ctx context.Context, msg *domain.Message) {
	if s.esClient == nil {
		return
	}

	doc := MessageDocument{
		MessageID:     msg.ID,
		SenderID:      msg.SenderID,
		RecipientID:   msg.RecipientID,
		SenderRole:    msg.SenderRole,
		RecipientRole: msg.RecipientRole,
		Content:       msg.Content,
		Kind:          domain.ConversationKindOf(msg.HasReservation(), msg.SenderRole, msg.RecipientRole),
		SentAt:        msg.SentAt,
	}
	if msg.ReservationID != nil {
		doc.ReservationID = *msg.ReservationID
	}

	if err := s.esClient.IndexDocument(ctx, MessagesIndex, strconv.FormatUint(msg.ID, 10), doc); err != nil {
		pkglogger.GetLogger().Warn().Err(err).
			Uint64("message_id", msg.ID).
			Msg("message indexing failed")
	}
}

// Search matches the query case-insensitively against content of the
// caller's messages, newest first. Queries shorter than 2 characters
// after trimming are rejected.
func (s *SearchService) Search(ctx context.Context, userID, query string, filters domain.SearchFilters, page, limit int) ([]*domain.MessageResponse, *common.Meta, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < 2 {
		return nil, nil, fmt.Errorf("%w: search query must be at least 2 characters", common.ErrInvalidInput)
	}
	page, limit = normalizePagination(page, limit)

	if s.esClient != nil {
		responses, meta, err := s.searchES(ctx, userID, query, filters, page, limit)
		if err == nil {
			return responses, meta, nil
		}
		pkglogger.GetLogger().Warn().Err(err).
			Str("op", "search").
			Str("user_id", userID).
			Msg("elasticsearch query failed, falling back to SQL")
	}

	messages, total, err := s.repo.Search(userID, query, filters, page, limit)
	if err != nil {
		return nil, nil, err
	}

	responses := make([]*domain.MessageResponse, len(messages))
	for i, m := range messages {
		responses[i] = m.ToResponse()
	}
	meta := &common.Meta{Page: page, Limit: limit, Total: total}
	return responses, meta, nil
}

func (s *SearchService) searchES(ctx context.Context, userID, query string, filters domain.SearchFilters, page, limit int) ([]*domain.MessageResponse, *common.Meta, error) {
	filter := []map[string]interface{}{
		{
			"bool": map[string]interface{}{
				"should": []map[string]interface{}{
					{"term": map[string]interface{}{"sender_id": userID}},
					{"term": map[string]interface{}{"recipient_id": userID}},
				},
				"minimum_should_match": 1,
			},
		},
	}

	switch filters.Type {
	case domain.FilterTypeReservations:
		filter = append(filter, map[string]interface{}{"term": map[string]interface{}{"kind": domain.KindReservation}})
	case domain.FilterTypeGeneral:
		filter = append(filter, map[string]interface{}{"term": map[string]interface{}{"kind": domain.KindGeneral}})
	case domain.FilterTypeSupport:
		filter = append(filter, map[string]interface{}{"term": map[string]interface{}{"kind": domain.KindSupport}})
	}
	if filters.ReservationID != "" {
		filter = append(filter, map[string]interface{}{"term": map[string]interface{}{"reservation_id": filters.ReservationID}})
	}

	esQuery := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   []map[string]interface{}{{"match": map[string]interface{}{"content": query}}},
				"filter": filter,
			},
		},
		"sort": []map[string]interface{}{
			{"sent_at": map[string]interface{}{"order": "desc"}},
		},
	}

	result, err := s.esClient.Search(ctx, MessagesIndex, esQuery, (page-1)*limit, limit)
	if err != nil {
		return nil, nil, err
	}

	ids := make([]uint64, 0, len(result.Results))
	for _, hit := range result.Results {
		id, err := strconv.ParseUint(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	messages, err := s.repo.FindByIDs(ids)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[uint64]*domain.Message, len(messages))
	for _, m := range messages {
		byID[m.ID] = m
	}

	// Preserve the search backend's ordering
	responses := make([]*domain.MessageResponse, 0, len(ids))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			responses = append(responses, m.ToResponse())
		}
	}

	meta := &common.Meta{Page: page, Limit: limit, Total: result.Total}
	return responses, meta, nil
}
