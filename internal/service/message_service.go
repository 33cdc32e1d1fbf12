package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stayhub/stayhub-backend/internal/common"
	"github.com/stayhub/stayhub-backend/internal/domain"
	"github.com/stayhub/stayhub-backend/internal/repository"
	pkglogger "github.com/stayhub/stayhub-backend/pkg/logger"
	"github.com/stayhub/stayhub-backend/pkg/storage"
)

var messagesSentTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "messages_sent_total",
	Help: "Total number of messages delivered",
})

// MessageIndexer receives messages for search indexing after delivery
type MessageIndexer interface {
	IndexMessage(ctx context.Context, msg *domain.Message)
}

// MessageService business logic for message delivery and read tracking
type MessageService interface {
	Send(ctx context.Context, senderID, senderRole string, req *domain.SendMessageRequest) (*domain.MessageResponse, error)
	StartConversation(ctx context.Context, senderID, senderRole string, req *domain.StartConversationRequest) (*domain.MessageResponse, error)
	MarkAsRead(ctx context.Context, userID string, messageIDs []uint64) error
	UnreadCount(ctx context.Context, userID string) (int64, error)
}

type messageService struct {
	repo    repository.MessageRepository
	storage *storage.S3Client // optional, attachment reference checks
	indexer MessageIndexer    // optional, best-effort search indexing
}

// NewMessageService creates a new MessageService
func NewMessageService(repo repository.MessageRepository, s3 *storage.S3Client, indexer MessageIndexer) MessageService {
	return &messageService{
		repo:    repo,
		storage: s3,
		indexer: indexer,
	}
}

// Send validates and appends exactly one message. All validation happens
// before the write; a failed send leaves no partial rows behind. Duplicate
// detection is intentionally absent: a retried send creates a second message.
func (s *messageService) Send(ctx context.Context, senderID, senderRole string, req *domain.SendMessageRequest) (*domain.MessageResponse, error) {
	return s.deliver(ctx, senderID, senderRole, req, "")
}

// StartConversation delivers the first message of a conversation. The
// conversation itself has no row: it exists the moment this message does.
func (s *messageService) StartConversation(ctx context.Context, senderID, senderRole string, req *domain.StartConversationRequest) (*domain.MessageResponse, error) {
	return s.deliver(ctx, senderID, senderRole, &domain.SendMessageRequest{
		RecipientID:   req.RecipientID,
		RecipientRole: req.RecipientRole,
		Content:       req.Content,
		ReservationID: req.ReservationID,
	}, strings.TrimSpace(req.Subject))
}

func (s *messageService) deliver(ctx context.Context, senderID, senderRole string, req *domain.SendMessageRequest, subject string) (*domain.MessageResponse, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is empty", common.ErrInvalidInput)
	}
	if senderID == req.RecipientID {
		return nil, fmt.Errorf("%w: cannot send a message to yourself", common.ErrInvalidInput)
	}
	if !domain.ValidRole(senderRole) {
		return nil, fmt.Errorf("%w: unrecognized sender role %q", common.ErrInvalidInput, senderRole)
	}
	if !domain.ValidRole(req.RecipientRole) {
		return nil, fmt.Errorf("%w: unrecognized recipient role %q", common.ErrInvalidInput, req.RecipientRole)
	}

	reservationID := normalizeReservationID(req.ReservationID)

	// Derives and validates participant ids in one go
	key, err := domain.DeriveConversationKey(senderID, req.RecipientID, reservationID)
	if err != nil {
		return nil, err
	}

	attachments, err := s.resolveAttachments(ctx, req.Attachments)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		SenderID:      senderID,
		SenderRole:    senderRole,
		RecipientID:   req.RecipientID,
		RecipientRole: req.RecipientRole,
		Subject:       subject,
		Content:       content,
		ReservationID: reservationID,
		IsRead:        false,
		SentAt:        time.Now().UTC(),
		Attachments:   attachments,
	}

	if err := s.repo.Create(msg); err != nil {
		pkglogger.GetLogger().Error().Err(err).
			Str("op", "send").
			Str("user_id", senderID).
			Str("conversation_key", key).
			Msg("message delivery failed")
		return nil, err
	}

	messagesSentTotal.Inc()
	pkglogger.GetLogger().Info().
		Str("op", "send").
		Str("user_id", senderID).
		Str("conversation_key", key).
		Uint64("message_id", msg.ID).
		Msg("message delivered")

	if s.indexer != nil {
		s.indexer.IndexMessage(ctx, msg)
	}

	return msg.ToResponse(), nil
}

// resolveAttachments validates already-uploaded metadata references.
// The core records references only; it never uploads.
func (s *messageService) resolveAttachments(ctx context.Context, inputs []domain.AttachmentInput) ([]domain.MessageAttachment, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	attachments := make([]domain.MessageAttachment, 0, len(inputs))
	for _, in := range inputs {
		name := strings.TrimSpace(in.FileName)
		ref := strings.TrimSpace(in.FileURL)
		if name == "" || ref == "" {
			return nil, fmt.Errorf("%w: attachment reference is incomplete", common.ErrInvalidInput)
		}

		url := ref
		if s.storage != nil && storage.IsStorageKey(ref) {
			exists, err := s.storage.ObjectExists(ctx, ref)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", common.ErrStorage, err)
			}
			if !exists {
				return nil, fmt.Errorf("%w: attachment %q has not been uploaded", common.ErrInvalidInput, name)
			}
			url = s.storage.GetCDNURL(ref)
		}

		attachments = append(attachments, domain.MessageAttachment{
			FileName: name,
			FileURL:  url,
			FileType: in.FileType,
			FileSize: in.FileSize,
		})
	}
	return attachments, nil
}

// MarkAsRead marks a set of the caller's received messages read.
// Idempotent: re-marking an already-read message is a no-op.
func (s *messageService) MarkAsRead(ctx context.Context, userID string, messageIDs []uint64) error {
	if len(messageIDs) == 0 {
		return fmt.Errorf("%w: messageIds is empty", common.ErrInvalidInput)
	}

	if err := s.repo.MarkRead(messageIDs, userID); err != nil {
		pkglogger.GetLogger().Error().Err(err).
			Str("op", "mark_read").
			Str("user_id", userID).
			Int("count", len(messageIDs)).
			Msg("mark-read failed")
		return err
	}
	return nil
}

// UnreadCount derives the caller's total unread count fresh from message rows
func (s *messageService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.repo.CountUnread(userID)
}

func normalizeReservationID(id *string) *string {
	if id == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*id)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
