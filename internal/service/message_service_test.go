package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stayhub/stayhub-backend/internal/common"
	"github.com/stayhub/stayhub-backend/internal/domain"
	"github.com/stayhub/stayhub-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func init() {
	logger.InitStructured("production")
}

// MockMessageRepository is a mock implementation of MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(msg *domain.Message) error {
	args := m.Called(msg)
	return args.Error(0)
}

func (m *MockMessageRepository) FindByID(id uint64) (*domain.Message, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func (m *MockMessageRepository) FindByIDs(ids []uint64) ([]*domain.Message, error) {
	args := m.Called(ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

func (m *MockMessageRepository) FindGeneralPair(lo, hi string, page, limit int) ([]*domain.Message, int64, error) {
	args := m.Called(lo, hi, page, limit)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*domain.Message), args.Get(1).(int64), args.Error(2)
}

func (m *MockMessageRepository) FindByReservation(reservationID string, page, limit int) ([]*domain.Message, int64, error) {
	args := m.Called(reservationID, page, limit)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*domain.Message), args.Get(1).(int64), args.Error(2)
}

func (m *MockMessageRepository) MarkRead(ids []uint64, userID string) error {
	args := m.Called(ids, userID)
	return args.Error(0)
}

func (m *MockMessageRepository) MarkConversationRead(parsed *domain.ParsedKey, key, userID string) error {
	args := m.Called(parsed, key, userID)
	return args.Error(0)
}

func (m *MockMessageRepository) CountUnread(userID string) (int64, error) {
	args := m.Called(userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMessageRepository) Search(userID, query string, filters domain.SearchFilters, page, limit int) ([]*domain.Message, int64, error) {
	args := m.Called(userID, query, filters, page, limit)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*domain.Message), args.Get(1).(int64), args.Error(2)
}

// MockIndexer records delivered messages handed to the search backend
type MockIndexer struct {
	mock.Mock
}

func (m *MockIndexer) IndexMessage(ctx context.Context, msg *domain.Message) {
	m.Called(ctx, msg)
}

func TestSend_Success(t *testing.T) {
	repo := new(MockMessageRepository)
	indexer := new(MockIndexer)
	svc := NewMessageService(repo, nil, indexer)

	repo.On("Create", mock.AnythingOfType("*domain.Message")).Return(nil)
	indexer.On("IndexMessage", mock.Anything, mock.AnythingOfType("*domain.Message")).Return()

	resp, err := svc.Send(context.Background(), "guest1", domain.RoleGuest, &domain.SendMessageRequest{
		RecipientID:   "owner1",
		RecipientRole: domain.RoleOwner,
		Content:       "  Hello there  ",
	})

	assert.NoError(t, err)
	assert.Equal(t, "Hello there", resp.Content)
	assert.Equal(t, "general_guest1_owner1", resp.ConversationID)
	assert.False(t, resp.IsRead)
	assert.False(t, resp.SentAt.IsZero())

	repo.AssertExpectations(t)
	indexer.AssertExpectations(t)
}

func TestSend_ReservationScoped(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := NewMessageService(repo, nil, nil)

	repo.On("Create", mock.MatchedBy(func(msg *domain.Message) bool {
		return msg.ReservationID != nil && *msg.ReservationID == "res42"
	})).Return(nil)

	resID := "res42"
	resp, err := svc.Send(context.Background(), "guest1", domain.RoleGuest, &domain.SendMessageRequest{
		RecipientID:   "owner1",
		RecipientRole: domain.RoleOwner,
		Content:       "About my booking",
		ReservationID: &resID,
	})

	assert.NoError(t, err)
	assert.Equal(t, "reservation_res42", resp.ConversationID)
	repo.AssertExpectations(t)
}

func TestSend_BlankReservationTreatedAsGeneral(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := NewMessageService(repo, nil, nil)

	repo.On("Create", mock.MatchedBy(func(msg *domain.Message) bool {
		return msg.ReservationID == nil
	})).Return(nil)

	blank := "   "
	resp, err := svc.Send(context.Background(), "guest1", domain.RoleGuest, &domain.SendMessageRequest{
		RecipientID:   "owner1",
		RecipientRole: domain.RoleOwner,
		Content:       "hi",
		ReservationID: &blank,
	})

	assert.NoError(t, err)
	assert.Equal(t, "general_guest1_owner1", resp.ConversationID)
	repo.AssertExpectations(t)
}

func TestSend_ValidationErrors(t *testing.T) {
	tests := []struct {
		name       string
		senderID   string
		senderRole string
		req        *domain.SendMessageRequest
	}{
		{
			"empty content",
			"guest1", domain.RoleGuest,
			&domain.SendMessageRequest{RecipientID: "owner1", RecipientRole: domain.RoleOwner, Content: "   "},
		},
		{
			"self send",
			"guest1", domain.RoleGuest,
			&domain.SendMessageRequest{RecipientID: "guest1", RecipientRole: domain.RoleGuest, Content: "hi"},
		},
		{
			"unknown sender role",
			"guest1", "superuser",
			&domain.SendMessageRequest{RecipientID: "owner1", RecipientRole: domain.RoleOwner, Content: "hi"},
		},
		{
			"unknown recipient role",
			"guest1", domain.RoleGuest,
			&domain.SendMessageRequest{RecipientID: "owner1", RecipientRole: "bot", Content: "hi"},
		},
		{
			"underscore in recipient id",
			"guest1", domain.RoleGuest,
			&domain.SendMessageRequest{RecipientID: "own_er", RecipientRole: domain.RoleOwner, Content: "hi"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockMessageRepository)
			svc := NewMessageService(repo, nil, nil)

			_, err := svc.Send(context.Background(), tt.senderID, tt.senderRole, tt.req)

			assert.ErrorIs(t, err, common.ErrInvalidInput)
			repo.AssertNotCalled(t, "Create", mock.Anything)
		})
	}
}

func TestSend_RepositoryFailurePropagates(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := NewMessageService(repo, nil, nil)

	repo.On("Create", mock.Anything).Return(common.ErrStorage)

	_, err := svc.Send(context.Background(), "guest1", domain.RoleGuest, &domain.SendMessageRequest{
		RecipientID:   "owner1",
		RecipientRole: domain.RoleOwner,
		Content:       "hi",
	})

	assert.ErrorIs(t, err, common.ErrStorage)
}

func TestSend_IncompleteAttachmentRejected(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := NewMessageService(repo, nil, nil)

	_, err := svc.Send(context.Background(), "guest1", domain.RoleGuest, &domain.SendMessageRequest{
		RecipientID:   "owner1",
		RecipientRole: domain.RoleOwner,
		Content:       "see attached",
		Attachments:   []domain.AttachmentInput{{FileName: "photo.jpg", FileURL: ""}},
	})

	assert.ErrorIs(t, err, common.ErrInvalidInput)
	repo.AssertNotCalled(t, "Create", mock.Anything)
}

func TestStartConversation_CarriesSubject(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := NewMessageService(repo, nil, nil)

	repo.On("Create", mock.MatchedBy(func(msg *domain.Message) bool {
		return msg.Subject == "Early check-in"
	})).Return(nil)

	resp, err := svc.StartConversation(context.Background(), "guest1", domain.RoleGuest, &domain.StartConversationRequest{
		RecipientID:   "owner1",
		RecipientRole: domain.RoleOwner,
		Subject:       "  Early check-in  ",
		Content:       "Can I arrive at noon?",
	})

	assert.NoError(t, err)
	assert.Equal(t, "Early check-in", resp.Subject)
	repo.AssertExpectations(t)
}

func TestMarkAsRead_EmptySetRejected(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := NewMessageService(repo, nil, nil)

	err := svc.MarkAsRead(context.Background(), "owner1", nil)

	assert.ErrorIs(t, err, common.ErrInvalidInput)
	repo.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything)
}

func TestMarkAsRead_NotRecipient(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := NewMessageService(repo, nil, nil)

	repo.On("MarkRead", []uint64{1, 2}, "intruder").Return(common.ErrMessageNotFound)

	err := svc.MarkAsRead(context.Background(), "intruder", []uint64{1, 2})

	assert.ErrorIs(t, err, common.ErrMessageNotFound)
}

func TestMarkAsRead_Idempotent(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := NewMessageService(repo, nil, nil)

	repo.On("MarkRead", []uint64{5}, "owner1").Return(nil).Twice()

	assert.NoError(t, svc.MarkAsRead(context.Background(), "owner1", []uint64{5}))
	assert.NoError(t, svc.MarkAsRead(context.Background(), "owner1", []uint64{5}))
	repo.AssertExpectations(t)
}

func TestUnreadCount(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := NewMessageService(repo, nil, nil)

	repo.On("CountUnread", "owner1").Return(int64(4), nil)

	total, err := svc.UnreadCount(context.Background(), "owner1")

	assert.NoError(t, err)
	assert.Equal(t, int64(4), total)
}

func TestUnreadCount_StorageError(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := NewMessageService(repo, nil, nil)

	repo.On("CountUnread", "owner1").Return(int64(0), errors.New("connection refused"))

	_, err := svc.UnreadCount(context.Background(), "owner1")

	assert.Error(t, err)
}
