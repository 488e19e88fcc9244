package mocks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/tripline/booking-system/approval-service/domain"
	"github.com/tripline/booking-system/shared/events"
	"github.com/tripline/booking-system/shared/models"
)

// MockApprovalRepository is a testify mock of domain.ApprovalRepository
type MockApprovalRepository struct {
	mock.Mock
}

func NewMockApprovalRepository(t *testing.T) *MockApprovalRepository {
	m := &MockApprovalRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockApprovalRepository) Create(ctx context.Context, approval *domain.ApprovalRequest) error {
	args := m.Called(ctx, approval)
	return args.Error(0)
}

func (m *MockApprovalRepository) FindByID(ctx context.Context, id models.ID) (*domain.ApprovalRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ApprovalRequest), args.Error(1)
}

func (m *MockApprovalRepository) Transition(ctx context.Context, approval *domain.ApprovalRequest) error {
	args := m.Called(ctx, approval)
	return args.Error(0)
}

func (m *MockApprovalRepository) FindPending(ctx context.Context, limit int) ([]*domain.ApprovalRequest, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ApprovalRequest), args.Error(1)
}

func (m *MockApprovalRepository) FindExpiredPending(ctx context.Context, limit int) ([]*domain.ApprovalRequest, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ApprovalRequest), args.Error(1)
}

// MockWorkflowResumer is a testify mock of domain.WorkflowResumer
type MockWorkflowResumer struct {
	mock.Mock
}

func NewMockWorkflowResumer(t *testing.T) *MockWorkflowResumer {
	m := &MockWorkflowResumer{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockWorkflowResumer) Resume(ctx context.Context, callbackToken string, output interface{}) error {
	args := m.Called(ctx, callbackToken, output)
	return args.Error(0)
}

// MockPublisher is a testify mock of events.Publisher
type MockPublisher struct {
	mock.Mock
}

func NewMockPublisher(t *testing.T) *MockPublisher {
	m := &MockPublisher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPublisher) Publish(ctx context.Context, evts ...*events.Event) error {
	args := m.Called(ctx, evts)
	return args.Error(0)
}
