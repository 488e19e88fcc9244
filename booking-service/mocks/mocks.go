package mocks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/tripline/booking-system/booking-service/domain"
	"github.com/tripline/booking-system/shared/events"
	"github.com/tripline/booking-system/shared/models"
)

// MockBookingRepository is a testify mock of domain.BookingRepository
type MockBookingRepository struct {
	mock.Mock
}

func NewMockBookingRepository(t *testing.T) *MockBookingRepository {
	m := &MockBookingRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockBookingRepository) Save(ctx context.Context, booking *domain.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

func (m *MockBookingRepository) FindByID(ctx context.Context, id models.ID) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) FindByTravelerID(ctx context.Context, travelerID models.ID) ([]*domain.Booking, error) {
	args := m.Called(ctx, travelerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Booking), args.Error(1)
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
