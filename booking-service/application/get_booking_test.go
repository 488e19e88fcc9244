package application

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tripline/booking-system/booking-service/domain"
	"github.com/tripline/booking-system/booking-service/mocks"
	"github.com/tripline/booking-system/shared/models"
)

func TestGetBooking_Execute(t *testing.T) {
	travelerID := models.GenerateUUID()
	booking, err := domain.CreateBooking(travelerID, domain.TripDetails{
		FlightNumber: "FL-100",
		HotelCode:    "HT-200",
		CarClass:     "compact",
	}, models.NewMoney(125000, "USD"))
	require.NoError(t, err)
	require.NoError(t, booking.Confirm(domain.Reservations{
		FlightReservationID: "fl-res-1",
		HotelReservationID:  "ht-res-1",
		CarReservationID:    "cr-res-1",
	}))

	repo := mocks.NewMockBookingRepository(t)
	repo.On("FindByID", mock.Anything, booking.ID).Return(booking, nil)

	uc := NewGetBooking(repo)
	view, err := uc.Execute(context.Background(), &GetBookingQuery{BookingID: booking.ID.String()})

	require.NoError(t, err)
	assert.Equal(t, booking.ID.String(), view.BookingID)
	assert.Equal(t, travelerID.String(), view.TravelerID)
	assert.Equal(t, "confirmed", view.Status)
	assert.Equal(t, "fl-res-1", view.Reservations.FlightReservationID)
	assert.Equal(t, models.NewMoney(125000, "USD"), view.Total)
	assert.Empty(t, view.FailureCause)
}

func TestGetBooking_Execute_NotFound(t *testing.T) {
	bookingID := models.GenerateUUID()

	repo := mocks.NewMockBookingRepository(t)
	repo.On("FindByID", mock.Anything, bookingID).Return(nil, nil)

	uc := NewGetBooking(repo)
	_, err := uc.Execute(context.Background(), &GetBookingQuery{BookingID: bookingID.String()})

	require.ErrorIs(t, err, ErrBookingNotFound)
}

func TestGetBooking_Execute_InvalidID(t *testing.T) {
	repo := mocks.NewMockBookingRepository(t)

	uc := NewGetBooking(repo)
	_, err := uc.Execute(context.Background(), &GetBookingQuery{BookingID: "not-a-uuid"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid booking ID")
	repo.AssertNotCalled(t, "FindByID")
}

func TestGetBooking_Execute_RepositoryError(t *testing.T) {
	bookingID := models.GenerateUUID()

	repo := mocks.NewMockBookingRepository(t)
	repo.On("FindByID", mock.Anything, bookingID).Return(nil, errors.New("connection reset"))

	uc := NewGetBooking(repo)
	_, err := uc.Execute(context.Background(), &GetBookingQuery{BookingID: bookingID.String()})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to find booking")
}
