package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/tripline/booking-system/booking-service/domain"
	"github.com/tripline/booking-system/shared/models"
)

// ErrBookingNotFound is returned when no booking exists for an id
var ErrBookingNotFound = errors.New("booking not found")

// GetBookingQuery represents the query to get a booking
type GetBookingQuery struct {
	BookingID string `json:"booking_id"`
}

// BookingView is the read model returned to callers
type BookingView struct {
	BookingID    string              `json:"booking_id"`
	TravelerID   string              `json:"traveler_id"`
	Trip         domain.TripDetails  `json:"trip"`
	Total        models.Money        `json:"total"`
	Status       string              `json:"status"`
	Reservations domain.Reservations `json:"reservations"`
	FailureCause string              `json:"failure_cause,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// GetBooking use case
type GetBooking struct {
	bookingRepository domain.BookingRepository
}

// NewGetBooking creates a new GetBooking use case
func NewGetBooking(bookingRepository domain.BookingRepository) *GetBooking {
	return &GetBooking{bookingRepository: bookingRepository}
}

// Execute fetches one booking
func (uc *GetBooking) Execute(ctx context.Context, query *GetBookingQuery) (*BookingView, error) {
	bookingID, err := models.NewID(query.BookingID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid booking ID")
	}

	booking, err := uc.bookingRepository.FindByID(ctx, bookingID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find booking")
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}

	return &BookingView{
		BookingID:    booking.ID.String(),
		TravelerID:   booking.TravelerID.String(),
		Trip:         booking.Trip,
		Total:        booking.Total,
		Status:       string(booking.Status),
		Reservations: booking.Reservations,
		FailureCause: booking.FailureCause,
		CreatedAt:    booking.Timestamps.CreatedAt,
		UpdatedAt:    booking.Timestamps.UpdatedAt,
	}, nil
}
