package domain

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/tripline/booking-system/shared/events"
	"github.com/tripline/booking-system/shared/models"
)

// BookingStatus represents the status of a trip booking
type BookingStatus string

const (
	BookingStatusCreated     BookingStatus = "created"
	BookingStatusConfirmed   BookingStatus = "confirmed"
	BookingStatusFailed      BookingStatus = "failed"
	BookingStatusCompensated BookingStatus = "compensated"
)

// TripDetails carries the three reservation legs of a trip
type TripDetails struct {
	FlightNumber string    `json:"flight_number"`
	HotelCode    string    `json:"hotel_code"`
	CarClass     string    `json:"car_class"`
	DepartureAt  time.Time `json:"departure_at"`
	ReturnAt     time.Time `json:"return_at"`
}

// Reservations holds the confirmation ids returned by the three legs
type Reservations struct {
	FlightReservationID string `json:"flight_reservation_id,omitempty"`
	HotelReservationID  string `json:"hotel_reservation_id,omitempty"`
	CarReservationID    string `json:"car_reservation_id,omitempty"`
}

// Booking aggregate root. The booking id doubles as the idempotency key
// handed to every reservation leg.
type Booking struct {
	ID           models.ID
	TravelerID   models.ID
	Trip         TripDetails
	Total        models.Money
	Status       BookingStatus
	Reservations Reservations
	FailureCause string
	Timestamps   models.Timestamps
	Version      models.Version

	events []*events.Event
}

// CreateBooking factory method
func CreateBooking(travelerID models.ID, trip TripDetails, total models.Money) (*Booking, error) {
	if travelerID.IsEmpty() {
		return nil, errors.New("traveler ID is required")
	}
	if trip.FlightNumber == "" || trip.HotelCode == "" || trip.CarClass == "" {
		return nil, errors.New("flight, hotel and car details are required")
	}
	if !total.IsPositive() {
		return nil, errors.New("total must be positive")
	}

	booking := &Booking{
		ID:         models.GenerateUUID(),
		TravelerID: travelerID,
		Trip:       trip,
		Total:      total,
		Status:     BookingStatusCreated,
		Timestamps: models.NewTimestamps(),
		Version:    models.NewVersion(),
	}

	event := events.NewEvent(booking.ID, events.BookingCreatedEvent, BookingCreatedData{
		BookingID:  booking.ID,
		TravelerID: booking.TravelerID,
		Trip:       booking.Trip,
		Total:      booking.Total,
	})

	booking.recordEvent(event)
	return booking, nil
}

// Confirm marks the booking confirmed with the reservation ids of its legs
func (b *Booking) Confirm(reservations Reservations) error {
	if b.Status != BookingStatusCreated {
		return errors.New("booking can only be confirmed from created status")
	}

	b.Status = BookingStatusConfirmed
	b.Reservations = reservations
	b.Timestamps = b.Timestamps.Update()
	b.Version = b.Version.Update()

	event := events.NewEvent(b.ID, events.BookingConfirmedEvent, BookingConfirmedData{
		BookingID:    b.ID,
		TravelerID:   b.TravelerID,
		Reservations: b.Reservations,
		ConfirmedAt:  time.Now(),
	})

	b.recordEvent(event)
	return nil
}

// Fail marks the booking failed. Compensated reports whether every completed
// leg was successfully cancelled during rollback.
func (b *Booking) Fail(cause string, compensated bool) error {
	if b.Status == BookingStatusConfirmed {
		return errors.New("cannot fail a confirmed booking")
	}

	b.Status = BookingStatusFailed
	if compensated {
		b.Status = BookingStatusCompensated
	}
	b.FailureCause = cause
	b.Timestamps = b.Timestamps.Update()
	b.Version = b.Version.Update()

	event := events.NewEvent(b.ID, events.BookingFailedEvent, BookingFailedData{
		BookingID:  b.ID,
		TravelerID: b.TravelerID,
		Cause:      cause,
		Status:     b.Status,
		FailedAt:   time.Now(),
	})

	b.recordEvent(event)
	return nil
}

// Events returns domain events
func (b *Booking) Events() []*events.Event {
	return b.events
}

// ClearEvents clears domain events
func (b *Booking) ClearEvents() {
	b.events = make([]*events.Event, 0)
}

func (b *Booking) recordEvent(event *events.Event) {
	b.events = append(b.events, event)
}

// Event Data Structures
type BookingCreatedData struct {
	BookingID  models.ID    `json:"booking_id"`
	TravelerID models.ID    `json:"traveler_id"`
	Trip       TripDetails  `json:"trip"`
	Total      models.Money `json:"total"`
}

type BookingConfirmedData struct {
	BookingID    models.ID    `json:"booking_id"`
	TravelerID   models.ID    `json:"traveler_id"`
	Reservations Reservations `json:"reservations"`
	ConfirmedAt  time.Time    `json:"confirmed_at"`
}

type BookingFailedData struct {
	BookingID  models.ID     `json:"booking_id"`
	TravelerID models.ID     `json:"traveler_id"`
	Cause      string        `json:"cause"`
	Status     BookingStatus `json:"status"`
	FailedAt   time.Time     `json:"failed_at"`
}

// BookingRepository interface
type BookingRepository interface {
	Save(ctx context.Context, booking *Booking) error
	FindByID(ctx context.Context, id models.ID) (*Booking, error)
	FindByTravelerID(ctx context.Context, travelerID models.ID) ([]*Booking, error)
}
