package application

import (
	"context"
	"log"
	"time"

	"github.com/pkg/errors"
	"github.com/tripline/booking-system/booking-service/domain"
	"github.com/tripline/booking-system/shared/events"
	"github.com/tripline/booking-system/shared/models"
	"github.com/tripline/booking-system/shared/saga"
	"github.com/tripline/booking-system/shared/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// TripOperations names the remote operations of the trip-reservation saga.
// The sequence is configuration, not engine code: the same orchestrator runs
// any saga whose steps are described this way.
type TripOperations struct {
	ReserveFlight string
	CancelFlight  string
	ReserveHotel  string
	CancelHotel   string
	ReserveCar    string
	CancelCar     string
}

// DefaultTripOperations returns the conventional operation names
func DefaultTripOperations() TripOperations {
	return TripOperations{
		ReserveFlight: "reserve_flight",
		CancelFlight:  "cancel_flight",
		ReserveHotel:  "reserve_hotel",
		CancelHotel:   "cancel_hotel",
		ReserveCar:    "reserve_car",
		CancelCar:     "cancel_car",
	}
}

// BookTripCommand represents the command to book a trip
type BookTripCommand struct {
	TravelerID   string    `json:"traveler_id"`
	FlightNumber string    `json:"flight_number"`
	HotelCode    string    `json:"hotel_code"`
	CarClass     string    `json:"car_class"`
	DepartureAt  time.Time `json:"departure_at"`
	ReturnAt     time.Time `json:"return_at"`
	Amount       int64     `json:"amount"`
	Currency     string    `json:"currency"`
}

// BookTripResponse represents the response after booking a trip
type BookTripResponse struct {
	BookingID    string              `json:"booking_id"`
	Status       string              `json:"status"`
	Reservations domain.Reservations `json:"reservations"`
}

// BookTrip use case. Runs the three-legged reservation saga for a new booking.
type BookTrip struct {
	bookingRepository domain.BookingRepository
	orchestrator      *saga.Orchestrator
	eventPublisher    events.Publisher
	operations        TripOperations
}

// NewBookTrip creates a new BookTrip use case
func NewBookTrip(
	bookingRepository domain.BookingRepository,
	orchestrator *saga.Orchestrator,
	eventPublisher events.Publisher,
	operations TripOperations,
) *BookTrip {
	return &BookTrip{
		bookingRepository: bookingRepository,
		orchestrator:      orchestrator,
		eventPublisher:    eventPublisher,
		operations:        operations,
	}
}

// Execute books a trip. On any leg failure the completed legs are cancelled
// in reverse order and the booking records the failure with the rollback
// outcome.
func (uc *BookTrip) Execute(ctx context.Context, cmd *BookTripCommand) (*BookTripResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "BookTrip.Execute")
	defer span.End()

	if err := uc.validateCommand(cmd); err != nil {
		return nil, errors.Wrap(err, "invalid command")
	}

	travelerID, err := models.NewID(cmd.TravelerID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid traveler ID")
	}

	trip := domain.TripDetails{
		FlightNumber: cmd.FlightNumber,
		HotelCode:    cmd.HotelCode,
		CarClass:     cmd.CarClass,
		DepartureAt:  cmd.DepartureAt,
		ReturnAt:     cmd.ReturnAt,
	}

	booking, err := domain.CreateBooking(travelerID, trip, models.NewMoney(cmd.Amount, cmd.Currency))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create booking")
	}

	if err := uc.bookingRepository.Save(ctx, booking); err != nil {
		return nil, errors.Wrap(err, "failed to save booking")
	}
	uc.publishEvents(ctx, booking)

	result, err := uc.orchestrator.Execute(ctx, uc.tripSaga(booking), map[string]interface{}{
		"booking_id":  booking.ID.String(),
		"traveler_id": booking.TravelerID.String(),
	})
	if err != nil {
		return nil, uc.recordFailure(ctx, booking, err)
	}

	reservations := domain.Reservations{
		FlightReservationID: stringResult(result.StepResults, "flight", "reservation_id"),
		HotelReservationID:  stringResult(result.StepResults, "hotel", "reservation_id"),
		CarReservationID:    stringResult(result.StepResults, "car", "reservation_id"),
	}

	if err := booking.Confirm(reservations); err != nil {
		return nil, errors.Wrap(err, "failed to confirm booking")
	}
	if err := uc.bookingRepository.Save(ctx, booking); err != nil {
		return nil, errors.Wrap(err, "failed to save confirmed booking")
	}
	uc.publishEvents(ctx, booking)

	telemetry.RecordCounter(ctx, "bookings_total", "Trip bookings", 1,
		attribute.String("status", string(booking.Status)),
	)

	return &BookTripResponse{
		BookingID:    booking.ID.String(),
		Status:       string(booking.Status),
		Reservations: reservations,
	}, nil
}

// tripSaga builds the step sequence of the trip-reservation saga. The booking
// id rides along as the idempotency key of every leg.
func (uc *BookTrip) tripSaga(booking *domain.Booking) saga.Definition {
	base := func(exec *saga.Execution) map[string]interface{} {
		return map[string]interface{}{
			"booking_id":  booking.ID.String(),
			"traveler_id": booking.TravelerID.String(),
		}
	}

	cancelPayload := func(step string) saga.CompensationPayloadBuilder {
		return func(exec *saga.Execution) map[string]interface{} {
			payload := map[string]interface{}{
				"booking_id": booking.ID.String(),
			}
			if id, ok := exec.Result(step)["reservation_id"]; ok {
				payload["reservation_id"] = id
			}
			return payload
		}
	}

	return saga.Definition{
		Name: "trip-reservation",
		Steps: []saga.StepDefinition{
			{
				Name:         "flight",
				Operation:    uc.operations.ReserveFlight,
				Compensation: uc.operations.CancelFlight,
				Payload: func(exec *saga.Execution) (map[string]interface{}, error) {
					payload := base(exec)
					payload["flight_number"] = booking.Trip.FlightNumber
					payload["departure_at"] = booking.Trip.DepartureAt
					payload["return_at"] = booking.Trip.ReturnAt
					return payload, nil
				},
				CompensationPayload: cancelPayload("flight"),
			},
			{
				Name:         "hotel",
				Operation:    uc.operations.ReserveHotel,
				Compensation: uc.operations.CancelHotel,
				Payload: func(exec *saga.Execution) (map[string]interface{}, error) {
					payload := base(exec)
					payload["hotel_code"] = booking.Trip.HotelCode
					payload["check_in"] = booking.Trip.DepartureAt
					payload["check_out"] = booking.Trip.ReturnAt
					return payload, nil
				},
				CompensationPayload: cancelPayload("hotel"),
			},
			{
				Name:         "car",
				Operation:    uc.operations.ReserveCar,
				Compensation: uc.operations.CancelCar,
				Payload: func(exec *saga.Execution) (map[string]interface{}, error) {
					payload := base(exec)
					payload["car_class"] = booking.Trip.CarClass
					payload["pick_up"] = booking.Trip.DepartureAt
					payload["drop_off"] = booking.Trip.ReturnAt
					return payload, nil
				},
				CompensationPayload: cancelPayload("car"),
			},
		},
	}
}

// recordFailure persists the failed booking and passes the saga error up
func (uc *BookTrip) recordFailure(ctx context.Context, booking *domain.Booking, sagaErr error) error {
	compensated := false
	var report *saga.SagaError
	if errors.As(sagaErr, &report) {
		compensated = !saga.AnyFailed(report.Compensations)
	}

	if err := booking.Fail(sagaErr.Error(), compensated); err != nil {
		log.Printf("booking %s: failed to mark failure: %v", booking.ID, err)
		return sagaErr
	}

	if err := uc.bookingRepository.Save(ctx, booking); err != nil {
		log.Printf("booking %s: failed to save failure: %v", booking.ID, err)
	}
	uc.publishEvents(ctx, booking)

	telemetry.RecordCounter(ctx, "bookings_total", "Trip bookings", 1,
		attribute.String("status", string(booking.Status)),
	)

	return sagaErr
}

func (uc *BookTrip) publishEvents(ctx context.Context, booking *domain.Booking) {
	if err := uc.eventPublisher.Publish(ctx, booking.Events()...); err != nil {
		log.Printf("booking %s: failed to publish events: %v", booking.ID, err)
	}
	booking.ClearEvents()
}

func (uc *BookTrip) validateCommand(cmd *BookTripCommand) error {
	if cmd.TravelerID == "" {
		return errors.New("traveler ID is required")
	}
	if cmd.FlightNumber == "" {
		return errors.New("flight number is required")
	}
	if cmd.HotelCode == "" {
		return errors.New("hotel code is required")
	}
	if cmd.CarClass == "" {
		return errors.New("car class is required")
	}
	if cmd.Amount <= 0 {
		return errors.New("amount must be positive")
	}
	if cmd.Currency == "" {
		return errors.New("currency is required")
	}
	return nil
}

func stringResult(results map[string]map[string]interface{}, step, key string) string {
	if stepResult, ok := results[step]; ok {
		if value, ok := stepResult[key].(string); ok {
			return value
		}
	}
	return ""
}
