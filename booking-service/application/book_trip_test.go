package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/tripline/booking-system/booking-service/domain"
	"github.com/tripline/booking-system/booking-service/mocks"
	"github.com/tripline/booking-system/shared/models"
	"github.com/tripline/booking-system/shared/saga"
)

func validBookTripCommand() *BookTripCommand {
	return &BookTripCommand{
		TravelerID:   models.GenerateUUID().String(),
		FlightNumber: "TL714",
		HotelCode:    "HTL-CAN-01",
		CarClass:     "compact",
		DepartureAt:  time.Now().Add(48 * time.Hour),
		ReturnAt:     time.Now().Add(96 * time.Hour),
		Amount:       125000,
		Currency:     "USD",
	}
}

func reserveOK(reservationID string) saga.OperationFunc {
	return func(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{"reservation_id": reservationID}, nil
	}
}

func cancelOK() saga.OperationFunc {
	return func(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{"cancelled": true}, nil
	}
}

func TestBookTrip_Execute(t *testing.T) {
	t.Run("every leg succeeds", func(t *testing.T) {
		invoker := saga.NewFuncInvoker()
		invoker.Register("reserve_flight", reserveOK("FL-1"))
		invoker.Register("reserve_hotel", reserveOK("HT-2"))
		invoker.Register("reserve_car", reserveOK("CR-3"))

		repo := mocks.NewMockBookingRepository(t)
		publisher := mocks.NewMockPublisher(t)
		repo.On("Save", mock.Anything, mock.Anything).Return(nil).Twice()
		publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

		uc := NewBookTrip(repo, saga.NewOrchestrator(invoker), publisher, DefaultTripOperations())

		resp, err := uc.Execute(context.Background(), validBookTripCommand())

		assert.NoError(t, err)
		assert.Equal(t, string(domain.BookingStatusConfirmed), resp.Status)
		assert.Equal(t, "FL-1", resp.Reservations.FlightReservationID)
		assert.Equal(t, "HT-2", resp.Reservations.HotelReservationID)
		assert.Equal(t, "CR-3", resp.Reservations.CarReservationID)
	})

	t.Run("car reservation fails and earlier legs are cancelled in reverse", func(t *testing.T) {
		var cancelled []string
		invoker := saga.NewFuncInvoker()
		invoker.Register("reserve_flight", reserveOK("FL-1"))
		invoker.Register("reserve_hotel", reserveOK("HT-2"))
		invoker.Register("reserve_car", func(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
			return nil, &saga.StepError{Operation: "reserve_car", StatusCode: 409, Message: "no cars available"}
		})
		invoker.Register("cancel_hotel", func(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
			cancelled = append(cancelled, "cancel_hotel")
			assert.Equal(t, "HT-2", payload["reservation_id"])
			return map[string]interface{}{"cancelled": true}, nil
		})
		invoker.Register("cancel_flight", func(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
			cancelled = append(cancelled, "cancel_flight")
			assert.Equal(t, "FL-1", payload["reservation_id"])
			return map[string]interface{}{"cancelled": true}, nil
		})

		repo := mocks.NewMockBookingRepository(t)
		publisher := mocks.NewMockPublisher(t)
		repo.On("Save", mock.Anything, mock.Anything).Return(nil).Twice()
		publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

		uc := NewBookTrip(repo, saga.NewOrchestrator(invoker), publisher, DefaultTripOperations())

		resp, err := uc.Execute(context.Background(), validBookTripCommand())

		assert.Nil(t, resp)
		var report *saga.SagaError
		assert.ErrorAs(t, err, &report)
		assert.Equal(t, saga.ExecutionFailed, report.Status)
		assert.Contains(t, report.Original.Error(), "no cars available")

		// Hotel is undone before flight, and the failed car leg produces no outcome
		assert.Equal(t, []string{"cancel_hotel", "cancel_flight"}, cancelled)
		assert.Len(t, report.Compensations, 2)
		assert.Equal(t, "hotel", report.Compensations[0].Step)
		assert.Equal(t, "flight", report.Compensations[1].Step)
		assert.Equal(t, saga.CompensationSucceeded, report.Compensations[0].Status)
		assert.Equal(t, saga.CompensationSucceeded, report.Compensations[1].Status)
	})

	t.Run("failed cancellation marks the booking failed not compensated", func(t *testing.T) {
		invoker := saga.NewFuncInvoker()
		invoker.Register("reserve_flight", reserveOK("FL-1"))
		invoker.Register("reserve_hotel", func(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
			return nil, &saga.StepError{Operation: "reserve_hotel", StatusCode: 500, Message: "hotel system down"}
		})
		invoker.Register("cancel_flight", func(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
			return nil, &saga.StepError{Operation: "cancel_flight", StatusCode: 500, Message: "cancel failed"}
		})

		var saved *domain.Booking
		repo := mocks.NewMockBookingRepository(t)
		publisher := mocks.NewMockPublisher(t)
		repo.On("Save", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { saved = args.Get(1).(*domain.Booking) }).
			Return(nil).Twice()
		publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

		uc := NewBookTrip(repo, saga.NewOrchestrator(invoker), publisher, DefaultTripOperations())

		_, err := uc.Execute(context.Background(), validBookTripCommand())

		var report *saga.SagaError
		assert.ErrorAs(t, err, &report)
		assert.Equal(t, saga.ExecutionCompensationFailed, report.Status)
		assert.Equal(t, domain.BookingStatusFailed, saved.Status)
	})

	t.Run("validation failures", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(*BookTripCommand)
		}{
			{name: "missing traveler", mutate: func(c *BookTripCommand) { c.TravelerID = "" }},
			{name: "missing flight", mutate: func(c *BookTripCommand) { c.FlightNumber = "" }},
			{name: "missing hotel", mutate: func(c *BookTripCommand) { c.HotelCode = "" }},
			{name: "missing car", mutate: func(c *BookTripCommand) { c.CarClass = "" }},
			{name: "non-positive amount", mutate: func(c *BookTripCommand) { c.Amount = 0 }},
			{name: "missing currency", mutate: func(c *BookTripCommand) { c.Currency = "" }},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				repo := mocks.NewMockBookingRepository(t)
				publisher := mocks.NewMockPublisher(t)
				uc := NewBookTrip(repo, saga.NewOrchestrator(saga.NewFuncInvoker()), publisher, DefaultTripOperations())

				cmd := validBookTripCommand()
				tt.mutate(cmd)

				resp, err := uc.Execute(context.Background(), cmd)

				assert.Nil(t, resp)
				assert.Error(t, err)
				repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
			})
		}
	})
}
