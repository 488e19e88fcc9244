package infrastructure

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/tripline/booking-system/booking-service/domain"
	"github.com/tripline/booking-system/shared/events"
	"github.com/tripline/booking-system/shared/models"
)

// PostgresBookingRepository implements BookingRepository using PostgreSQL
type PostgresBookingRepository struct {
	db *sqlx.DB
}

// NewPostgresBookingRepository creates a new PostgresBookingRepository
func NewPostgresBookingRepository(db *sqlx.DB) *PostgresBookingRepository {
	return &PostgresBookingRepository{db: db}
}

var _ domain.BookingRepository = (*PostgresBookingRepository)(nil)

// postgresBooking represents a booking in the database
type postgresBooking struct {
	ID                  string    `db:"id"`
	TravelerID          string    `db:"traveler_id"`
	FlightNumber        string    `db:"flight_number"`
	HotelCode           string    `db:"hotel_code"`
	CarClass            string    `db:"car_class"`
	DepartureAt         time.Time `db:"departure_at"`
	ReturnAt            time.Time `db:"return_at"`
	Amount              int64     `db:"amount"`
	Currency            string    `db:"currency"`
	Status              string    `db:"status"`
	FlightReservationID *string   `db:"flight_reservation_id"`
	HotelReservationID  *string   `db:"hotel_reservation_id"`
	CarReservationID    *string   `db:"car_reservation_id"`
	FailureCause        *string   `db:"failure_cause"`
	CreatedAt           time.Time `db:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"`
	Version             int       `db:"version"`
}

// Save saves a booking to the database
func (r *PostgresBookingRepository) Save(ctx context.Context, booking *domain.Booking) error {
	for _, event := range booking.Events() {
		switch event.EventType {
		case events.BookingCreatedEvent:
			return r.insertBooking(ctx, booking)
		case events.BookingConfirmedEvent, events.BookingFailedEvent, events.BookingCompensatedEvent:
			return r.updateBooking(ctx, booking)
		}
	}
	// No pending events means outcome fields changed out of band
	return r.updateBooking(ctx, booking)
}

func (r *PostgresBookingRepository) insertBooking(ctx context.Context, booking *domain.Booking) error {
	query := `
		INSERT INTO bookings (
			id, traveler_id, flight_number, hotel_code, car_class,
			departure_at, return_at, amount, currency, status,
			flight_reservation_id, hotel_reservation_id, car_reservation_id,
			failure_cause, created_at, updated_at, version
		) VALUES (
			:id, :traveler_id, :flight_number, :hotel_code, :car_class,
			:departure_at, :return_at, :amount, :currency, :status,
			:flight_reservation_id, :hotel_reservation_id, :car_reservation_id,
			:failure_cause, :created_at, :updated_at, :version
		)`

	_, err := r.db.NamedExecContext(ctx, query, r.toPostgres(booking))
	if err != nil {
		return errors.Wrap(err, "failed to insert booking")
	}

	return nil
}

func (r *PostgresBookingRepository) updateBooking(ctx context.Context, booking *domain.Booking) error {
	query := `
		UPDATE bookings
		SET status = :status,
			flight_reservation_id = :flight_reservation_id,
			hotel_reservation_id = :hotel_reservation_id,
			car_reservation_id = :car_reservation_id,
			failure_cause = :failure_cause,
			updated_at = :updated_at,
			version = :version
		WHERE id = :id AND version = :old_version`

	pg := r.toPostgres(booking)
	_, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":                    pg.ID,
		"status":                pg.Status,
		"flight_reservation_id": pg.FlightReservationID,
		"hotel_reservation_id":  pg.HotelReservationID,
		"car_reservation_id":    pg.CarReservationID,
		"failure_cause":         pg.FailureCause,
		"updated_at":            pg.UpdatedAt,
		"version":               pg.Version,
		"old_version":           pg.Version - 1, // Optimistic locking
	})
	if err != nil {
		return errors.Wrap(err, "failed to update booking")
	}

	return nil
}

// FindByID finds a booking by ID
func (r *PostgresBookingRepository) FindByID(ctx context.Context, id models.ID) (*domain.Booking, error) {
	query := `
		SELECT id, traveler_id, flight_number, hotel_code, car_class,
			   departure_at, return_at, amount, currency, status,
			   flight_reservation_id, hotel_reservation_id, car_reservation_id,
			   failure_cause, created_at, updated_at, version
		FROM bookings
		WHERE id = $1`

	var pg postgresBooking
	err := r.db.GetContext(ctx, &pg, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Booking not found
		}
		return nil, errors.Wrap(err, "failed to find booking")
	}

	return r.toDomain(&pg), nil
}

// FindByTravelerID finds bookings by traveler ID
func (r *PostgresBookingRepository) FindByTravelerID(ctx context.Context, travelerID models.ID) ([]*domain.Booking, error) {
	query := `
		SELECT id, traveler_id, flight_number, hotel_code, car_class,
			   departure_at, return_at, amount, currency, status,
			   flight_reservation_id, hotel_reservation_id, car_reservation_id,
			   failure_cause, created_at, updated_at, version
		FROM bookings
		WHERE traveler_id = $1
		ORDER BY created_at DESC`

	var rows []postgresBooking
	if err := r.db.SelectContext(ctx, &rows, query, travelerID.String()); err != nil {
		return nil, errors.Wrap(err, "failed to find bookings")
	}

	bookings := make([]*domain.Booking, 0, len(rows))
	for i := range rows {
		bookings = append(bookings, r.toDomain(&rows[i]))
	}

	return bookings, nil
}

// toPostgres converts domain booking to database representation
func (r *PostgresBookingRepository) toPostgres(booking *domain.Booking) *postgresBooking {
	pg := &postgresBooking{
		ID:           booking.ID.String(),
		TravelerID:   booking.TravelerID.String(),
		FlightNumber: booking.Trip.FlightNumber,
		HotelCode:    booking.Trip.HotelCode,
		CarClass:     booking.Trip.CarClass,
		DepartureAt:  booking.Trip.DepartureAt,
		ReturnAt:     booking.Trip.ReturnAt,
		Amount:       booking.Total.Amount,
		Currency:     booking.Total.Currency,
		Status:       string(booking.Status),
		CreatedAt:    booking.Timestamps.CreatedAt,
		UpdatedAt:    booking.Timestamps.UpdatedAt,
		Version:      booking.Version.Value,
	}

	if booking.Reservations.FlightReservationID != "" {
		v := booking.Reservations.FlightReservationID
		pg.FlightReservationID = &v
	}
	if booking.Reservations.HotelReservationID != "" {
		v := booking.Reservations.HotelReservationID
		pg.HotelReservationID = &v
	}
	if booking.Reservations.CarReservationID != "" {
		v := booking.Reservations.CarReservationID
		pg.CarReservationID = &v
	}
	if booking.FailureCause != "" {
		v := booking.FailureCause
		pg.FailureCause = &v
	}

	return pg
}

// toDomain converts database representation to domain booking
func (r *PostgresBookingRepository) toDomain(pg *postgresBooking) *domain.Booking {
	booking := &domain.Booking{
		ID:         models.ID(pg.ID),
		TravelerID: models.ID(pg.TravelerID),
		Trip: domain.TripDetails{
			FlightNumber: pg.FlightNumber,
			HotelCode:    pg.HotelCode,
			CarClass:     pg.CarClass,
			DepartureAt:  pg.DepartureAt,
			ReturnAt:     pg.ReturnAt,
		},
		Total:   models.NewMoney(pg.Amount, pg.Currency),
		Status:  domain.BookingStatus(pg.Status),
		Version: models.Version{Value: pg.Version},
	}
	booking.Timestamps.CreatedAt = pg.CreatedAt
	booking.Timestamps.UpdatedAt = pg.UpdatedAt

	if pg.FlightReservationID != nil {
		booking.Reservations.FlightReservationID = *pg.FlightReservationID
	}
	if pg.HotelReservationID != nil {
		booking.Reservations.HotelReservationID = *pg.HotelReservationID
	}
	if pg.CarReservationID != nil {
		booking.Reservations.CarReservationID = *pg.CarReservationID
	}
	if pg.FailureCause != nil {
		booking.FailureCause = *pg.FailureCause
	}

	return booking
}
