package config

import (
	"context"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/tripline/booking-system/booking-service/application"
	"github.com/tripline/booking-system/booking-service/handlers"
	"github.com/tripline/booking-system/booking-service/infrastructure"
	sharedinfra "github.com/tripline/booking-system/shared/infrastructure"
	"github.com/tripline/booking-system/shared/saga"
	"github.com/tripline/booking-system/shared/telemetry"
)

type Dependencies struct {
	// Database
	DB *sqlx.DB

	// Repositories
	BookingRepository *infrastructure.PostgresBookingRepository

	// Saga engine
	Orchestrator *saga.Orchestrator

	// Use Cases
	BookTrip   *application.BookTrip
	GetBooking *application.GetBooking

	// HTTP Handlers
	BookingHandlers *handlers.BookingHandlers

	// Infrastructure
	EventPublisher *sharedinfra.SNSEventPublisher
	StepInvoker    *sharedinfra.LambdaInvoker

	// Telemetry
	Telemetry         *telemetry.Telemetry
	TelemetryShutdown func()
}

func BuildDependencies(ctx context.Context, config *Config) (*Dependencies, error) {
	deps := &Dependencies{}

	// Initialize telemetry first
	if config.Telemetry.Enabled {
		telConfig := telemetry.BookingServiceConfig.WithOTLPEndpoint(config.Telemetry.OTLPEndpoint)
		tel, telemetryShutdown, err := telemetry.InitTelemetry(ctx, telConfig)
		if err != nil {
			log.Printf("Failed to initialize telemetry: %v", err)
			// Continue without telemetry rather than failing
		} else {
			deps.Telemetry = tel
			deps.TelemetryShutdown = telemetryShutdown
		}
	}

	// Initialize database
	db, err := sqlx.Connect("postgres", config.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	deps.DB = db

	// Initialize AWS infrastructure
	eventPublisher, err := sharedinfra.NewSNSEventPublisherFromConfig(ctx, config.AWS.SNSTopicArn)
	if err != nil {
		return nil, fmt.Errorf("failed to create SNS publisher: %w", err)
	}
	deps.EventPublisher = eventPublisher

	stepInvoker, err := sharedinfra.NewLambdaInvokerFromConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create step invoker: %w", err)
	}
	deps.StepInvoker = stepInvoker

	// Initialize repositories
	deps.BookingRepository = infrastructure.NewPostgresBookingRepository(db)

	// Initialize the saga engine with a durable execution journal
	deps.Orchestrator = saga.NewOrchestrator(
		stepInvoker,
		saga.WithJournal(sharedinfra.NewPostgresExecutionJournal(db)),
		saga.WithPublisher(eventPublisher),
	)

	// Initialize use cases
	deps.BookTrip = application.NewBookTrip(
		deps.BookingRepository,
		deps.Orchestrator,
		eventPublisher,
		tripOperations(config.Saga),
	)
	deps.GetBooking = application.NewGetBooking(deps.BookingRepository)

	// Initialize handlers
	deps.BookingHandlers = handlers.NewBookingHandlers(deps.BookTrip, deps.GetBooking)

	return deps, nil
}

func tripOperations(cfg Saga) application.TripOperations {
	ops := application.DefaultTripOperations()
	if cfg.ReserveFlight != "" {
		ops.ReserveFlight = cfg.ReserveFlight
	}
	if cfg.CancelFlight != "" {
		ops.CancelFlight = cfg.CancelFlight
	}
	if cfg.ReserveHotel != "" {
		ops.ReserveHotel = cfg.ReserveHotel
	}
	if cfg.CancelHotel != "" {
		ops.CancelHotel = cfg.CancelHotel
	}
	if cfg.ReserveCar != "" {
		ops.ReserveCar = cfg.ReserveCar
	}
	if cfg.CancelCar != "" {
		ops.CancelCar = cfg.CancelCar
	}
	return ops
}

// Close closes all dependencies
func (d *Dependencies) Close() error {
	if d.TelemetryShutdown != nil {
		d.TelemetryShutdown()
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	return nil
}
