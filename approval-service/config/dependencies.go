package config

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/tripline/booking-system/approval-service/application"
	"github.com/tripline/booking-system/approval-service/handlers"
	"github.com/tripline/booking-system/approval-service/infrastructure"
	"github.com/tripline/booking-system/shared/events"
	sharedinfra "github.com/tripline/booking-system/shared/infrastructure"
	"github.com/tripline/booking-system/shared/telemetry"
)

type Dependencies struct {
	// Database
	DB *sqlx.DB

	// Repositories
	ApprovalRepository *infrastructure.PostgresApprovalRepository

	// Use Cases
	RequestApproval *application.RequestApproval
	SubmitDecision  *application.SubmitDecision
	GetApproval     *application.GetApproval
	ListPending     *application.ListPending
	SweepTimeouts   *application.SweepTimeouts

	// HTTP Handlers
	ApprovalHandlers *handlers.ApprovalHandlers

	// Event Handlers
	ApprovalEventHandlers *handlers.ApprovalEventHandlers

	// Infrastructure
	EventPublisher  *sharedinfra.SNSEventPublisher
	EventSubscriber *sharedinfra.SQSEventSubscriber
	WorkflowResumer *sharedinfra.SFNResumer

	// Telemetry
	Telemetry         *telemetry.Telemetry
	TelemetryShutdown func()
}

func BuildDependencies(ctx context.Context, config *Config) (*Dependencies, error) {
	deps := &Dependencies{}

	// Initialize telemetry first
	if config.Telemetry.Enabled {
		telConfig := telemetry.ApprovalServiceConfig.WithOTLPEndpoint(config.Telemetry.OTLPEndpoint)
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

	workflowResumer, err := sharedinfra.NewSFNResumerFromConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow resumer: %w", err)
	}
	deps.WorkflowResumer = workflowResumer

	// Initialize repositories
	deps.ApprovalRepository = infrastructure.NewPostgresApprovalRepository(db)

	// Initialize use cases
	defaultTimeout := time.Duration(config.Approval.DefaultTimeoutSeconds) * time.Second
	deps.RequestApproval = application.NewRequestApproval(deps.ApprovalRepository, eventPublisher, defaultTimeout)
	deps.SubmitDecision = application.NewSubmitDecision(deps.ApprovalRepository, workflowResumer, eventPublisher)
	deps.GetApproval = application.NewGetApproval(deps.ApprovalRepository)
	deps.ListPending = application.NewListPending(deps.ApprovalRepository)
	deps.SweepTimeouts = application.NewSweepTimeouts(deps.ApprovalRepository, eventPublisher)

	// Initialize handlers
	deps.ApprovalHandlers = handlers.NewApprovalHandlers(
		deps.RequestApproval,
		deps.SubmitDecision,
		deps.GetApproval,
		deps.ListPending,
		deps.SweepTimeouts,
	)
	deps.ApprovalEventHandlers = handlers.NewApprovalEventHandlers(deps.RequestApproval)

	// Initialize the queue subscriber feeding the event handlers
	eventSubscriber, err := sharedinfra.NewSQSEventSubscriberFromConfig(
		ctx,
		config.AWS.SQSQueueURL,
		deps.ApprovalEventHandlers,
		sharedinfra.WithTopicPattern(events.Topic(events.ApprovalRequestedEvent)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQS subscriber: %w", err)
	}
	deps.EventSubscriber = eventSubscriber

	return deps, nil
}

// Close closes all dependencies
func (d *Dependencies) Close() error {
	var errs []error

	if d.EventSubscriber != nil {
		if err := d.EventSubscriber.Stop(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop event subscriber: %w", err))
		}
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if d.TelemetryShutdown != nil {
		d.TelemetryShutdown()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing dependencies: %v", errs)
	}

	return nil
}
