package waitlist

import (
	"context"

	"github.com/akeren/waitlist-foundry/internal/log"
	"github.com/akeren/waitlist-foundry/internal/notify"
	"github.com/akeren/waitlist-foundry/internal/storage"
	apperrors "github.com/akeren/waitlist-foundry/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/akeren/waitlist-foundry/domain/waitlist"

const joinedMessage = "Successfully joined the waitlist!"

type WaitlistService interface {
	// Join validates req, enrolls it and schedules notifications.
	Join(ctx context.Context, req *JoinWaitlistRequest) (*JoinWaitlistResponse, error)

	// Count returns the number of people on the waitlist.
	Count(ctx context.Context) (*WaitlistCountResponse, error)
}

type waitlistService struct {
	logger   *log.Logger
	store    storage.Store
	notifier notify.Notifier
	metrics  *Metrics
	tracer   trace.Tracer
}

func NewWaitlistService(logger *log.Logger, store storage.Store, notifier notify.Notifier, metrics *Metrics) WaitlistService {
	return &waitlistService{
		logger:   logger,
		store:    store,
		notifier: notifier,
		metrics:  metrics,
		tracer:   otel.Tracer(tracerName),
	}
}

func (s *waitlistService) Join(ctx context.Context, req *JoinWaitlistRequest) (*JoinWaitlistResponse, error) {
	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	ctx, span := s.tracer.Start(ctx, "waitlist.Join")
	defer span.End()

	if req == nil {
		logger.Error("Join received empty request")
		s.metrics.observe(outcomeInvalid)
		return nil, apperrors.NewInvalidRequestError("request cannot be nil", nil)
	}

	req.Normalize()

	if err := ValidateJoinRequest(req); err != nil {
		logger.Info("Join request failed validation", "error", err)
		s.metrics.observe(outcomeInvalid)
		span.SetStatus(codes.Error, "validation failed")
		return nil, err
	}

	entry := ToWaitlistEntryModel(req)

	position, err := s.store.TryEnroll(ctx, entry)
	if err != nil {
		span.RecordError(err)
		if apperrors.IsConflict(err) {
			logger.Info("Email already on the waitlist")
			s.metrics.observe(outcomeConflict)
			span.SetStatus(codes.Error, "conflict")
			return nil, err
		}

		logger.Error("Failed to enroll waitlist entry", "error", err)
		s.metrics.observe(outcomeError)
		span.SetStatus(codes.Error, "storage failure")
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("waitlist.entry_id", int64(entry.ID)),
		attribute.Int64("waitlist.position", position),
	)
	logger.Info("Waitlist entry enrolled", "entry_id", entry.ID, "position", position)
	s.metrics.observe(outcomeEnrolled)

	if s.notifier != nil {
		s.notifier.Notify(*entry, position)
	}

	return &JoinWaitlistResponse{
		Success:    true,
		Position:   position,
		TotalCount: position,
		Message:    joinedMessage,
	}, nil
}

func (s *waitlistService) Count(ctx context.Context) (*WaitlistCountResponse, error) {
	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	count, err := s.store.Count(ctx)
	if err != nil {
		logger.Error("Failed to count waitlist entries", "error", err)
		return nil, err
	}

	return &WaitlistCountResponse{Count: count}, nil
}
