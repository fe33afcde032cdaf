package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/institutoberea/enrollment-api/internal/models"
	"github.com/institutoberea/enrollment-api/internal/repository"
	appErrors "github.com/institutoberea/enrollment-api/pkg/errors"
	"github.com/institutoberea/enrollment-api/pkg/jobs"
)

type enrollmentRequestRepository interface {
	FindByID(ctx context.Context, id string) (*models.EnrollmentRequest, error)
	Create(ctx context.Context, request *models.EnrollmentRequest) error
	UpdateStatus(ctx context.Context, id string, status models.RequestStatus, note *string) error
	List(ctx context.Context, filter models.RequestFilter) ([]models.EnrollmentRequest, int, error)
}

type rosterWriter interface {
	Find(ctx context.Context, learnerID, sectionID string) (*models.RosterMembership, error)
	Create(ctx context.Context, membership *models.RosterMembership) error
}

type sectionFinder interface {
	FindByID(ctx context.Context, id string) (*models.ClassroomSection, error)
}

type catalogInvalidator interface {
	InvalidateLearner(ctx context.Context, learnerID string) error
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// SubmitEnrollmentRequest describes a submission payload. Eligibility is not
// re-checked here: filtering happens at catalog-build time and approval
// re-validates against the roster.
type SubmitEnrollmentRequest struct {
	LearnerID string `json:"learner_id" validate:"required"`
	SectionID string `json:"section_id" validate:"required"`
}

// RejectEnrollmentRequest carries an optional reviewer note.
type RejectEnrollmentRequest struct {
	Note *string `json:"note"`
}

// EnrollmentRequestService governs the request lifecycle: Pending at
// creation, a single transition to Accepted (with its roster side effect) or
// Rejected.
type EnrollmentRequestService struct {
	requests  enrollmentRequestRepository
	roster    rosterWriter
	sections  sectionFinder
	catalog   catalogInvalidator
	warmQueue jobEnqueuer
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewEnrollmentRequestService constructs an EnrollmentRequestService. The
// catalog invalidator and warm queue are optional.
func NewEnrollmentRequestService(requests enrollmentRequestRepository, roster rosterWriter, sections sectionFinder, catalog catalogInvalidator, warmQueue jobEnqueuer, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *EnrollmentRequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentRequestService{
		requests:  requests,
		roster:    roster,
		sections:  sections,
		catalog:   catalog,
		warmQueue: warmQueue,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
	}
}

// Submit creates a Pending enrollment request for the (learner, section)
// pair.
func (s *EnrollmentRequestService) Submit(ctx context.Context, req SubmitEnrollmentRequest) (*models.EnrollmentRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment request payload")
	}
	if _, err := s.sections.FindByID(ctx, req.SectionID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}

	request := &models.EnrollmentRequest{
		LearnerID: req.LearnerID,
		SectionID: req.SectionID,
		Status:    models.RequestStatusPending,
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment request")
	}

	s.metrics.RecordRequestTransition("submitted")
	s.refreshCatalog(ctx, req.LearnerID)
	return request, nil
}

// Approve transitions the request to Accepted, first ensuring exactly one
// roster membership exists for the (learner, section) pair. Invoking it when
// a membership already exists (retry or race) does not create a duplicate:
// the storage uniqueness constraint backs the check-then-create sequence and
// a violation is treated as a benign conflict.
func (s *EnrollmentRequestService) Approve(ctx context.Context, id string) (*models.EnrollmentRequest, *models.RosterMembership, error) {
	request, err := s.requests.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment request not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment request")
	}

	membership, err := s.ensureMembership(ctx, request)
	if err != nil {
		return nil, nil, err
	}

	if err := s.requests.UpdateStatus(ctx, id, models.RequestStatusAccepted, nil); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to accept enrollment request")
	}
	request.Status = models.RequestStatusAccepted

	s.metrics.RecordRequestTransition("accepted")
	s.refreshCatalog(ctx, request.LearnerID)
	return request, membership, nil
}

// Reject transitions the request to Rejected, optionally storing a note. It
// has no roster side effect.
func (s *EnrollmentRequestService) Reject(ctx context.Context, id string, req RejectEnrollmentRequest) (*models.EnrollmentRequest, error) {
	request, err := s.requests.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment request")
	}

	if err := s.requests.UpdateStatus(ctx, id, models.RequestStatusRejected, req.Note); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject enrollment request")
	}
	request.Status = models.RequestStatusRejected
	if req.Note != nil {
		request.Note = req.Note
	}

	s.metrics.RecordRequestTransition("rejected")
	s.refreshCatalog(ctx, request.LearnerID)
	return request, nil
}

// List returns enrollment requests with pagination metadata.
func (s *EnrollmentRequestService) List(ctx context.Context, filter models.RequestFilter) ([]models.EnrollmentRequest, *models.Pagination, error) {
	requests, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollment requests")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return requests, pagination, nil
}

func (s *EnrollmentRequestService) ensureMembership(ctx context.Context, request *models.EnrollmentRequest) (*models.RosterMembership, error) {
	membership, err := s.roster.Find(ctx, request.LearnerID, request.SectionID)
	if err == nil {
		s.metrics.RecordConflictIgnored()
		s.logger.Info("membership already exists, approval is idempotent",
			zap.String("request_id", request.ID),
			zap.String("learner_id", request.LearnerID),
			zap.String("section_id", request.SectionID))
		return membership, nil
	}
	if err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster membership")
	}

	membership = &models.RosterMembership{
		LearnerID: request.LearnerID,
		SectionID: request.SectionID,
		Status:    models.MembershipStatusInProgress,
	}
	if err := s.roster.Create(ctx, membership); err != nil {
		if errors.Is(err, repository.ErrDuplicateMembership) {
			// Lost the race against a concurrent approval; the existing row wins.
			s.metrics.RecordConflictIgnored()
			existing, findErr := s.roster.Find(ctx, request.LearnerID, request.SectionID)
			if findErr != nil {
				return nil, appErrors.Wrap(findErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing roster membership")
			}
			return existing, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create roster membership")
	}
	return membership, nil
}

// refreshCatalog drops the learner's cached catalog and, when a warm queue
// is wired, schedules a rebuild so the next read is served hot.
func (s *EnrollmentRequestService) refreshCatalog(ctx context.Context, learnerID string) {
	if s.catalog != nil {
		if err := s.catalog.InvalidateLearner(ctx, learnerID); err != nil {
			s.logger.Warn("catalog invalidation failed", zap.String("learner_id", learnerID), zap.Error(err))
		}
	}
	if s.warmQueue != nil {
		job := jobs.Job{ID: uuid.NewString(), Type: "catalog-warm", Payload: learnerID}
		if err := s.warmQueue.Enqueue(job); err != nil {
			s.logger.Warn("failed to enqueue catalog warm job", zap.String("learner_id", learnerID), zap.Error(err))
		}
	}
}
