package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/MAZGOURA/attestation-api/internal/models"
	appErrors "github.com/MAZGOURA/attestation-api/pkg/errors"
)

type submissionStore interface {
	Create(ctx context.Context, req *models.AttestationRequest, quota int) error
	ExistsByCIN(ctx context.Context, cin string) (bool, error)
	ExistsByName(ctx context.Context, firstName, lastName string) (bool, error)
}

type identityMatcher interface {
	Validate(firstName, lastName, group string) (bool, error)
	Suggest(firstName, lastName, group string) ([]models.RosterEntry, error)
}

// SubmitAttestationRequest is the student-facing submission payload.
// Either email or phone must be present; whichever it is becomes the
// contact key the yearly quota counts against.
type SubmitAttestationRequest struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	CIN       string `json:"cin" validate:"required"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone" validate:"omitempty"`
	GroupCode string `json:"group_code" validate:"required"`
}

// SubmissionResult carries the created request plus non-blocking
// warnings, or roster suggestions when identity validation failed.
type SubmissionResult struct {
	Request     *models.AttestationRequest `json:"request,omitempty"`
	Warnings    []string                   `json:"-"`
	Suggestions []models.RosterEntry       `json:"suggestions,omitempty"`
}

// SubmissionService runs the submission pipeline: identity validation,
// quota check, duplicate checks, atomic create.
type SubmissionService struct {
	repo      submissionStore
	matcher   identityMatcher
	quota     *QuotaTracker
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewSubmissionService constructs SubmissionService.
func NewSubmissionService(repo submissionStore, matcher identityMatcher, quota *QuotaTracker, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *SubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{
		repo:      repo,
		matcher:   matcher,
		quota:     quota,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Submit handles the unauthenticated, manually filled submission path.
// On a failed roster match the returned result still carries
// suggestions so the submitter can self-correct.
func (s *SubmissionService) Submit(ctx context.Context, req SubmitAttestationRequest) (*SubmissionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	contact, err := contactKey(req.Email, req.Phone)
	if err != nil {
		return nil, err
	}

	ok, err := s.matcher.Validate(req.FirstName, req.LastName, req.GroupCode)
	if err != nil {
		return nil, err
	}
	if !ok {
		suggestions, suggestErr := s.matcher.Suggest(req.FirstName, req.LastName, req.GroupCode)
		if suggestErr != nil {
			s.logger.Warn("suggestion lookup failed", zap.Error(suggestErr))
		}
		s.metrics.RecordSubmission("no_match")
		return &SubmissionResult{Suggestions: suggestions}, appErrors.Clone(appErrors.ErrNoRosterMatch, "")
	}

	return s.create(ctx, req, contact)
}

// SubmitVerified handles the authenticated path. The persisted identity
// comes from the token claims the external identity-verification
// service minted, never from the request body, so a token holder cannot
// submit under a fabricated name or group. The roster matcher is
// skipped; quota and duplicate rules still apply.
func (s *SubmissionService) SubmitVerified(ctx context.Context, req SubmitAttestationRequest, identity *models.IdentityClaims) (*SubmissionResult, error) {
	if !identity.VerifiedIdentity() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token carries no verified identity")
	}
	req.FirstName = identity.FirstName
	req.LastName = identity.LastName
	req.GroupCode = identity.GroupCode

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	contact, err := contactKey(req.Email, req.Phone)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, req, contact)
}

func (s *SubmissionService) create(ctx context.Context, req SubmitAttestationRequest, contact string) (*SubmissionResult, error) {
	year := s.now().Year()

	allowed, err := s.quota.CanSubmit(ctx, contact, year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check quota")
	}
	if !allowed {
		s.metrics.RecordSubmission("quota")
		return nil, appErrors.Clone(appErrors.ErrQuotaExceeded, "")
	}

	exists, err := s.repo.ExistsByCIN(ctx, strings.TrimSpace(req.CIN))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check duplicates")
	}
	if exists {
		s.metrics.RecordSubmission("duplicate")
		return nil, appErrors.Clone(appErrors.ErrDuplicateCIN, "")
	}

	// Same name is a lower-severity signal than same CIN: warn, never block.
	var warnings []string
	sameName, err := s.repo.ExistsByName(ctx, req.FirstName, req.LastName)
	if err != nil {
		s.logger.Warn("name duplicate check failed", zap.Error(err))
	} else if sameName {
		warnings = append(warnings, "a request with the same name already exists")
	}

	request := &models.AttestationRequest{
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		CIN:           strings.TrimSpace(req.CIN),
		Contact:       contact,
		GroupCode:     strings.TrimSpace(req.GroupCode),
		Status:        models.AttestationStatusPending,
		YearRequested: year,
		CreatedAt:     s.now(),
		UpdatedAt:     s.now(),
	}
	if err := s.repo.Create(ctx, request, s.quota.Limit()); err != nil {
		switch {
		case appErrors.Is(err, appErrors.ErrDuplicateCIN):
			s.metrics.RecordSubmission("duplicate")
		case appErrors.Is(err, appErrors.ErrQuotaExceeded):
			s.metrics.RecordSubmission("quota")
		default:
			s.metrics.RecordSubmission("error")
		}
		return nil, err
	}

	s.metrics.RecordSubmission("created")
	s.logger.Info("attestation request created",
		zap.String("request_id", request.ID),
		zap.String("group", request.GroupCode),
		zap.Int("year", request.YearRequested),
	)
	return &SubmissionResult{Request: request, Warnings: warnings}, nil
}

func contactKey(email, phone string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	phone = strings.TrimSpace(phone)
	switch {
	case email != "":
		return email, nil
	case phone != "":
		return phone, nil
	}
	return "", appErrors.Clone(appErrors.ErrValidation, "email or phone is required")
}
