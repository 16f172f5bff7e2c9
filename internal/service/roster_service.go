package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MAZGOURA/attestation-api/internal/models"
	"github.com/MAZGOURA/attestation-api/internal/roster"
	appErrors "github.com/MAZGOURA/attestation-api/pkg/errors"
)

type suggestionCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// IdentityCheckResult is the outcome of a roster identity check.
type IdentityCheckResult struct {
	Valid       bool                 `json:"valid"`
	Suggestions []models.RosterEntry `json:"suggestions,omitempty"`
}

// RosterService exposes the read-only roster: identity checks with
// suggestion caching and group enumeration. Caching is safe because the
// roster never changes within a process lifetime.
type RosterService struct {
	index   *roster.Index
	matcher identityMatcher
	cache   suggestionCache
	ttl     time.Duration
	metrics *MetricsService
	logger  *zap.Logger
}

// NewRosterService constructs RosterService. cache may be nil.
func NewRosterService(index *roster.Index, matcher identityMatcher, cache suggestionCache, ttl time.Duration, metrics *MetricsService, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RosterService{index: index, matcher: matcher, cache: cache, ttl: ttl, metrics: metrics, logger: logger}
}

// CheckIdentity validates the submitted identity and, when it does not
// validate, returns roster suggestions in roster order.
func (s *RosterService) CheckIdentity(ctx context.Context, firstName, lastName, group string) (*IdentityCheckResult, error) {
	key := fmt.Sprintf("identity:%s:%s:%s", roster.Normalize(group), roster.Normalize(firstName), roster.Normalize(lastName))
	if s.cache != nil {
		var cached IdentityCheckResult
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return &cached, nil
		} else if !appErrors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("identity cache read failed", zap.Error(err))
		}
		s.metrics.RecordCacheOperation(false)
	}

	valid, err := s.matcher.Validate(firstName, lastName, group)
	if err != nil {
		return nil, err
	}
	result := &IdentityCheckResult{Valid: valid}
	if !valid {
		suggestions, err := s.matcher.Suggest(firstName, lastName, group)
		if err != nil {
			return nil, err
		}
		result.Suggestions = suggestions
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, result, s.ttl); err != nil {
			s.logger.Warn("identity cache write failed", zap.Error(err))
		}
	}
	return result, nil
}

// EntriesInGroup enumerates a group in roster order.
func (s *RosterService) EntriesInGroup(group string) ([]models.RosterEntry, error) {
	if group == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "group is required")
	}
	entries := s.index.EntriesInGroup(group)
	if entries == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown group")
	}
	return entries, nil
}

// Groups lists known group codes.
func (s *RosterService) Groups() []string {
	return s.index.Groups()
}
