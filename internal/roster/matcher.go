package roster

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/MAZGOURA/attestation-api/internal/models"
	appErrors "github.com/MAZGOURA/attestation-api/pkg/errors"
)

// DefaultSuggestDistance is the edit-distance ceiling for suggestions.
const DefaultSuggestDistance = 2

// Matcher decides whether a self-reported identity belongs to the roster
// and proposes likely entries when it does not.
type Matcher struct {
	index       *Index
	maxDistance int
}

// NewMatcher builds a matcher over the given index.
func NewMatcher(index *Index, maxDistance int) *Matcher {
	if maxDistance <= 0 {
		maxDistance = DefaultSuggestDistance
	}
	return &Matcher{index: index, maxDistance: maxDistance}
}

// Validate reports whether the submitted identity is a roster member of
// the given group. Matching runs in two tiers: exact equality of either
// name ordering, then a token-containment fallback where every submitted
// name token must appear inside the candidate's normalized full name.
// The fallback is intentionally permissive to tolerate middle and
// compound names; it can accept a name that is merely contained in a
// longer roster name.
func (m *Matcher) Validate(firstName, lastName, group string) (bool, error) {
	if err := checkInput(firstName, lastName, group); err != nil {
		return false, err
	}

	if _, ok := m.index.LookupExact(firstName, lastName, group); ok {
		return true, nil
	}

	tokens := nameTokens(firstName, lastName)
	for _, candidate := range m.index.normalizedEntries(group) {
		if containsAll(candidate.normalized(), tokens) {
			return true, nil
		}
	}
	return false, nil
}

// Suggest returns roster entries of the same group that could plausibly
// be the submitted identity: a name token appears as a substring of the
// candidate, or a token sits within edit distance maxDistance of any
// candidate token. Results keep roster order; they are not ranked by
// distance.
func (m *Matcher) Suggest(firstName, lastName, group string) ([]models.RosterEntry, error) {
	if err := checkInput(firstName, lastName, group); err != nil {
		return nil, err
	}

	tokens := nameTokens(firstName, lastName)
	var suggestions []models.RosterEntry
	for _, candidate := range m.index.normalizedEntries(group) {
		norm := candidate.normalized()
		if m.matchesCandidate(norm, tokens) {
			suggestions = append(suggestions, candidate.entry)
		}
	}
	return suggestions, nil
}

func (m *Matcher) matchesCandidate(candidate string, tokens []string) bool {
	candidateTokens := strings.Fields(candidate)
	for _, token := range tokens {
		if strings.Contains(candidate, token) {
			return true
		}
		for _, ct := range candidateTokens {
			if levenshtein.ComputeDistance(token, ct) <= m.maxDistance {
				return true
			}
		}
	}
	return false
}

func checkInput(firstName, lastName, group string) error {
	if strings.TrimSpace(group) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "group is required")
	}
	if strings.TrimSpace(firstName) == "" && strings.TrimSpace(lastName) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "at least one name is required")
	}
	return nil
}

// nameTokens splits both names into normalized tokens. Both the matcher
// tiers and the distance comparison operate on these tokens, so matching
// is case-insensitive end to end.
func nameTokens(firstName, lastName string) []string {
	tokens := strings.Fields(Normalize(firstName))
	tokens = append(tokens, strings.Fields(Normalize(lastName))...)
	return tokens
}

func containsAll(candidate string, tokens []string) bool {
	if len(tokens) == 0 {
		return false
	}
	for _, token := range tokens {
		if !strings.Contains(candidate, token) {
			return false
		}
	}
	return true
}
