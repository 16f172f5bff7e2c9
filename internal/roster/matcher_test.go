package roster

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MAZGOURA/attestation-api/internal/models"
)

func newTestMatcher() *Matcher {
	return NewMatcher(NewIndex(testEntries()), DefaultSuggestDistance)
}

func TestValidateExactMatch(t *testing.T) {
	m := newTestMatcher()

	ok, err := m.Validate("HANA", "EL HANI", "ID103")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestValidateWrongGroupBlocksCorrectName(t *testing.T) {
	m := newTestMatcher()

	ok, err := m.Validate("HANA", "EL HANI", "GI201")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestValidateEveryRosterEntrySplit(t *testing.T) {
	m := newTestMatcher()

	// Any split of a roster full name into (first, last) must validate.
	for _, entry := range testEntries() {
		tokens := strings.Fields(Normalize(entry.FullName))
		for i := 1; i < len(tokens); i++ {
			first := strings.Join(tokens[:i], " ")
			last := strings.Join(tokens[i:], " ")
			ok, err := m.Validate(first, last, entry.GroupCode)
			require.NoError(t, err)
			require.True(t, ok, "split %q / %q of %q", first, last, entry.FullName)
		}
	}
}

func TestValidateTokenContainmentFallback(t *testing.T) {
	entries := append(testEntries(), models.RosterEntry{
		ExternalID: "S-006",
		FullName:   "EL AMRANI MOHAMED AMINE",
		GroupCode:  "ID103",
	})
	m := NewMatcher(NewIndex(entries), DefaultSuggestDistance)

	// Middle name omitted: no exact ordering matches, containment does.
	ok, err := m.Validate("MOHAMED", "EL AMRANI", "ID103")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = m.Validate("AMINE", "EL AMRANI", "ID103")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestValidateNoMatchIsValueNotError(t *testing.T) {
	m := newTestMatcher()

	ok, err := m.Validate("NOBODY", "HERE", "ID103")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestValidateMalformedInput(t *testing.T) {
	m := newTestMatcher()

	_, err := m.Validate("HANA", "EL HANI", "")
	require.Error(t, err)

	_, err = m.Validate("", "  ", "ID103")
	require.Error(t, err)
}

func TestSuggestTypoWithinDistanceTwo(t *testing.T) {
	m := newTestMatcher()

	// One-character typos in either token still surface the entry.
	suggestions, err := m.Suggest("HANNA", "EL HANI", "ID103")
	require.NoError(t, err)
	require.NotEmpty(t, suggestions)
	require.Equal(t, "S-001", suggestions[0].ExternalID)

	suggestions, err = m.Suggest("HANA", "EL HANO", "ID103")
	require.NoError(t, err)
	require.NotEmpty(t, suggestions)
	require.Equal(t, "S-001", suggestions[0].ExternalID)
}

func TestSuggestFiltersByGroup(t *testing.T) {
	m := newTestMatcher()

	suggestions, err := m.Suggest("HANA", "EL HANI", "GI201")
	require.NoError(t, err)
	for _, s := range suggestions {
		require.Equal(t, "GI201", s.GroupCode)
	}
}

func TestSuggestKeepsRosterOrder(t *testing.T) {
	entries := []models.RosterEntry{
		{ExternalID: "S-010", FullName: "ALAMI SARA", GroupCode: "ID103"},
		{ExternalID: "S-011", FullName: "ALAOUI SARA", GroupCode: "ID103"},
		{ExternalID: "S-012", FullName: "ALAMI SARRA", GroupCode: "ID103"},
	}
	m := NewMatcher(NewIndex(entries), DefaultSuggestDistance)

	// "SARA" hits all three; order must be roster order, not distance order.
	suggestions, err := m.Suggest("SARA", "ALAMI", "ID103")
	require.NoError(t, err)
	require.Len(t, suggestions, 3)
	require.Equal(t, "S-010", suggestions[0].ExternalID)
	require.Equal(t, "S-011", suggestions[1].ExternalID)
	require.Equal(t, "S-012", suggestions[2].ExternalID)
}

func TestSuggestNoMatches(t *testing.T) {
	m := newTestMatcher()

	suggestions, err := m.Suggest("XXXXXXXX", "QQQQQQQQ", "ID103")
	require.NoError(t, err)
	require.Empty(t, suggestions)
}
