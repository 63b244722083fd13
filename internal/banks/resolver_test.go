package banks

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveExactAliases(t *testing.T) {
	tests := []struct {
		input string
		code  string
	}{
		{"Standard Bank", "051001"},
		{"standard bank of south africa", "051001"},
		{"SBSA", "051001"},
		{"Capitec", "470010"},
		{"capitec bank", "470010"},
		{"Nedbank", "198765"},
		{"FNB", "250655"},
		{"First National Bank", "250655"},
		{"ABSA", "632005"},
		{"TymeBank", "678910"},
		{"African Bank", "430000"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			res := Resolve(tt.input)
			require.True(t, res.Matched, "expected a match for %q", tt.input)
			assert.Equal(t, tt.code, res.Code)
			assert.Equal(t, StrategyExact, res.Strategy)
		})
	}
}

func TestResolveNumericPassthrough(t *testing.T) {
	for _, code := range []string{"051001", "470010", "12345", "678910"} {
		res := Resolve(code)
		require.True(t, res.Matched)
		assert.Equal(t, code, res.Code)
		assert.Equal(t, StrategyNumeric, res.Strategy)
	}

	// Too short, too long, or non-digit inputs are not codes.
	for _, input := range []string{"1234", "1234567", "05100a"} {
		res := Resolve(input)
		assert.NotEqual(t, StrategyNumeric, res.Strategy, "input %q", input)
	}
}

func TestResolveSubstring(t *testing.T) {
	res := Resolve("Capitec Bank Limited (Head Office)")
	require.True(t, res.Matched)
	assert.Equal(t, "470010", res.Code)
	assert.Equal(t, StrategySubstring, res.Strategy)
}

func TestResolveStrippedSuffixes(t *testing.T) {
	res := Resolve("Sasfin Bank Limited")
	require.True(t, res.Matched)
	assert.Equal(t, "683000", res.Code)
}

func TestResolveTypos(t *testing.T) {
	tests := []struct {
		input string
		code  string
	}{
		{"Capitek", "470010"},
		{"Nedbenk", "198765"},
		{"Capitad", "470010"},
		{"Invested", "580105"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			res := Resolve(tt.input)
			require.True(t, res.Matched, "expected fuzzy match for %q", tt.input)
			assert.Equal(t, tt.code, res.Code)
			assert.Equal(t, StrategyFuzzy, res.Strategy)
		})
	}
}

func TestResolveUnrecognized(t *testing.T) {
	for _, input := range []string{"", "   ", "Bank of Narnia", "xyzzy"} {
		res := Resolve(input)
		assert.False(t, res.Matched, "input %q should not match", input)
		assert.Empty(t, res.Code)
	}
}

// Every matched resolution must carry an all-numeric code; a non-numeric
// "match" is an internal bug callers abort on.
func TestResolveMatchedAlwaysNumeric(t *testing.T) {
	numeric := regexp.MustCompile(`^\d{5,6}$`)

	for _, a := range bankAliases {
		res := Resolve(a.Alias)
		require.True(t, res.Matched)
		assert.Regexp(t, numeric, res.Code, "alias %q", a.Alias)
	}
	for _, c := range canonicalBanks {
		assert.Regexp(t, numeric, c.Code, "canonical %q", c.Name)
	}
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein("capitec", "capitec"))
	assert.Equal(t, 1, levenshtein("capitek", "capitec"))
	assert.Equal(t, 1, levenshtein("nedbenk", "nedbank"))
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
	assert.Equal(t, 7, levenshtein("", "nedbank"))
}
