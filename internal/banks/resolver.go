// Package banks maps free-text bank names to canonical numeric branch
// codes. Pure functions, no state, no I/O.
package banks

import (
	"regexp"
	"strings"
)

// Resolution is the result of a branch code lookup. When Matched is false
// the Code is empty and the caller must treat the job as failed rather
// than submit a non-numeric value to the portal's numeric-only field.
type Resolution struct {
	Code     string `json:"code"`
	Matched  bool   `json:"matched"`
	Strategy string `json:"strategy"`
}

// Match strategies, in the order they are attempted.
const (
	StrategyExact     = "exact"
	StrategyNumeric   = "numeric"
	StrategySubstring = "substring"
	StrategyStripped  = "stripped"
	StrategyFuzzy     = "fuzzy"
)

var branchCodePattern = regexp.MustCompile(`^\d{5,6}$`)

// suffixTokens are legal-form and filler words stripped before the second
// lookup round. Longer phrases first so "of south africa" goes before "sa".
var suffixTokens = []string{
	"of south africa",
	"south africa",
	"limited",
	"ltd",
	"(pty)",
	"pty",
	"group",
	"bank",
	"sa",
}

// Resolve maps a bank name or branch code to a canonical numeric branch
// code. Strategies are tried in order, first match wins:
//
//  1. exact case-insensitive alias lookup
//  2. 5-6 decimal digits pass through unchanged
//  3. substring containment against every alias, either direction
//  4. strip suffix tokens and retry 1 and 3
//  5. edit distance against the canonical name list
//
// Resolve never invents a value: an unrecognized input returns
// Matched=false with an empty code.
func Resolve(nameOrCode string) Resolution {
	input := normalize(nameOrCode)
	if input == "" {
		return Resolution{}
	}

	if code, ok := aliasIndex[input]; ok {
		return Resolution{Code: code, Matched: true, Strategy: StrategyExact}
	}

	if branchCodePattern.MatchString(input) {
		return Resolution{Code: input, Matched: true, Strategy: StrategyNumeric}
	}

	if code, ok := substringMatch(input); ok {
		return Resolution{Code: code, Matched: true, Strategy: StrategySubstring}
	}

	if stripped := stripSuffixes(input); stripped != "" && stripped != input {
		if code, ok := aliasIndex[stripped]; ok {
			return Resolution{Code: code, Matched: true, Strategy: StrategyStripped}
		}
		if code, ok := substringMatch(stripped); ok {
			return Resolution{Code: code, Matched: true, Strategy: StrategyStripped}
		}
	}

	if code, ok := fuzzyMatch(input); ok {
		return Resolution{Code: code, Matched: true, Strategy: StrategyFuzzy}
	}

	return Resolution{}
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

// substringMatch checks containment in both directions against the ordered
// alias list. Inputs shorter than 4 characters are skipped in the
// input-contained-in-alias direction to keep "sa" from matching everything.
func substringMatch(input string) (string, bool) {
	for _, a := range bankAliases {
		if strings.Contains(input, a.Alias) {
			return a.Code, true
		}
		if len(input) >= 4 && strings.Contains(a.Alias, input) {
			return a.Code, true
		}
	}
	return "", false
}

func stripSuffixes(input string) string {
	words := strings.Fields(input)
	joined := " " + strings.Join(words, " ") + " "
	for _, token := range suffixTokens {
		joined = strings.ReplaceAll(joined, " "+token+" ", " ")
	}
	return strings.Join(strings.Fields(joined), " ")
}

// fuzzyMatch finds the closest canonical name within the edit-distance
// threshold for the input's length: 1 edit for names up to 5 characters,
// 2 up to 10, 3 otherwise. Ties on distance resolve to the first-listed
// canonical entry.
func fuzzyMatch(input string) (string, bool) {
	threshold := 3
	switch {
	case len(input) <= 5:
		threshold = 1
	case len(input) <= 10:
		threshold = 2
	}

	bestCode := ""
	bestDistance := threshold + 1
	for _, c := range canonicalBanks {
		d := levenshtein(input, strings.ToLower(c.Name))
		if d < bestDistance {
			bestDistance = d
			bestCode = c.Code
		}
	}

	if bestDistance > threshold {
		return "", false
	}
	return bestCode, true
}

// levenshtein computes edit distance with the two-row DP form.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
