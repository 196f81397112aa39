package constants

import (
	"strings"
	"unicode/utf8"
)

// Tag limits applied to whatever the tagging backend returns.
const (
	MaxTags      = 8
	MaxTagLength = 40
)

// KnownTags is the suggested tag vocabulary handed to AI backends. Backends may
// return other labels; they are kept after normalization.
var KnownTags = []string{
	"cell-phone",
	"home-office",
	"internet",
	"meals",
	"office-equipment",
	"office-supplies",
	"professional-development",
	"shipping",
	"software",
	"subscription",
	"travel",
	"lodging",
	"fuel",
	"utilities",
	"consulting",
	"hardware",
}

// synonyms map
var tagSynonyms = map[string]string{
	"cell phone":       "cell-phone",
	"mobile plan":      "cell-phone",
	"saas":             "software",
	"software license": "software",
	"uber":             "travel",
	"lyft":             "travel",
	"taxi":             "travel",
	"airline":          "travel",
	"hotel":            "lodging",
	"restaurant":       "meals",
	"food":             "meals",
	"postage":          "shipping",
	"courier":          "shipping",
	"gas":              "fuel",
	"petrol":           "fuel",
}

// CanonicalizeTag trims, lowercases, collapses whitespace to '-' and maps known
// synonyms. It returns false for labels that are empty or too long.
func CanonicalizeTag(input string) (string, bool) {
	normalized := strings.ToLower(strings.Join(strings.Fields(input), " "))
	if normalized == "" {
		return "", false
	}
	if tag, ok := tagSynonyms[normalized]; ok {
		return tag, true
	}
	tag := strings.ReplaceAll(normalized, " ", "-")
	if utf8.RuneCountInString(tag) > MaxTagLength {
		return "", false
	}
	return tag, true
}

// CanonicalizeTags applies CanonicalizeTag, drops duplicates and caps the list.
// The result is never nil.
func CanonicalizeTags(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, raw := range in {
		tag, ok := CanonicalizeTag(raw)
		if !ok {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
		if len(out) == MaxTags {
			break
		}
	}
	return out
}
