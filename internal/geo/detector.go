package geo

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/socialora/outreach/internal/db/models"
)

// Location is a detected city with an optional town
type Location struct {
	City string `json:"city"`
	Town string `json:"town,omitempty"`
}

// Detector runs location and property detection against a shared Lexicon
type Detector struct {
	lex *Lexicon
}

// NewDetector creates a detector over lex
func NewDetector(lex *Lexicon) *Detector {
	return &Detector{lex: lex}
}

type match struct {
	token string
	place place
}

// matches returns every non-blacklisted lexicon name found in normalized text, left to right
func (d *Detector) matches(normalized string) []match {
	var out []match
	pos := 0
	for pos < len(normalized) {
		loc := d.lex.pattern.FindStringSubmatchIndex(normalized[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[2], pos+loc[3]
		// the trailing boundary may be the leading boundary of the next name
		pos = end
		token := normalized[start:end]
		if _, blocked := d.lex.blacklist[token]; blocked {
			continue
		}
		if p, ok := d.lex.places[token]; ok {
			out = append(out, match{token: token, place: p})
		}
	}
	return out
}

// DetectLocation returns the most specific location mentioned in text, or nil.
// The first locality found wins and ends the scan. Cities and districts are
// only candidates that a later locality overrides. An ambiguous name resolves
// to a parent city that the text also mentions, else to its first parent.
func (d *Detector) DetectLocation(text string) *Location {
	found := d.matches(Normalize(text))
	if len(found) == 0 {
		return nil
	}

	mentioned := make(map[string]struct{})
	for _, m := range found {
		if m.place.kind == kindCity || len(m.place.parents) == 1 {
			mentioned[m.place.parents[0]] = struct{}{}
		}
	}

	var city, fallbackTown string
	for _, m := range found {
		switch m.place.kind {
		case kindTown:
			return &Location{City: resolveParent(m.place.parents, mentioned), Town: m.place.display}
		case kindDistrict:
			parent := resolveParent(m.place.parents, mentioned)
			if city == "" {
				city = parent
			}
			if fallbackTown == "" && parent == city {
				fallbackTown = m.place.display
			}
		case kindCity:
			if city == "" {
				city = m.place.display
			}
		}
	}
	if city == "" {
		return nil
	}
	return &Location{City: city, Town: fallbackTown}
}

func resolveParent(parents []string, mentioned map[string]struct{}) string {
	for _, p := range parents {
		if _, ok := mentioned[p]; ok {
			return p
		}
	}
	return parents[0]
}

// DetectPropertyType returns the first property category whose keywords occur in text, or ""
func (d *Detector) DetectPropertyType(text string) string {
	return firstMatchingSet(d.lex.propertyTypes, Normalize(text))
}

// DetectPropertySubType returns the most specific property sub-type found in text, or ""
func (d *Detector) DetectPropertySubType(text string) string {
	return firstMatchingSet(d.lex.propertySubTypes, Normalize(text))
}

// DetectListingType returns Rent when a rental keyword is present and Sale otherwise.
// Sale is a low-confidence default: most captions do not say "for sale".
func (d *Detector) DetectListingType(text string) models.ListingType {
	normalized := Normalize(text)
	tokens := tokenize(normalized)
	for _, k := range d.lex.rentKeywords {
		if containsKeyword(normalized, tokens, k) {
			return models.ListingRent
		}
	}
	return models.ListingSale
}

func firstMatchingSet(sets []keywordSet, normalized string) string {
	tokens := tokenize(normalized)
	for _, set := range sets {
		for _, k := range set.keywords {
			if containsKeyword(normalized, tokens, k) {
				return set.name
			}
		}
	}
	return ""
}

// minPrefixRunes is the shortest keyword allowed to match the start of a longer
// token, so "villa" finds "villası" while "ev" does not find "evet".
const minPrefixRunes = 4

func containsKeyword(normalized string, tokens []string, keyword string) bool {
	if strings.ContainsFunc(keyword, unicode.IsSpace) {
		return strings.Contains(strings.Join(strings.Fields(normalized), " "), keyword)
	}
	prefixOK := utf8.RuneCountInString(keyword) >= minPrefixRunes
	for _, t := range tokens {
		if t == keyword || (prefixOK && strings.HasPrefix(t, keyword)) {
			return true
		}
	}
	return false
}

func tokenize(normalized string) []string {
	return strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+'
	})
}
