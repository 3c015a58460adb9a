// Package geo detects Turkish locations and real-estate property attributes in free text
package geo

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed lexicon.json
var embeddedLexicon []byte

type placeKind int

const (
	kindCity placeKind = iota
	kindDistrict
	kindTown
)

type place struct {
	kind placeKind
	// display is the canonical, capitalised name
	display string
	// parents holds the canonical parent cities in preference order, for a city it holds itself
	parents []string
}

type keywordSet struct {
	name     string
	keywords []string
}

// Lexicon is the immutable reference data used by a Detector.
// Build it once with NewLexicon and share it by reference.
type Lexicon struct {
	places    map[string]place
	blacklist map[string]struct{}
	pattern   *regexp.Regexp

	propertyTypes    []keywordSet
	propertySubTypes []keywordSet
	rentKeywords     []string
}

type rawPlace struct {
	Name    string   `json:"name"`
	Aliases []string `json:"aliases,omitempty"`
	Cities  []string `json:"cities,omitempty"`
}

type rawKeywordSet struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
}

type rawLexicon struct {
	Cities           []rawPlace      `json:"cities"`
	Districts        []rawPlace      `json:"districts"`
	Towns            []rawPlace      `json:"towns"`
	Blacklist        []string        `json:"blacklist"`
	PropertyTypes    []rawKeywordSet `json:"propertyTypes"`
	PropertySubTypes []rawKeywordSet `json:"propertySubTypes"`
	RentKeywords     []string        `json:"rentKeywords"`
}

var (
	lowerTR = cases.Lower(language.Turkish)
	upperTR = cases.Upper(language.Turkish)
)

// Normalize folds text to lower case using Turkish casing rules (I→ı, İ→i)
func Normalize(text string) string {
	return lowerTR.String(text)
}

// capitalize upper-cases the first letter of every word with Turkish rules
func capitalize(s string) string {
	words := strings.Fields(Normalize(s))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = upperTR.String(string(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// NewLexicon builds a lexicon from the embedded reference data
func NewLexicon() (*Lexicon, error) {
	return ParseLexicon(embeddedLexicon)
}

// MustLexicon is like NewLexicon but panics on error. Use it at process start.
func MustLexicon() *Lexicon {
	lex, err := NewLexicon()
	if err != nil {
		panic(err)
	}
	return lex
}

// ParseLexicon builds a lexicon from its JSON representation
func ParseLexicon(data []byte) (*Lexicon, error) {
	var raw rawLexicon
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse lexicon: %w", err)
	}

	lex := &Lexicon{
		places:    make(map[string]place),
		blacklist: make(map[string]struct{}, len(raw.Blacklist)),
	}

	cities := make(map[string]struct{}, len(raw.Cities))
	for _, c := range raw.Cities {
		display := capitalize(c.Name)
		cities[display] = struct{}{}
		for _, name := range append([]string{c.Name}, c.Aliases...) {
			if err := lex.add(name, place{kind: kindCity, display: display, parents: []string{display}}); err != nil {
				return nil, err
			}
		}
	}

	tiers := []struct {
		kind placeKind
		list []rawPlace
	}{
		{kindDistrict, raw.Districts},
		{kindTown, raw.Towns},
	}
	for _, tier := range tiers {
		kind := tier.kind
		for _, p := range tier.list {
			if len(p.Cities) == 0 {
				return nil, fmt.Errorf("lexicon entry %q has no parent city", p.Name)
			}
			parents := make([]string, 0, len(p.Cities))
			for _, c := range p.Cities {
				parent := capitalize(c)
				if _, ok := cities[parent]; !ok {
					return nil, fmt.Errorf("lexicon entry %q references unknown city %q", p.Name, c)
				}
				parents = append(parents, parent)
			}
			if err := lex.add(p.Name, place{kind: kind, display: capitalize(p.Name), parents: parents}); err != nil {
				return nil, err
			}
		}
	}

	for _, b := range raw.Blacklist {
		lex.blacklist[Normalize(b)] = struct{}{}
	}

	pattern, err := buildPattern(lex.places)
	if err != nil {
		return nil, err
	}
	lex.pattern = pattern

	lex.propertyTypes = normalizeSets(raw.PropertyTypes)
	lex.propertySubTypes = normalizeSets(raw.PropertySubTypes)
	for _, k := range raw.RentKeywords {
		lex.rentKeywords = append(lex.rentKeywords, Normalize(k))
	}
	return lex, nil
}

func (l *Lexicon) add(name string, p place) error {
	key := Normalize(strings.TrimSpace(name))
	if key == "" {
		return fmt.Errorf("lexicon contains an empty name")
	}
	if existing, ok := l.places[key]; ok && (existing.display != p.display || existing.kind != p.kind) {
		return fmt.Errorf("lexicon name %q is defined twice", name)
	}
	l.places[key] = p
	return nil
}

// buildPattern compiles one alternation of every known name, longest first so
// that a longer name wins over a shorter one starting at the same position.
// Go's \b only understands ASCII letters, so boundaries are spelled out.
func buildPattern(places map[string]place) (*regexp.Regexp, error) {
	names := make([]string, 0, len(places))
	for name := range places {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(names[i]), utf8.RuneCountInString(names[j])
		if li != lj {
			return li > lj
		}
		return names[i] < names[j]
	})
	alts := make([]string, len(names))
	for i, n := range names {
		alts[i] = regexp.QuoteMeta(n)
	}
	return regexp.Compile(`(?:^|[\s\p{P}\p{S}])(` + strings.Join(alts, "|") + `)(?:$|[\s\p{P}\p{S}])`)
}

func normalizeSets(raw []rawKeywordSet) []keywordSet {
	out := make([]keywordSet, 0, len(raw))
	for _, s := range raw {
		set := keywordSet{name: s.Name}
		for _, k := range s.Keywords {
			set.keywords = append(set.keywords, Normalize(k))
		}
		out = append(out, set)
	}
	return out
}

// Size returns the number of distinct names the lexicon recognises
func (l *Lexicon) Size() int {
	return len(l.places)
}
