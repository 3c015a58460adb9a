// Package scoring ranks prospects and extracts contact details from profiles
package scoring

import (
	"math"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Factors are the profile and engagement attributes a lead score is computed from
type Factors struct {
	IsVerified     bool
	IsBusiness     bool
	IsPrivate      bool
	FollowerCount  int
	FollowingCount int
	// EngagementRate is a percentage, 5 means 5%
	EngagementRate float64
	AccountAgeDays int
	// PostsPerWeek is the posting frequency
	PostsPerWeek    float64
	MatchedKeywords int
	Bio             string
}

// CalculateLeadScore returns a deterministic score in [0,100]
func CalculateLeadScore(f Factors) int {
	score := 0.0

	if f.IsVerified {
		score += 10
	}
	if f.IsBusiness {
		score += 10
	}
	if f.IsPrivate {
		score -= 5
	}

	if f.FollowingCount > 0 {
		ratio := float64(f.FollowerCount) / float64(f.FollowingCount)
		score += math.Min(ratio/10*15, 15)
	} else if f.FollowerCount > 0 {
		score += 15
	}

	score += math.Min(math.Max(f.EngagementRate, 0)/5*15, 15)
	score += math.Min(math.Max(float64(f.AccountAgeDays), 0)/365*10, 10)
	score += postFrequencyScore(f.PostsPerWeek)
	score += math.Min(float64(f.MatchedKeywords*5), 20)

	if len([]rune(f.Bio)) > 50 {
		score += 10
	}

	switch {
	case f.FollowerCount >= 1000 && f.FollowerCount <= 100000:
		score += 10
	case f.FollowerCount > 100000:
		score += 5
	}

	return int(math.Max(0, math.Min(100, math.Round(score))))
}

// postFrequencyScore gives full marks for 2 to 7 posts a week and decays by the
// distance from the midpoint 4.5 outside of that range
func postFrequencyScore(perWeek float64) float64 {
	if perWeek >= 2 && perWeek <= 7 {
		return 10
	}
	return math.Max(0, 10-math.Abs(perWeek-4.5)*2)
}

// RecencyScore scores a match by the age of the comment that produced it
func RecencyScore(age time.Duration) int {
	const day = 24 * time.Hour
	switch {
	case age < day:
		return 100
	case age <= 7*day:
		return 90
	case age <= 14*day:
		return 70
	case age <= 30*day:
		return 50
	default:
		return 30
	}
}

// Enrichment holds contact details found in a profile, empty fields were not found
type Enrichment struct {
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Website      string `json:"website,omitempty"`
	LocationHint string `json:"location_hint,omitempty"`
}

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s\-().]{8,}\d`)
	urlPattern   = regexp.MustCompile(`(?i)\bhttps?://[^\s]+|\bwww\.[^\s]+`)

	lowerTR = cases.Lower(language.Turkish)
)

// hintCities is the short list of provinces looked for in a bio
var hintCities = []string{
	"İstanbul", "Ankara", "İzmir", "Antalya", "Bursa", "Muğla",
	"Aydın", "Mersin", "Adana", "Konya", "Kocaeli", "Eskişehir", "Trabzon",
}

// EnrichLeadData extracts the first email, phone, website and city hint from a
// profile. Partial results are normal.
func EnrichLeadData(bio, externalURL string) Enrichment {
	var e Enrichment
	e.Email = emailPattern.FindString(bio)
	if phone := phonePattern.FindString(bio); phone != "" {
		e.Phone = strings.TrimSpace(phone)
	}

	e.Website = strings.TrimSpace(externalURL)
	if e.Website == "" {
		e.Website = strings.TrimRight(urlPattern.FindString(bio), ".,;)")
	}

	lowered := lowerTR.String(bio)
	for _, city := range hintCities {
		if strings.Contains(lowered, lowerTR.String(city)) {
			e.LocationHint = city
			break
		}
	}
	return e
}
