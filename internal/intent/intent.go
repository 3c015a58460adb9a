// Package intent scores how likely a comment is to come from a buyer
package intent

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/socialora/outreach/internal/logger"
)

// BuyerThreshold is the score from which a comment counts as buyer intent
const BuyerThreshold = 40

// Result sources
const (
	SourceKeyword = "keyword"
	SourceAI      = "ai"
)

// Result is a buyer-intent assessment
type Result struct {
	Score   int    `json:"score"`
	IsBuyer bool   `json:"isBuyer"`
	Reason  string `json:"reason"`
	Source  string `json:"source"`
}

// Classifier scores a comment, optionally using the caption of its post as context
type Classifier interface {
	Classify(ctx context.Context, comment, caption string) (Result, error)
}

type weightedKeyword struct {
	phrase string
	weight int
}

// defaultKeywords are the deterministic buyer signals, Turkish and English
var defaultKeywords = []weightedKeyword{
	{"fiyat", 40}, {"price", 40}, {"ne kadar", 40}, {"how much", 40}, {"kaç para", 40},
	{"satın al", 40}, {"almak istiyorum", 40}, {"ilgileniyorum", 40}, {"interested", 40},
	{"bilgi", 25}, {"info", 25}, {"detay", 25}, {"details", 25}, {"iletişim", 25}, {"contact", 25},
	{"numara", 25}, {"konum", 25}, {"location", 25}, {"kredi", 25}, {"taksit", 25}, {"dm", 25},
	{"metrekare", 10}, {"m2", 10}, {"kaç oda", 10}, {"hala satılık", 10}, {"still available", 10}, {"müsait", 10},
}

var lowerTR = cases.Lower(language.Turkish)

// KeywordClassifier is the deterministic fallback classifier
type KeywordClassifier struct {
	keywords []weightedKeyword
}

// NewKeywordClassifier creates a classifier over the built-in keyword list
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{keywords: defaultKeywords}
}

// Classify sums the weights of the keywords found in the comment, capped at 100
func (k *KeywordClassifier) Classify(_ context.Context, comment, _ string) (Result, error) {
	text := " " + strings.Join(strings.Fields(lowerTR.String(comment)), " ") + " "
	score := 0
	var hits []string
	for _, kw := range k.keywords {
		if containsPhrase(text, kw.phrase) {
			score += kw.weight
			hits = append(hits, kw.phrase)
		}
	}
	if score > 100 {
		score = 100
	}

	reason := "no buyer signal"
	if len(hits) > 0 {
		reason = "matched: " + strings.Join(hits, ", ")
	}
	return Result{Score: score, IsBuyer: score >= BuyerThreshold, Reason: reason, Source: SourceKeyword}, nil
}

// containsPhrase matches short phrases on word starts so "dm" does not hit "admin"
func containsPhrase(padded, phrase string) bool {
	if len(phrase) > 3 {
		return strings.Contains(padded, phrase)
	}
	return strings.Contains(padded, " "+phrase)
}

// FallbackClassifier tries the primary classifier and falls back on any error
type FallbackClassifier struct {
	Primary  Classifier
	Fallback Classifier
}

// Classify implements Classifier
func (f *FallbackClassifier) Classify(ctx context.Context, comment, caption string) (Result, error) {
	if f.Primary != nil {
		res, err := f.Primary.Classify(ctx, comment, caption)
		if err == nil {
			return res, nil
		}
		logger.WarnWithFields("AI intent scoring failed, using keyword scoring", logger.Fields{"error": err.Error()})
	}
	if f.Fallback == nil {
		return Result{}, fmt.Errorf("no intent classifier configured")
	}
	return f.Fallback.Classify(ctx, comment, caption)
}

// New returns a keyword classifier, or an AI classifier with keyword fallback
// when cfg carries an API key
func New(cfg AIConfig) Classifier {
	keywords := NewKeywordClassifier()
	if cfg.APIKey == "" {
		return keywords
	}
	return &FallbackClassifier{Primary: NewAIClassifier(cfg), Fallback: keywords}
}
