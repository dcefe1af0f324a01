package catalyst

import (
	"strings"
	"time"
)

// Headline is one news item for a symbol.
type Headline struct {
	Title       string
	PublishedAt time.Time
}

// Classifier decides whether a set of headlines contains a catalyst.
type Classifier interface {
	// Classify returns the catalyst label and the headline that carried it.
	Classify(headlines []Headline) (label, headline string, ok bool)
}

// catalystKeywords mark headlines that explain a small-cap momentum move.
var catalystKeywords = []string{
	"fda",
	"approval",
	"drug",
	"trial",
	"earnings",
	"revenue",
	"beat",
	"miss",
	"contract",
	"deal",
	"acquisition",
	"merger",
	"offering",
	"patent",
	"partnership",
	"upgrade",
	"price target",
	"dividend",
	"buyback",
	"split",
	"ceo",
	"appointed",
	"resign",
}

// KeywordClassifier matches headlines against the catalyst keyword list,
// case-insensitively, returning the first hit.
type KeywordClassifier struct {
	keywords []string
}

// NewKeywordClassifier uses the default keyword list when none is given.
func NewKeywordClassifier(keywords ...string) *KeywordClassifier {
	if len(keywords) == 0 {
		keywords = catalystKeywords
	}
	return &KeywordClassifier{keywords: keywords}
}

func (c *KeywordClassifier) Classify(headlines []Headline) (string, string, bool) {
	for _, h := range headlines {
		title := strings.ToLower(h.Title)
		for _, kw := range c.keywords {
			if strings.Contains(title, kw) {
				return kw, h.Title, true
			}
		}
	}
	return "", "", false
}
