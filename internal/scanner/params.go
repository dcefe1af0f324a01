package scanner

import (
	"encoding/xml"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownParameter reports a filter tag not accepted by the gateway.
// Rejected client-side so a typo never reaches the wire.
var ErrUnknownParameter = errors.New("scanner: unknown filter parameter")

// ErrUnknownScanner reports a scan code absent from the parameter schema.
var ErrUnknownScanner = errors.New("scanner: unknown scan code")

// ScanType is one scanner definition from the gateway's parameter document.
type ScanType struct {
	Code        string `xml:"scanCode"`
	DisplayName string `xml:"displayName"`
	Vendor      string `xml:"vendor"`
	Instruments string `xml:"instruments"`
}

// ParamSchema is the parsed scanner parameter document. Immutable once
// built; fetched once per session.
type ParamSchema struct {
	scans []ScanType
	codes map[string]ScanType
}

type paramDocument struct {
	XMLName xml.Name   `xml:"ScanParameterResponse"`
	Scans   []ScanType `xml:"ScanTypeList>ScanType"`
}

// ParseParams parses the gateway's scanner parameter XML.
func ParseParams(doc string) (*ParamSchema, error) {
	var parsed paramDocument
	if err := xml.Unmarshal([]byte(doc), &parsed); err != nil {
		return nil, fmt.Errorf("parse scanner parameters: %w", err)
	}

	s := &ParamSchema{
		scans: parsed.Scans,
		codes: make(map[string]ScanType, len(parsed.Scans)),
	}
	for _, st := range parsed.Scans {
		s.codes[st.Code] = st
	}
	return s, nil
}

// Len returns the number of scanner definitions.
func (s *ParamSchema) Len() int { return len(s.scans) }

// Lookup returns the definition for a scan code.
func (s *ParamSchema) Lookup(code string) (ScanType, bool) {
	st, ok := s.codes[code]
	return st, ok
}

// Category groups scanner definitions for the list surface.
type Category struct {
	Instrument string
	Name       string
	Scans      []ScanType
}

// Categories groups the schema by instrument and category, sorted by
// instrument then category name.
func (s *ParamSchema) Categories() []Category {
	grouped := make(map[string]map[string][]ScanType)
	for _, st := range s.scans {
		inst, cat := categorize(st)
		if grouped[inst] == nil {
			grouped[inst] = make(map[string][]ScanType)
		}
		grouped[inst][cat] = append(grouped[inst][cat], st)
	}

	var out []Category
	for inst, cats := range grouped {
		for name, scans := range cats {
			sort.Slice(scans, func(i, j int) bool {
				return scans[i].DisplayName < scans[j].DisplayName
			})
			out = append(out, Category{Instrument: inst, Name: name, Scans: scans})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Instrument != out[j].Instrument {
			return out[i].Instrument < out[j].Instrument
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// categorize buckets a scanner definition into (instrument, category) for
// display, by vendor first, then instrument list, then name heuristics.
func categorize(st ScanType) (string, string) {
	switch st.Vendor {
	case "ALV":
		return "ETFs", "ETF Scanners"
	case "REUTFUND":
		return "Funds", "Analyst & Ratings"
	case "RCG":
		return "Stocks", "Technicals (Recognia)"
	case "MSOWN":
		return "Stocks", "Ownership"
	case "WSH":
		return "Stocks", "Events"
	case "MOODY", "SP":
		return "Bonds", "Bond Ratings"
	}

	inst := st.Instruments
	hasSTK := strings.Contains(inst, "STK")
	switch {
	case strings.Contains(inst, "BOND") && !hasSTK:
		return "Bonds", "Bond Scanners"
	case strings.Contains(inst, "FUND") && !hasSTK:
		return "Funds", "Fund Scanners"
	case strings.Contains(inst, "NATCOMB"):
		return "Futures & Combos", "Combos"
	case strings.Contains(inst, "SLB") && !hasSTK:
		return "Stocks", "Stock Borrow/Loan"
	}

	name := strings.ToLower(st.DisplayName)
	code := strings.ToLower(st.Code)

	containsAny := func(s string, words ...string) bool {
		for _, w := range words {
			if strings.Contains(s, w) {
				return true
			}
		}
		return false
	}

	switch {
	case containsAny(name, "opt", "imp vol"):
		return "Options", "Options Activity"
	case containsAny(name, "iv", "hv"):
		return "Options", "Volatility Rank"
	case containsAny(code, "gap", "open_perc", "after_hours"):
		return "Stocks", "Gaps & Extended Hours"
	case containsAny(code, "perc_gain", "perc_lose"):
		return "Stocks", "Momentum & Gainers"
	case containsAny(name, "volume", "active", "hot", "trade count", "trade rate"):
		return "Stocks", "Volume & Activity"
	case (strings.Contains(name, "high") || strings.Contains(name, "low")) && strings.Contains(code, "w_hl"):
		return "Stocks", "Highs & Lows"
	case containsAny(name, "halted", "limit up", "not yet traded", "ipo"):
		return "Stocks", "Special"
	case containsAny(name, "social", "sentiment", "tweet"):
		return "Stocks", "Social Sentiment"
	case containsAny(name, "shortable", "fee rate", "utilization"):
		return "Stocks", "Short Interest"
	case strings.Contains(name, "shares outstanding"):
		return "Stocks", "Fundamentals"
	case containsAny(name, "dividend", "yield"):
		return "Stocks", "Dividends"
	case containsAny(name, "ema", "macd", "ppo", "price vs"):
		return "Stocks", "Technical Indicators"
	}
	return "Stocks", "Other"
}

// knownFilters are the filter tags the gateway accepts in a scanner
// subscription's tag-value filter list.
var knownFilters = map[string]bool{
	"priceAbove":               true,
	"priceBelow":               true,
	"volumeAbove":              true,
	"avgVolumeAbove":           true,
	"marketCapAbove1e6":        true,
	"marketCapBelow1e6":        true,
	"changePercAbove":          true,
	"changePercBelow":          true,
	"sharesAvailableManyBelow": true,
}

// ValidateFilter reports whether a filter tag is accepted.
func ValidateFilter(tag string) error {
	if !knownFilters[tag] {
		return fmt.Errorf("%w: %q", ErrUnknownParameter, tag)
	}
	return nil
}
