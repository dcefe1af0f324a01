package model

import "time"

// -----------------------------------------------------------------------------
// Scanner output
// -----------------------------------------------------------------------------

// ScanRow is one ranked row of a scanner result snapshot. Row sets are
// replaced wholesale on every scanner tick; rows are never merged.
type ScanRow struct {
	Symbol  string // Gateway symbol (e.g. "AAPL")
	Rank    int    // 1-based rank within the scanner result
	Scanner string // Scanner code that produced this row
	ConID   int64  // Gateway contract ID

	// Market fields, filled in from tick messages keyed to this row's
	// request id. Nil until the gateway reports them.
	LastPrice   *float64
	ClosePrice  *float64
	ChangePct   *float64
	Volume      *int64
	AvgVolume   *int64
	RVol        *float64
	FloatShares *float64
}

// SubscriptionStatus tracks the lifecycle of a scanner subscription.
type SubscriptionStatus int

const (
	SubPending SubscriptionStatus = iota // Queued or sent, no data yet
	SubActive                            // At least one result snapshot received
	SubError                             // Connection lost or gateway rejected it
)

func (s SubscriptionStatus) String() string {
	switch s {
	case SubPending:
		return "pending"
	case SubActive:
		return "active"
	case SubError:
		return "error"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Combination engine
// -----------------------------------------------------------------------------

// Candidate is a symbol merged across scanners within one poll window.
type Candidate struct {
	Symbol    string
	FirstSeen time.Time
	LastSeen  time.Time
	Scanners  []string // Sorted union of contributing scanner codes

	LastPrice   *float64
	ChangePct   *float64
	RVol        *float64
	FloatShares *float64
}

// Hits is the number of scanners currently reporting this symbol.
func (c Candidate) Hits() int { return len(c.Scanners) }

// SeenEntry records a symbol already alerted this session.
type SeenEntry struct {
	Symbol       string
	FirstAlerted time.Time
}

// -----------------------------------------------------------------------------
// Catalyst pipeline
// -----------------------------------------------------------------------------

// CatalystPhase is the per-symbol confirmation phase.
type CatalystPhase int

const (
	PhaseDiscovered CatalystPhase = iota
	PhasePendingNewsCheck
	PhaseConfirmed
	PhaseRejected
	PhaseAlerted
)

func (p CatalystPhase) String() string {
	switch p {
	case PhaseDiscovered:
		return "discovered"
	case PhasePendingNewsCheck:
		return "pending_news_check"
	case PhaseConfirmed:
		return "confirmed"
	case PhaseRejected:
		return "rejected"
	case PhaseAlerted:
		return "alerted"
	default:
		return "unknown"
	}
}

// Terminal reports whether the phase admits no further transitions.
func (p CatalystPhase) Terminal() bool {
	return p == PhaseRejected || p == PhaseAlerted
}

// RejectReason explains a PhaseRejected outcome.
type RejectReason string

const (
	RejectEnrichmentUnavailable RejectReason = "enrichment_unavailable"
	RejectNoCatalyst            RejectReason = "no_catalyst"
)

// CatalystState is the tagged per-symbol state value held for the session
// lifetime. Headline and Catalyst are set only in Confirmed/Alerted; Reason
// only in Rejected.
type CatalystState struct {
	Phase     CatalystPhase
	Headline  string
	Catalyst  string // Catalyst type label (e.g. "FDA", "earnings")
	Reason    RejectReason
	UpdatedAt time.Time
}

// Alert is a confirmed candidate handed to the alert sink.
type Alert struct {
	Symbol    string
	Headline  string
	Catalyst  string
	Candidate Candidate
	At        time.Time
}

// -----------------------------------------------------------------------------
// History store
// -----------------------------------------------------------------------------

// Sighting is one row of the history relation, upserted by symbol.
// hit_count accumulates across upserts; scanners is a comma-joined sorted set.
type Sighting struct {
	Symbol      string
	FirstSeen   time.Time
	LastSeen    time.Time
	Scanners    string
	HitCount    int
	LastPrice   *float64
	ChangePct   *float64
	RVol        *float64
	FloatShares *float64
	Catalyst    *string
	Name        *string
	Sector      *string
}
