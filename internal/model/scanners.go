package model

import "strings"

// AlertScanner pairs a scanner code with its fixed client id. Each client id
// owns the request id range [ClientID*1000, ClientID*1000+999): the base id
// carries the subscription itself, the rest key per-row market data requests.
type AlertScanner struct {
	Code     string
	ClientID int
}

// AlertScanners are the scanners polled each tick, with their client ids.
var AlertScanners = []AlertScanner{
	{"HOT_BY_VOLUME", 10},
	{"TOP_PERC_GAIN", 11},
	{"MOST_ACTIVE", 12},
	{"HIGH_OPEN_GAP", 13},
	{"TOP_TRADE_COUNT", 14},
	{"HOT_BY_PRICE", 15},
	{"TOP_VOLUME_RATE", 16},
	{"HIGH_VS_52W_HL", 17},
}

// RequestIDSpan is the size of the request id range owned by one client id.
const RequestIDSpan = 1000

// RequestIDBase returns the first request id of a client id's range.
func RequestIDBase(clientID int) int { return clientID * RequestIDSpan }

// scanner command aliases accepted on the command surface.
var scannerAliases = map[string]string{
	"gain":    "TOP_PERC_GAIN",
	"hot":     "HOT_BY_VOLUME",
	"active":  "MOST_ACTIVE",
	"lose":    "TOP_PERC_LOSE",
	"gap":     "HIGH_OPEN_GAP",
	"gapdown": "LOW_OPEN_GAP",
}

// ResolveScanner maps a user-facing alias to a gateway scanner code.
// Unknown names pass through upper-cased.
func ResolveScanner(name string) string {
	if code, ok := scannerAliases[strings.ToLower(name)]; ok {
		return code
	}
	return strings.ToUpper(name)
}

// DefaultPorts are tried in order when no port is configured: paper
// gateway first, then live.
var DefaultPorts = []int{7497, 7500}
