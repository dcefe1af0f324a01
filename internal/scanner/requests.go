package scanner

import (
	"sort"
	"strconv"

	"momentumwatch/internal/model"
	"momentumwatch/internal/protocol"
)

// SubscriptionParams configure one scanner subscription.
type SubscriptionParams struct {
	NumberOfRows int
	MinPrice     *float64
	MaxPrice     *float64
	AboveVolume  int64             // 0 means the default share-volume floor
	Filters      map[string]string // Extra tag-value filters, validated against knownFilters
}

const (
	defaultRows        = 50
	defaultAboveVolume = 100_000
)

func (p *SubscriptionParams) applyDefaults() {
	if p.NumberOfRows <= 0 {
		p.NumberOfRows = defaultRows
	}
	if p.AboveVolume <= 0 {
		p.AboveVolume = defaultAboveVolume
	}
}

// validate rejects unknown filter tags before anything hits the wire.
func (p SubscriptionParams) validate() error {
	for tag := range p.Filters {
		if err := ValidateFilter(tag); err != nil {
			return err
		}
	}
	return nil
}

// encodeScannerSubscription builds the reqScannerSubscription fields
// (message version 4): fixed header, the positional legacy filter slots left
// empty, then the tag-value filter list and an empty subscription options
// list.
func encodeScannerSubscription(reqID int, code string, p SubscriptionParams) []string {
	fields := []string{
		protocol.OutReqScannerSub,
		"4", // message version
		strconv.Itoa(reqID),
		strconv.Itoa(p.NumberOfRows),
		"STK",          // instrument
		"STK.US.MAJOR", // locationCode
		code,
	}

	// abovePrice .. stockTypeFilter: 17 positional slots, unused in favor of
	// the tag-value list below.
	for i := 0; i < 17; i++ {
		fields = append(fields, "")
	}

	var pairs [][2]string
	if p.MinPrice != nil {
		pairs = append(pairs, [2]string{"priceAbove", formatFloat(*p.MinPrice)})
	}
	if p.MaxPrice != nil {
		pairs = append(pairs, [2]string{"priceBelow", formatFloat(*p.MaxPrice)})
	}
	pairs = append(pairs, [2]string{"volumeAbove", strconv.FormatInt(p.AboveVolume, 10)})

	extra := make([]string, 0, len(p.Filters))
	for tag := range p.Filters {
		extra = append(extra, tag)
	}
	sort.Strings(extra)
	for _, tag := range extra {
		pairs = append(pairs, [2]string{tag, p.Filters[tag]})
	}

	fields = append(fields, strconv.Itoa(len(pairs)))
	for _, pair := range pairs {
		fields = append(fields, pair[0], pair[1])
	}

	// scannerSubscriptionOptions: none
	fields = append(fields, "0")
	return fields
}

// genericTicks requests the miscellaneous stats (average volume) and
// shortable (shortable shares) tick generics alongside the default set.
const genericTicks = "165,236"

// encodeMktDataRequest builds a reqMktData (message version 11) for one
// scanner result row, streaming rather than snapshot.
func encodeMktDataRequest(reqID int, row model.ScanRow) []string {
	return []string{
		protocol.OutReqMktData,
		"11", // message version
		strconv.Itoa(reqID),
		strconv.FormatInt(row.ConID, 10),
		row.Symbol,
		"STK",
		"",      // lastTradeDateOrContractMonth
		"",      // strike
		"",      // right
		"",      // multiplier
		"SMART", // exchange
		"",      // primaryExchange
		"USD",
		"", // localSymbol
		"", // tradingClass
		genericTicks,
		"0", // snapshot
		"0", // regulatorySnapshot
		"",  // mktDataOptions
		"",
	}
}

func encodeCancelMktData(reqID int) []string {
	return []string{protocol.OutCancelMktData, "2", strconv.Itoa(reqID)}
}

func encodeCancelScannerSubscription(reqID int) []string {
	return []string{protocol.OutCancelScannerSub, "1", strconv.Itoa(reqID)}
}

func encodeScannerParamsRequest() []string {
	return []string{protocol.OutReqScannerParams, "1"}
}

func encodeMktDataTypeRequest(dataType int) []string {
	return []string{protocol.OutReqMktDataType, "1", strconv.Itoa(dataType)}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
