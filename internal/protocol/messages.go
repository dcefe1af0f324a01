package protocol

// Incoming message types.
const (
	InTickPrice         = "1"
	InTickSize          = "2"
	InErrMsg            = "4"
	InNextValidID       = "9"
	InScannerParameters = "19"
	InScannerData       = "20"
)

// Outgoing message types.
const (
	OutReqMktData       = "1"
	OutCancelMktData    = "2"
	OutReqScannerSub    = "22"
	OutCancelScannerSub = "23"
	OutReqScannerParams = "24"
	OutReqMktDataType   = "59"
	OutStartAPI         = "71"
)

// Tick type ids carried in tickPrice/tickSize messages.
const (
	TickBid             = 1
	TickAsk             = 2
	TickLast            = 4
	TickVolume          = 8
	TickClose           = 9
	TickAvgVolume       = 21
	TickDelayedBid      = 66
	TickDelayedAsk      = 67
	TickDelayedLast     = 68
	TickDelayedClose    = 75
	TickShortableShares = 89
)

// NonFatalErrors are gateway error codes that are informational only and
// must not tear down the session or a subscription.
var NonFatalErrors = map[int]bool{
	162:   true, // scanner cancelled
	354:   true, // no market data subscription
	502:   true, // cannot connect
	2104:  true, // market data farm ok
	2106:  true, // hmds farm ok
	2119:  true, // farm connecting
	2158:  true, // sec-def farm ok
	10167: true, // delayed data in lieu of realtime
	10168: true, // delayed data not enabled
	10197: true, // no data during competing session
}

// RequestID extracts the request id a message is keyed by. Messages that are
// session-level (handshake confirmations, scanner parameter documents) have
// no request id and report ok=false.
func RequestID(m Message) (id int, ok bool) {
	switch m.Type() {
	case InTickPrice, InTickSize, InScannerData:
		return m.Int(2), true
	case InErrMsg:
		// fields: [type, version, reqID, code, text]; reqID -1 means session
		id := m.Int(2)
		return id, id > 0
	default:
		return 0, false
	}
}
