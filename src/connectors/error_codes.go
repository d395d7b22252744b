package connectors

import "fmt"

const (
	CodeNotLoggedOn       = 1000
	CodeLocateUnavailable = 1001
	CodeTooLateToCancel   = 1004
)

// BridgeErrorCodes maps bridge reject codes to names. Codes below 1000 mirror the
// FIX OrdRejReason / CxlRejReason values relayed from the venue; 1000 and up are raised
// by the bridge itself.
var BridgeErrorCodes = map[int]string{
	0:    "BROKER_OPTION",            // Broker / exchange option
	1:    "UNKNOWN_SYMBOL",           // Symbol not recognised by the venue
	2:    "EXCHANGE_CLOSED",          // Venue closed for this order type
	3:    "ORDER_EXCEEDS_LIMIT",      // Order exceeds a venue or account limit
	4:    "TOO_LATE_TO_ENTER",        // Order arrived after the session cutoff
	5:    "UNKNOWN_ORDER",            // Referenced order not found
	6:    "DUPLICATE_ORDER",          // Duplicate ClOrdID
	11:   "UNSUPPORTED_ORDER",        // Unsupported order characteristic
	13:   "INCORRECT_QUANTITY",       // Quantity not allowed (lot size, zero)
	15:   "UNKNOWN_ACCOUNT",          // Account not recognised
	99:   "OTHER",                    // Venue gave no specific reason
	1000: "NOT_LOGGED_ON",            // FIX session is not logged on
	1001: "LOCATE_UNAVAILABLE",       // No borrow available for a short sale
	1002: "INVALID_REQUEST",          // Bridge could not parse the request
	1003: "SEND_FAILED",              // Session refused to queue the message
	1004: "TOO_LATE_TO_CANCEL",       // Order already filled or cancelled
	1005: "SHORT_SALE_RESTRICTED",    // SSR in effect, short must be on an uptick
	1006: "BUYING_POWER_EXCEEDED",    // Account lacks buying power
	1007: "ORDER_RATE_LIMIT_REACHED", // Too many messages per second
}

// GetErrorMsg returns a readable name for a bridge code.
// If the code is unknown, returns a generic message including the code.
func GetErrorMsg(code int) string {
	if msg, ok := BridgeErrorCodes[code]; ok {
		return msg
	}
	return fmt.Sprintf("UNKNOWN_ERROR_%d", code)
}

// BridgeError is a non-zero code returned in a bridge response envelope.
type BridgeError struct {
	Code int
	Msg  string
}

func (e *BridgeError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("bridge error %d (%s)", e.Code, GetErrorMsg(e.Code))
	}
	return fmt.Sprintf("bridge error %d (%s): %s", e.Code, GetErrorMsg(e.Code), e.Msg)
}
