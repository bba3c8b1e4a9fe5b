package fix

import (
	"strings"

	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/tag"
	"github.com/shopspring/decimal"
)

// StringOrNA extracts a string field from the message body, substituting
// "N/A" when the field is absent. Handlers must never abort on a missing
// optional field.
func StringOrNA(msg *quickfix.Message, t quickfix.Tag) string {
	v, err := msg.Body.GetString(t)
	if err != nil {
		return "N/A"
	}
	return v
}

// DecimalOrZero extracts a decimal field, substituting zero when the
// field is absent or unparsable.
func DecimalOrZero(msg *quickfix.Message, t quickfix.Tag) decimal.Decimal {
	v, err := msg.Body.GetString(t)
	if err != nil {
		return decimal.Zero
	}
	d, perr := decimal.NewFromString(v)
	if perr != nil {
		return decimal.Zero
	}
	return d
}

// MsgType returns the message type tag (35), or "" when the header is
// malformed.
func MsgType(msg *quickfix.Message) string {
	v, err := msg.Header.GetString(tag.MsgType)
	if err != nil {
		return ""
	}
	return v
}

// Text extracts the free-form Text field (58), if present.
func Text(msg *quickfix.Message) string {
	v, err := msg.Body.GetString(tag.Text)
	if err != nil {
		return ""
	}
	return v
}

// Raw renders the wire form with SOH delimiters replaced, for logging.
func Raw(msg *quickfix.Message) string {
	return strings.ReplaceAll(msg.String(), "\x01", "|")
}

// DescribeSide renders the Side field (54) value.
func DescribeSide(side enum.Side) string {
	switch side {
	case enum.Side_BUY:
		return "BUY"
	case enum.Side_SELL:
		return "SELL"
	default:
		return "OTHER(" + string(side) + ")"
	}
}

// DescribeOrdType renders the OrdType field (40) value.
func DescribeOrdType(ordType enum.OrdType) string {
	switch ordType {
	case enum.OrdType_LIMIT:
		return "LIMIT"
	case enum.OrdType_MARKET:
		return "MARKET"
	default:
		return "OTHER(" + string(ordType) + ")"
	}
}

// DescribeExecType renders the ExecType field (150) value.
func DescribeExecType(execType enum.ExecType) string {
	switch execType {
	case enum.ExecType_NEW:
		return "NEW"
	case enum.ExecType_PARTIAL_FILL:
		return "PARTIAL_FILL"
	case enum.ExecType_FILL:
		return "FILL"
	case enum.ExecType_CANCELED:
		return "CANCELED"
	case enum.ExecType_REPLACED:
		return "REPLACED"
	case enum.ExecType_PENDING_CANCEL:
		return "PENDING_CANCEL"
	case enum.ExecType_REJECTED:
		return "REJECTED"
	case enum.ExecType_PENDING_NEW:
		return "PENDING_NEW"
	case enum.ExecType_PENDING_REPLACE:
		return "PENDING_REPLACE"
	case enum.ExecType_TRADE:
		return "TRADE"
	case enum.ExecType_ORDER_STATUS:
		return "ORDER_STATUS"
	default:
		return "UNKNOWN(" + string(execType) + ")"
	}
}

// DescribeOrdStatus renders the OrdStatus field (39) value.
func DescribeOrdStatus(ordStatus enum.OrdStatus) string {
	switch ordStatus {
	case enum.OrdStatus_NEW:
		return "NEW"
	case enum.OrdStatus_PARTIALLY_FILLED:
		return "PARTIALLY_FILLED"
	case enum.OrdStatus_FILLED:
		return "FILLED"
	case enum.OrdStatus_CANCELED:
		return "CANCELED"
	case enum.OrdStatus_REPLACED:
		return "REPLACED"
	case enum.OrdStatus_PENDING_CANCEL:
		return "PENDING_CANCEL"
	case enum.OrdStatus_REJECTED:
		return "REJECTED"
	case enum.OrdStatus_PENDING_NEW:
		return "PENDING_NEW"
	case enum.OrdStatus_PENDING_REPLACE:
		return "PENDING_REPLACE"
	default:
		return "UNKNOWN(" + string(ordStatus) + ")"
	}
}

// DescribeCxlRejReason renders the CxlRejReason field (102) value.
func DescribeCxlRejReason(reason string) string {
	switch reason {
	case "0":
		return "TOO_LATE_TO_CANCEL"
	case "1":
		return "UNKNOWN_ORDER"
	case "2":
		return "BROKER_OPTION"
	case "3":
		return "ALREADY_PENDING"
	default:
		return "OTHER(" + reason + ")"
	}
}

// DescribeCxlRejResponseTo renders the CxlRejResponseTo field (434) value.
func DescribeCxlRejResponseTo(responseTo string) string {
	switch responseTo {
	case "1":
		return "ORDER_CANCEL_REQUEST"
	case "2":
		return "ORDER_CANCEL_REPLACE_REQUEST"
	default:
		return "UNKNOWN(" + responseTo + ")"
	}
}
