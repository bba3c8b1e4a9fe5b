package fix

import (
	"testing"

	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/tag"
	"github.com/shopspring/decimal"
)

func TestStringOrNA(t *testing.T) {
	msg := quickfix.NewMessage()
	msg.Body.SetString(tag.Symbol, "AAPL")

	if got := StringOrNA(msg, tag.Symbol); got != "AAPL" {
		t.Errorf("present field = %q, want AAPL", got)
	}
	if got := StringOrNA(msg, tag.ClOrdID); got != "N/A" {
		t.Errorf("absent field = %q, want N/A", got)
	}
}

func TestDecimalOrZero(t *testing.T) {
	msg := quickfix.NewMessage()
	msg.Body.SetString(tag.OrderQty, "150.25")
	msg.Body.SetString(tag.Price, "not-a-number")

	if got := DecimalOrZero(msg, tag.OrderQty); !got.Equal(decimal.RequireFromString("150.25")) {
		t.Errorf("present field = %s, want 150.25", got)
	}
	if got := DecimalOrZero(msg, tag.Price); !got.IsZero() {
		t.Errorf("unparsable field = %s, want 0", got)
	}
	if got := DecimalOrZero(msg, tag.LeavesQty); !got.IsZero() {
		t.Errorf("absent field = %s, want 0", got)
	}
}

func TestMsgType(t *testing.T) {
	msg := quickfix.NewMessage()
	if got := MsgType(msg); got != "" {
		t.Errorf("missing MsgType = %q, want empty", got)
	}
	msg.Header.SetString(tag.MsgType, "8")
	if got := MsgType(msg); got != "8" {
		t.Errorf("MsgType = %q, want 8", got)
	}
}

func TestDescribeSide(t *testing.T) {
	cases := []struct {
		in   enum.Side
		want string
	}{
		{enum.Side_BUY, "BUY"},
		{enum.Side_SELL, "SELL"},
		{enum.Side("8"), "OTHER(8)"},
	}
	for _, c := range cases {
		if got := DescribeSide(c.in); got != c.want {
			t.Errorf("DescribeSide(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestDescribeExecType(t *testing.T) {
	cases := []struct {
		in   enum.ExecType
		want string
	}{
		{enum.ExecType_NEW, "NEW"},
		{enum.ExecType_CANCELED, "CANCELED"},
		{enum.ExecType_REPLACED, "REPLACED"},
		{enum.ExecType_FILL, "FILL"},
		{enum.ExecType("Z"), "UNKNOWN(Z)"},
	}
	for _, c := range cases {
		if got := DescribeExecType(c.in); got != c.want {
			t.Errorf("DescribeExecType(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestDescribeCxlRejReason(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "TOO_LATE_TO_CANCEL"},
		{"1", "UNKNOWN_ORDER"},
		{"2", "BROKER_OPTION"},
		{"3", "ALREADY_PENDING"},
		{"7", "OTHER(7)"},
	}
	for _, c := range cases {
		if got := DescribeCxlRejReason(c.in); got != c.want {
			t.Errorf("DescribeCxlRejReason(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestRawReplacesDelimiters(t *testing.T) {
	msg := quickfix.NewMessage()
	msg.Header.SetString(tag.MsgType, "D")
	raw := Raw(msg)
	if len(raw) == 0 {
		t.Fatal("empty raw rendering")
	}
	for _, ch := range raw {
		if ch == '\x01' {
			t.Fatal("raw rendering still contains SOH")
		}
	}
}
