// Package videx speaks the SMS command protocol of Videx GSM series
// intercoms.
//
// Every command is the device pin followed immediately by a short code:
// sending "1234RLY" to the SIM in the intercom pulses relay 1. Replies come
// back as free-form carrier text and only the balance reply is parsed.
package videx

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// GateCommand is a device operation code.
type GateCommand int

const (
	TriggerRelay GateCommand = iota
	LatchRelay
	UnlatchRelay
	CreditBalance

	// Reserved: understood by the device, not sent by any operation yet.
	SignalStrength
	SoftwareVersion
	CheckDate
)

var commandCodes = map[GateCommand]string{
	TriggerRelay:    "RLY",
	LatchRelay:      "RLA",
	UnlatchRelay:    "RUL",
	CreditBalance:   "BAL?",
	SignalStrength:  "SIG?",
	SoftwareVersion: "VER?",
	CheckDate:       `CLK?"yy/mm/dd,hh:mm"`,
}

var commandNames = map[GateCommand]string{
	TriggerRelay:    "trigger_relay",
	LatchRelay:      "latch_relay",
	UnlatchRelay:    "unlatch_relay",
	CreditBalance:   "credit_balance",
	SignalStrength:  "signal_strength",
	SoftwareVersion: "software_version",
	CheckDate:       "check_date",
}

// Code returns the wire code for the command, or "" for an unknown value.
func (c GateCommand) Code() string {
	return commandCodes[c]
}

func (c GateCommand) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "unknown"
}

// Encode builds the literal SMS body: pin and code with no separator.
func Encode(pin string, cmd GateCommand) string {
	return pin + cmd.Code()
}

// BalanceReply is the credit figure extracted from a carrier reply.
type BalanceReply struct {
	Amount decimal.Decimal
	// Token is the matched text, e.g. "2.98".
	Token string
}

// String renders the amount with the same number of decimal places the
// carrier sent.
func (b BalanceReply) String() string {
	places := 0
	if i := strings.IndexByte(b.Token, '.'); i >= 0 {
		places = len(b.Token) - i - 1
	}
	return b.Amount.StringFixed(int32(places))
}

// Carrier formatting differs between networks, e.g. Vodafone UK sends
// "BAL=Yourbalanceis#2.98.Tocheckanyremainingallowances...". The first
// dotted amount anywhere in the text is the balance. The integer part may
// be missing: ".75" is 0.75.
var balancePattern = regexp.MustCompile(`\d*[.]\d{1,2}`)

// ParseBalance extracts the first dotted decimal amount from text.
func ParseBalance(text string) (BalanceReply, bool) {
	token := balancePattern.FindString(text)
	if token == "" {
		return BalanceReply{}, false
	}
	amount, err := decimal.NewFromString(token)
	if err != nil {
		return BalanceReply{}, false
	}
	return BalanceReply{Amount: amount, Token: token}, true
}
