package bank

import (
	"encoding/json"
	"fmt"
)

// Kind is the intent tag embedded in a transfer notification.
type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
)

// Message is the decoded notification payload, e.g. {"kind":"deposit"}.
// Extra fields are ignored.
type Message struct {
	Kind Kind `json:"kind"`
}

// ParseMessage decodes a notification payload. Anything that is not a JSON
// object with a non-empty string kind is malformed. A well-formed payload
// with a kind this ledger does not handle is not an error here.
func ParseMessage(raw string) (Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if fields == nil {
		return Message{}, fmt.Errorf("%w: expected an object", ErrMalformedMessage)
	}
	rawKind, ok := fields["kind"]
	if !ok {
		return Message{}, fmt.Errorf("%w: missing kind", ErrMalformedMessage)
	}
	var kind string
	if err := json.Unmarshal(rawKind, &kind); err != nil {
		return Message{}, fmt.Errorf("%w: kind must be a string", ErrMalformedMessage)
	}
	if kind == "" {
		return Message{}, fmt.Errorf("%w: empty kind", ErrMalformedMessage)
	}
	return Message{Kind: Kind(kind)}, nil
}

// EncodeMessage renders the payload a counterparty attaches to a notification.
func EncodeMessage(kind Kind) string {
	out, _ := json.Marshal(Message{Kind: kind})
	return string(out)
}
