package types

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/encoding/protowire"
)

// PayloadEncodingV1 is the only canonical encoding version understood today.
const PayloadEncodingV1 uint32 = 1

// Field numbers of the canonical encoding. Never renumber; add new fields
// with new numbers and bump the encoding version.
const (
	fieldEncodingVersion protowire.Number = iota + 1
	fieldChainID
	fieldFrom
	fieldTo
	fieldAmount
	fieldDenom
	fieldMemo
	fieldNonce
	fieldData
)

// TransactionPayload describes the transaction a proposal asks the signers to
// authorize.
type TransactionPayload struct {
	EncodingVersion uint32 `json:"encoding_version"`
	ChainID         string `json:"chain_id"`
	From            string `json:"from"`
	To              string `json:"to"`
	Amount          string `json:"amount"`
	Denom           string `json:"denom"`
	Memo            string `json:"memo,omitempty"`
	Nonce           uint64 `json:"nonce,omitempty"`
	Data            []byte `json:"data,omitempty"`
}

// Normalize validates the payload for the given multi-sig address and returns
// it in canonical form: version defaulted, From filled in, amount rewritten
// to its shortest decimal representation.
func (p TransactionPayload) Normalize(multiSigAddress string) (TransactionPayload, error) {
	if p.EncodingVersion == 0 {
		p.EncodingVersion = PayloadEncodingV1
	}
	if p.EncodingVersion != PayloadEncodingV1 {
		return p, ValidationErrorf("unsupported payload encoding version %d", p.EncodingVersion)
	}
	if p.From == "" {
		p.From = multiSigAddress
	}
	if p.From != multiSigAddress {
		return p, ValidationErrorf("payload from %q does not match multi-sig address %q", p.From, multiSigAddress)
	}
	if strings.TrimSpace(p.ChainID) == "" {
		return p, ValidationErrorf("payload chain_id is required")
	}
	if strings.TrimSpace(p.To) == "" {
		return p, ValidationErrorf("payload to is required")
	}
	if strings.TrimSpace(p.Denom) == "" {
		return p, ValidationErrorf("payload denom is required")
	}
	amount, err := decimal.NewFromString(p.Amount)
	if err != nil {
		return p, ValidationErrorf("payload amount %q is not a decimal number", p.Amount)
	}
	if !amount.IsPositive() {
		return p, ValidationErrorf("payload amount must be positive, got %s", amount.String())
	}
	p.Amount = amount.String()
	p.Data = slices.Clone(p.Data)
	return p, nil
}

// CanonicalBytes returns the deterministic byte encoding every signer signs.
// Fields are written in ascending field-number order in protobuf wire format;
// zero values are omitted.
func (p TransactionPayload) CanonicalBytes() ([]byte, error) {
	if p.EncodingVersion != PayloadEncodingV1 {
		return nil, ValidationErrorf("unsupported payload encoding version %d", p.EncodingVersion)
	}
	var b []byte
	b = appendVarint(b, fieldEncodingVersion, uint64(p.EncodingVersion))
	b = appendString(b, fieldChainID, p.ChainID)
	b = appendString(b, fieldFrom, p.From)
	b = appendString(b, fieldTo, p.To)
	b = appendString(b, fieldAmount, p.Amount)
	b = appendString(b, fieldDenom, p.Denom)
	b = appendString(b, fieldMemo, p.Memo)
	b = appendVarint(b, fieldNonce, p.Nonce)
	if len(p.Data) > 0 {
		b = protowire.AppendTag(b, fieldData, protowire.BytesType)
		b = protowire.AppendBytes(b, p.Data)
	}
	return b, nil
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}
