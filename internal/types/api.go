package types

import (
	"fmt"
	"math/big"
	"strings"

	gcommon "github.com/ethereum/go-ethereum/common"

	"github.com/frostvault/frostvault/internal/schnorr"
)

// WithdrawAPIRequest is the wire form of a withdrawal submission.
type WithdrawAPIRequest struct {
	Recipient          string             `json:"recipient"`
	Asset              string             `json:"asset"`
	Amount             string             `json:"amount"`
	WithdrawalID       string             `json:"withdrawal_id"`
	ThresholdSignature ThresholdSignature `json:"threshold_signature"`
	ShieldSignature    string             `json:"shield_signature"`
}

// ThresholdSignature is the wire form of a threshold signature: two hex
// scalars, plus the nonce address under the tagged convention.
type ThresholdSignature struct {
	E            string `json:"e"`
	S            string `json:"s"`
	NonceAddress string `json:"nonce_address,omitempty"`
}

// Parse validates and decodes the request into its domain form.
func (r WithdrawAPIRequest) Parse() (WithdrawalRequest, schnorr.Signature, []byte, error) {
	var req WithdrawalRequest
	if !gcommon.IsHexAddress(r.Recipient) {
		return req, schnorr.Signature{}, nil, fmt.Errorf("invalid recipient address")
	}
	if !gcommon.IsHexAddress(r.Asset) {
		return req, schnorr.Signature{}, nil, fmt.Errorf("invalid asset address")
	}
	amount, ok := new(big.Int).SetString(r.Amount, 10)
	if !ok {
		return req, schnorr.Signature{}, nil, fmt.Errorf("invalid amount")
	}
	id, ok := new(big.Int).SetString(r.WithdrawalID, 10)
	if !ok {
		return req, schnorr.Signature{}, nil, fmt.Errorf("invalid withdrawal id")
	}
	req = WithdrawalRequest{
		Recipient:    gcommon.HexToAddress(r.Recipient),
		Asset:        gcommon.HexToAddress(r.Asset),
		Amount:       amount,
		WithdrawalID: id,
	}

	e, ok := new(big.Int).SetString(strings.TrimPrefix(r.ThresholdSignature.E, "0x"), 16)
	if !ok {
		return req, schnorr.Signature{}, nil, fmt.Errorf("invalid threshold signature scalar e")
	}
	s, ok := new(big.Int).SetString(strings.TrimPrefix(r.ThresholdSignature.S, "0x"), 16)
	if !ok {
		return req, schnorr.Signature{}, nil, fmt.Errorf("invalid threshold signature scalar s")
	}
	tsig := schnorr.Signature{E: e, S: s}
	if r.ThresholdSignature.NonceAddress != "" {
		if !gcommon.IsHexAddress(r.ThresholdSignature.NonceAddress) {
			return req, schnorr.Signature{}, nil, fmt.Errorf("invalid nonce address")
		}
		tsig.NonceAddress = gcommon.HexToAddress(r.ThresholdSignature.NonceAddress)
	}

	shieldSig := gcommon.FromHex(r.ShieldSignature)
	if len(shieldSig) == 0 {
		return req, schnorr.Signature{}, nil, fmt.Errorf("invalid shield signature")
	}
	return req, tsig, shieldSig, nil
}
