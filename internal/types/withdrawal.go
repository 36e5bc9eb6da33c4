package types

import (
	"math/big"
	"time"

	gcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/frostvault/frostvault/common"
)

// NativeAsset is the sentinel asset identifier for the chain's native
// currency.
var NativeAsset = gcommon.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

// WithdrawalRequest describes one authorized exit from the vault. The
// withdrawal id is caller-chosen and may authorize at most one withdrawal.
type WithdrawalRequest struct {
	Recipient    gcommon.Address
	Asset        gcommon.Address
	Amount       *big.Int
	WithdrawalID *big.Int
}

// MessageHash is the digest both signatures must cover:
// keccak256(recipient ‖ asset ‖ amount ‖ withdrawalId ‖ domainId).
// The domain id binds the signature to one deployment, so it cannot be
// replayed across forks.
func (r WithdrawalRequest) MessageHash(domainID *big.Int) []byte {
	return crypto.Keccak256(
		r.Recipient.Bytes(),
		r.Asset.Bytes(),
		common.BigToBytes32(r.Amount),
		common.BigToBytes32(r.WithdrawalID),
		common.BigToBytes32(domainID),
	)
}

// WithdrawalReceipt is the archived record of a completed withdrawal.
type WithdrawalReceipt struct {
	Recipient    string    `json:"recipient"`
	Asset        string    `json:"asset"`
	Amount       string    `json:"amount"`
	WithdrawalID string    `json:"withdrawal_id"`
	TxID         string    `json:"tx_id"`
	Timestamp    time.Time `json:"timestamp"`
}
