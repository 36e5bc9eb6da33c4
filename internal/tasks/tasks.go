package tasks

import "github.com/frostvault/frostvault/internal/types"

const (
	TypeRouteSweep     = "route:sweep"
	TypeReceiptArchive = "receipt:archive"

	// Sweeps run against in-process custody state and are consumed by the
	// main daemon; receipt archiving is stateless and runs in the
	// standalone worker.
	QueueSweeps   = "sweeps"
	QueueReceipts = "receipts"
)

// AssetKind selects which sweep entry point the worker calls on a route.
type AssetKind string

const (
	AssetERC20  AssetKind = "erc20"
	AssetERC721 AssetKind = "erc721"
	AssetNative AssetKind = "native"
)

// RouteSweepPayload asks the worker to sweep one asset from a deposit
// route into the vault.
type RouteSweepPayload struct {
	RouteAddress string    `json:"route_address"`
	Kind         AssetKind `json:"kind"`
	Token        string    `json:"token,omitempty"`
	Amount       string    `json:"amount,omitempty"`
	TokenID      string    `json:"token_id,omitempty"`
}

// ReceiptArchivePayload asks the worker to archive a withdrawal receipt.
type ReceiptArchivePayload struct {
	Receipt types.WithdrawalReceipt `json:"receipt"`
}
