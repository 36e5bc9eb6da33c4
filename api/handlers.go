package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	gcommon "github.com/ethereum/go-ethereum/common"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"

	"github.com/frostvault/frostvault/common"
	"github.com/frostvault/frostvault/internal/events"
	"github.com/frostvault/frostvault/internal/roles"
	"github.com/frostvault/frostvault/internal/tasks"
	"github.com/frostvault/frostvault/internal/types"
	"github.com/frostvault/frostvault/internal/vault"
	"github.com/frostvault/frostvault/storage"
)

// Withdraw submits a dual-signed withdrawal to the vault.
func (s *Server) Withdraw(c echo.Context) error {
	var apiReq types.WithdrawAPIRequest
	if err := c.Bind(&apiReq); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request payload"})
	}
	req, tsig, ssig, err := apiReq.Parse()
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	ctx := c.Request().Context()
	if err := s.vault.Withdraw(ctx, req, tsig, ssig); err != nil {
		s.logger.WithError(err).Warn("withdrawal rejected")
		switch {
		case errors.Is(err, vault.ErrInvalidSignature):
			return c.JSON(http.StatusForbidden, map[string]string{"error": vault.ErrInvalidSignature.Error()})
		case errors.Is(err, storage.ErrWithdrawalIDUsed):
			return c.JSON(http.StatusConflict, map[string]string{"error": storage.ErrWithdrawalIDUsed.Error()})
		case errors.Is(err, vault.ErrPaused):
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": vault.ErrPaused.Error()})
		default:
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
	}

	record := s.lastWithdrawalEvent()
	receipt := types.WithdrawalReceipt{
		Recipient:    req.Recipient.Hex(),
		Asset:        req.Asset.Hex(),
		Amount:       req.Amount.String(),
		WithdrawalID: req.WithdrawalID.String(),
		Timestamp:    time.Now().UTC(),
	}
	if record != nil {
		receipt.TxID = record.TxID
		receipt.Timestamp = record.Timestamp
		if err := s.redis.PublishEvent(ctx, *record); err != nil {
			s.logger.WithError(err).Error("fail to mirror withdrawal event")
		}
	}
	if payload, err := json.Marshal(tasks.ReceiptArchivePayload{Receipt: receipt}); err == nil {
		if _, err := s.queueClient.EnqueueContext(ctx, asynq.NewTask(tasks.TypeReceiptArchive, payload), asynq.Queue(tasks.QueueReceipts)); err != nil {
			s.logger.WithError(err).Error("fail to enqueue receipt archive task")
		}
	}
	return c.JSON(http.StatusOK, receipt)
}

func (s *Server) lastWithdrawalEvent() *events.Record {
	records := s.recorder.ByKind(events.KindWithdrawalSucceeded)
	if len(records) == 0 {
		return nil
	}
	return &records[len(records)-1]
}

// GetDepositAddress predicts the custody address for a salt before the
// route exists.
func (s *Server) GetDepositAddress(c echo.Context) error {
	salt, err := parseSalt(c.Param("salt"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	address, err := s.factory.GetDeploymentAddress(salt)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if err := s.redis.SetRouteAddress(c.Request().Context(), fmt.Sprintf("%x", salt), address.Hex()); err != nil {
		s.logger.WithError(err).Error("fail to cache route address")
	}
	return c.JSON(http.StatusOK, map[string]string{"address": address.Hex()})
}

// DeployRoute instantiates the deposit route for a salt.
func (s *Server) DeployRoute(c echo.Context) error {
	var body struct {
		Salt string `json:"salt"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request payload"})
	}
	salt, err := parseSalt(body.Salt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	route, err := s.factory.Deploy(c.Request().Context(), s.admin, salt)
	if err != nil {
		if errors.Is(err, storage.ErrSaltUsed) {
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"address": route.Address().Hex()})
}

// EnqueueSweep queues a sweep task for the worker.
func (s *Server) EnqueueSweep(c echo.Context) error {
	var payload tasks.RouteSweepPayload
	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request payload"})
	}
	switch payload.Kind {
	case tasks.AssetERC20, tasks.AssetERC721, tasks.AssetNative:
	default:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown asset kind"})
	}
	if !gcommon.IsHexAddress(payload.RouteAddress) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid route address"})
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	info, err := s.queueClient.EnqueueContext(c.Request().Context(), asynq.NewTask(tasks.TypeRouteSweep, buf), asynq.Queue(tasks.QueueSweeps), asynq.MaxRetry(3))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"task_id": info.ID})
}

type roleChangeRequest struct {
	Contract string `json:"contract"`
	Role     string `json:"role"`
	Account  string `json:"account"`
}

func (s *Server) roleTable(contract string) (*roles.Table, error) {
	switch contract {
	case "vault":
		return s.vault.Roles(), nil
	case "factory":
		return s.factory.Roles(), nil
	default:
		return nil, fmt.Errorf("unknown contract %q", contract)
	}
}

// GrantRole grants a role on the vault or the factory.
func (s *Server) GrantRole(c echo.Context) error {
	return s.changeRole(c, func(t *roles.Table, role roles.Role, account gcommon.Address) error {
		return t.Grant(s.admin, role, account)
	})
}

// RevokeRole revokes a role on the vault or the factory.
func (s *Server) RevokeRole(c echo.Context) error {
	return s.changeRole(c, func(t *roles.Table, role roles.Role, account gcommon.Address) error {
		return t.Revoke(s.admin, role, account)
	})
}

func (s *Server) changeRole(c echo.Context, apply func(*roles.Table, roles.Role, gcommon.Address) error) error {
	var body roleChangeRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request payload"})
	}
	table, err := s.roleTable(body.Contract)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if !gcommon.IsHexAddress(body.Account) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid account address"})
	}
	if err := apply(table, roles.Role(body.Role), gcommon.HexToAddress(body.Account)); err != nil {
		if errors.Is(err, roles.ErrImproperRole) {
			return c.JSON(http.StatusForbidden, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// ResetWithdrawalID clears a consumed withdrawal id through the vault's
// audit-logged admin path.
func (s *Server) ResetWithdrawalID(c echo.Context) error {
	var body struct {
		WithdrawalID string `json:"withdrawal_id"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request payload"})
	}
	id, ok := new(big.Int).SetString(body.WithdrawalID, 10)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid withdrawal id"})
	}
	if err := s.vault.ResetWithdrawalID(c.Request().Context(), s.admin, id); err != nil {
		if errors.Is(err, roles.ErrImproperRole) {
			return c.JSON(http.StatusForbidden, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// GetEvents returns emitted records, optionally filtered by kind.
func (s *Server) GetEvents(c echo.Context) error {
	kind := c.QueryParam("kind")
	if kind == "" {
		return c.JSON(http.StatusOK, s.recorder.Records())
	}
	records := s.recorder.ByKind(events.Kind(kind))
	if records == nil {
		records = []events.Record{}
	}
	return c.JSON(http.StatusOK, records)
}

// Pause gates withdrawals during an incident.
func (s *Server) Pause(c echo.Context) error {
	if err := s.vault.Pause(s.admin); err != nil {
		return c.JSON(http.StatusForbidden, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "paused"})
}

func (s *Server) Unpause(c echo.Context) error {
	if err := s.vault.Unpause(s.admin); err != nil {
		return c.JSON(http.StatusForbidden, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "running"})
}

func parseSalt(raw string) ([32]byte, error) {
	var salt [32]byte
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return salt, fmt.Errorf("missing salt")
	}
	base := 10
	if strings.HasPrefix(raw, "0x") {
		raw = strings.TrimPrefix(raw, "0x")
		base = 16
	}
	v, ok := new(big.Int).SetString(raw, base)
	if !ok || v.Sign() < 0 {
		return salt, fmt.Errorf("invalid salt")
	}
	copy(salt[:], common.BigToBytes32(v))
	return salt, nil
}
