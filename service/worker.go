package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/DataDog/datadog-go/statsd"
	gcommon "github.com/ethereum/go-ethereum/common"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/frostvault/frostvault/config"
	"github.com/frostvault/frostvault/contexthelper"
	"github.com/frostvault/frostvault/internal/routing"
	"github.com/frostvault/frostvault/internal/tasks"
	"github.com/frostvault/frostvault/storage"
)

// WorkerService consumes sweep and receipt-archive tasks. Sweeps run under
// the operator identity, which the factory's role table must hold for them
// to succeed.
type WorkerService struct {
	cfg          config.Config
	logger       *logrus.Logger
	factory      *routing.Factory
	operator     gcommon.Address
	sdClient     *statsd.Client
	blockStorage *storage.BlockStorage
}

// NewWorker creates a new worker service.
func NewWorker(cfg config.Config, factory *routing.Factory, operator gcommon.Address, sdClient *statsd.Client, blockStorage *storage.BlockStorage) *WorkerService {
	return &WorkerService{
		cfg:          cfg,
		logger:       logrus.WithField("service", "worker").Logger,
		factory:      factory,
		operator:     operator,
		sdClient:     sdClient,
		blockStorage: blockStorage,
	}
}

// NewReceiptWorker creates a worker that only archives receipts. Receipt
// archiving is stateless, so it can run in a separate process from the
// sweep consumer.
func NewReceiptWorker(cfg config.Config, sdClient *statsd.Client, blockStorage *storage.BlockStorage) *WorkerService {
	return &WorkerService{
		cfg:          cfg,
		logger:       logrus.WithField("service", "worker").Logger,
		sdClient:     sdClient,
		blockStorage: blockStorage,
	}
}

func (s *WorkerService) incCounter(name string, tags []string) {
	if err := s.sdClient.Count(name, 1, tags, 1); err != nil {
		s.logger.Errorf("fail to count metric, err: %v", err)
	}
}

// HandleRouteSweep sweeps one asset from a deposit route into the vault.
func (s *WorkerService) HandleRouteSweep(ctx context.Context, t *asynq.Task) error {
	if err := contexthelper.CheckCancellation(ctx); err != nil {
		return err
	}
	var p tasks.RouteSweepPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	s.logger.WithFields(logrus.Fields{
		"route": p.RouteAddress,
		"kind":  p.Kind,
		"token": p.Token,
	}).Info("sweeping route")

	route, ok := s.factory.Route(gcommon.HexToAddress(p.RouteAddress))
	if !ok {
		s.incCounter("worker.sweep.unknown_route", nil)
		return fmt.Errorf("unknown route %s: %w", p.RouteAddress, asynq.SkipRetry)
	}

	var err error
	switch p.Kind {
	case tasks.AssetERC20:
		amount, ok := new(big.Int).SetString(p.Amount, 10)
		if !ok {
			return fmt.Errorf("invalid amount %q: %w", p.Amount, asynq.SkipRetry)
		}
		err = route.TransferERC20(s.operator, gcommon.HexToAddress(p.Token), amount)
	case tasks.AssetERC721:
		tokenID, ok := new(big.Int).SetString(p.TokenID, 10)
		if !ok {
			return fmt.Errorf("invalid token id %q: %w", p.TokenID, asynq.SkipRetry)
		}
		err = route.TransferERC721(s.operator, gcommon.HexToAddress(p.Token), tokenID)
	case tasks.AssetNative:
		amount, ok := new(big.Int).SetString(p.Amount, 10)
		if !ok {
			return fmt.Errorf("invalid amount %q: %w", p.Amount, asynq.SkipRetry)
		}
		err = route.TransferNativeToken(s.operator, amount)
	default:
		return fmt.Errorf("unknown asset kind %q: %w", p.Kind, asynq.SkipRetry)
	}
	if err != nil {
		s.incCounter("worker.sweep.failed", []string{"kind:" + string(p.Kind)})
		return fmt.Errorf("fail to sweep route, err: %w", err)
	}
	s.incCounter("worker.sweep.succeeded", []string{"kind:" + string(p.Kind)})
	return nil
}

// HandleReceiptArchive uploads a withdrawal receipt to block storage.
func (s *WorkerService) HandleReceiptArchive(ctx context.Context, t *asynq.Task) error {
	if err := contexthelper.CheckCancellation(ctx); err != nil {
		return err
	}
	var p tasks.ReceiptArchivePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if err := s.blockStorage.UploadReceiptWithRetry(p.Receipt, 3); err != nil {
		s.incCounter("worker.receipt.failed", nil)
		return fmt.Errorf("fail to archive receipt, err: %w", err)
	}
	s.incCounter("worker.receipt.archived", nil)
	return nil
}
