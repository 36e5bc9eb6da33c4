package main

import (
	"fmt"
	"log"
	"math/big"

	"github.com/DataDog/datadog-go/statsd"
	gcommon "github.com/ethereum/go-ethereum/common"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/frostvault/frostvault/api"
	"github.com/frostvault/frostvault/config"
	"github.com/frostvault/frostvault/internal/events"
	"github.com/frostvault/frostvault/internal/ledger"
	"github.com/frostvault/frostvault/internal/logging"
	"github.com/frostvault/frostvault/internal/roles"
	"github.com/frostvault/frostvault/internal/routing"
	"github.com/frostvault/frostvault/internal/schnorr"
	"github.com/frostvault/frostvault/internal/sigutil"
	"github.com/frostvault/frostvault/internal/tasks"
	"github.com/frostvault/frostvault/internal/vault"
	"github.com/frostvault/frostvault/service"
	"github.com/frostvault/frostvault/storage"
	"github.com/frostvault/frostvault/storage/postgres"
)

func main() {
	cfg, err := config.ReadConfig("config")
	if err != nil {
		log.Fatalf("could not read config: %v", err)
	}

	admin := mustAddress(cfg.Chain.Admin, "chain.admin")
	operator := mustAddress(cfg.Chain.Operator, "chain.operator")
	shieldSigner := mustAddress(cfg.Chain.ShieldSigner, "chain.shield_signer")
	vaultAddress := mustAddress(cfg.Chain.VaultAddress, "chain.vault_address")
	factoryAddress := mustAddress(cfg.Chain.FactoryAddress, "chain.factory_address")

	publicKey, err := schnorr.ParsePublicKey(gcommon.FromHex(cfg.Chain.PublicKey))
	if err != nil {
		log.Fatalf("could not parse threshold public key: %v", err)
	}
	verifier, err := schnorr.NewVerifier(cfg.Chain.VerifierVariant)
	if err != nil {
		log.Fatalf("could not create threshold verifier: %v", err)
	}

	var store storage.Store
	if cfg.Database.DSN != "" {
		backend, err := postgres.NewPostgresBackend(cfg.Database.DSN)
		if err != nil {
			log.Fatalf("could not connect to database: %v", err)
		}
		defer backend.Close()
		store = backend
	} else {
		logging.Logger.Warn("no database configured, withdrawal ids are kept in memory")
		store = storage.NewMemoryStore()
	}

	l := ledger.New()
	recorder := events.NewMemoryRecorder()

	v := vault.New(vaultAddress, big.NewInt(cfg.Chain.DomainID), l, store, recorder)
	if err := v.Initialize(admin, verifier, sigutil.Verifier{}, shieldSigner, publicKey); err != nil {
		log.Fatalf("could not initialize vault: %v", err)
	}

	factory, err := routing.NewFactory(factoryAddress, admin, vaultAddress, l, store, recorder)
	if err != nil {
		log.Fatalf("could not create route factory: %v", err)
	}
	if err := factory.Roles().Grant(admin, roles.RoleOperator, operator); err != nil {
		log.Fatalf("could not grant operator role: %v", err)
	}

	redisStorage, err := storage.NewRedisStorage(cfg)
	if err != nil {
		log.Fatalf("could not connect to redis: %v", err)
	}
	defer func() {
		if err := redisStorage.Close(); err != nil {
			logging.Logger.Errorf("fail to close redis, err: %v", err)
		}
	}()

	blockStorage, err := storage.NewBlockStorage(cfg)
	if err != nil {
		log.Fatalf("could not connect to block storage: %v", err)
	}

	sdClient, err := statsd.New(fmt.Sprintf("%s:%s", cfg.Server.StatsdHost, cfg.Server.StatsdPort))
	if err != nil {
		log.Fatalf("could not create statsd client: %v", err)
	}

	redisAddr := cfg.Redis.Host + ":" + cfg.Redis.Port
	queueClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     redisAddr,
		Username: cfg.Redis.User,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := queueClient.Close(); err != nil {
			logging.Logger.Errorf("fail to close asynq client, err: %v", err)
		}
	}()

	// Sweeps mutate the factory's routes, so their consumer runs in this
	// process rather than in the standalone worker.
	worker := service.NewWorker(cfg, factory, operator, sdClient, blockStorage)
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     redisAddr,
			Username: cfg.Redis.User,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				tasks.QueueSweeps: 1,
			},
		},
	)
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeRouteSweep, worker.HandleRouteSweep)
	go func() {
		if err := srv.Run(mux); err != nil {
			log.Fatalf("could not run sweep consumer: %v", err)
		}
	}()

	logging.Logger.WithFields(logrus.Fields{
		"vault":   vaultAddress.Hex(),
		"factory": factoryAddress.Hex(),
		"variant": cfg.Chain.VerifierVariant,
	}).Info("Starting server")

	server := api.NewServer(cfg, admin, v, factory, recorder, redisStorage, queueClient, sdClient)
	if err := server.StartServer(); err != nil {
		log.Fatalf("could not run server: %v", err)
	}
}

func mustAddress(raw, key string) gcommon.Address {
	if !gcommon.IsHexAddress(raw) {
		log.Fatalf("invalid address for %s: %q", key, raw)
	}
	return gcommon.HexToAddress(raw)
}
