package api

import (
	"fmt"

	"github.com/DataDog/datadog-go/statsd"
	gcommon "github.com/ethereum/go-ethereum/common"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/sirupsen/logrus"

	"github.com/frostvault/frostvault/config"
	"github.com/frostvault/frostvault/internal/events"
	"github.com/frostvault/frostvault/internal/routing"
	"github.com/frostvault/frostvault/internal/vault"
	"github.com/frostvault/frostvault/service"
	"github.com/frostvault/frostvault/storage"
)

// Server exposes the custody system over HTTP: withdrawal submission,
// deposit-address prediction and deployment, sweep enqueueing and role
// administration.
type Server struct {
	cfg         config.Config
	admin       gcommon.Address
	vault       *vault.Vault
	factory     *routing.Factory
	recorder    *events.MemoryRecorder
	redis       *storage.RedisStorage
	queueClient *asynq.Client
	sdClient    *statsd.Client
	authService *service.AuthService
	logger      *logrus.Logger
}

// NewServer returns a new server.
func NewServer(
	cfg config.Config,
	admin gcommon.Address,
	v *vault.Vault,
	factory *routing.Factory,
	recorder *events.MemoryRecorder,
	redis *storage.RedisStorage,
	queueClient *asynq.Client,
	sdClient *statsd.Client,
) *Server {
	return &Server{
		cfg:         cfg,
		admin:       admin,
		vault:       v,
		factory:     factory,
		recorder:    recorder,
		redis:       redis,
		queueClient: queueClient,
		sdClient:    sdClient,
		authService: service.NewAuthService(cfg.Server.JwtSecret),
		logger:      logrus.WithField("service", "api").Logger,
	}
}

func (s *Server) StartServer() error {
	e := echo.New()
	e.Logger.SetLevel(log.DEBUG)
	e.Use(s.statsdMiddleware)
	e.Use(middleware.CORS())
	limiterStore := middleware.NewRateLimiterMemoryStore(5)
	e.Use(middleware.RateLimiter(limiterStore))

	e.GET("/ping", s.Ping)
	e.POST("/withdraw", s.Withdraw)
	e.GET("/deposit/address/:salt", s.GetDepositAddress)
	e.GET("/events", s.GetEvents)

	grp := e.Group("/admin", s.AuthMiddleware)
	grp.POST("/deposit/deploy", s.DeployRoute)
	grp.POST("/sweep", s.EnqueueSweep)
	grp.POST("/roles/grant", s.GrantRole)
	grp.POST("/roles/revoke", s.RevokeRole)
	grp.POST("/pause", s.Pause)
	grp.POST("/unpause", s.Unpause)
	grp.POST("/withdrawals/reset", s.ResetWithdrawalID)

	return e.Start(fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port))
}

func (s *Server) Ping(c echo.Context) error {
	return c.String(200, "frostvault is running")
}
