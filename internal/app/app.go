package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nyanpass/panel/internal/billing"
	"github.com/nyanpass/panel/internal/config"
	"github.com/nyanpass/panel/internal/db"
	"github.com/nyanpass/panel/internal/events"
	"github.com/nyanpass/panel/internal/http/api/admin"
	"github.com/nyanpass/panel/internal/http/api/front"
	"github.com/nyanpass/panel/internal/http/middleware"
	"github.com/nyanpass/panel/internal/logging"
	"github.com/nyanpass/panel/internal/metrics"
	"github.com/nyanpass/panel/internal/ratelimit"
	"github.com/nyanpass/panel/internal/watcher"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const metricsNamespace = "nyanpass"

// LoadConfig resolves the config path from cfg and loads the file.
func LoadConfig(cfg config.AppConfig) (config.Config, error) {
	return config.Load(config.ResolveConfigPath(cfg.ConfigPath))
}

// OpenDatabase opens the configured database with its pool sizes.
func OpenDatabase(cfg config.Config) (*gorm.DB, error) {
	dsn := strings.TrimSpace(cfg.Database.DSN)
	if dsn == "" {
		return nil, config.ErrMissingDatabaseDSN
	}
	conn, errOpen := db.Open(dsn, db.Options{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if errOpen != nil {
		return nil, errOpen
	}
	if info, errDescribe := describeDSN(dsn); errDescribe == nil {
		log.Infof("database: %s", info)
	}
	return conn, nil
}

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	fileCfg, errLoad := LoadConfig(cfg)
	if errLoad != nil {
		return errLoad
	}
	conn, errOpen := OpenDatabase(fileCfg)
	if errOpen != nil {
		return errOpen
	}
	defer closeDB(conn)
	return db.Migrate(conn.WithContext(ctx))
}

// Server holds the assembled billing backend.
type Server struct {
	cfg      config.Config
	db       *gorm.DB
	Billing  *billing.Service
	Bus      *events.Bus
	Limiter  *ratelimit.Manager
	Watcher  *watcher.Watcher
	Registry *prometheus.Registry
	Engine   *gin.Engine
}

// NewServer wires gateways, the billing service, rate limiting, metrics and routes.
func NewServer(cfg config.Config, conn *gorm.DB) (*Server, error) {
	if conn == nil {
		return nil, fmt.Errorf("app: nil database")
	}
	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return nil, fmt.Errorf("app: jwt secret is required")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	observer, errObserver := metrics.NewPrometheusObserver(metricsNamespace, registry)
	if errObserver != nil {
		return nil, fmt.Errorf("app: register metrics: %w", errObserver)
	}

	gateways := BuildGateways(cfg.Payment)
	if methods := gateways.Methods(); len(methods) > 0 {
		log.Infof("payment gateways: %v", methods)
	} else {
		log.Warn("no external payment gateway configured; only balance payments are available")
	}

	bus := events.NewBus()
	plans := billing.NewPlanCatalog(conn, 0)
	svc := billing.New(conn, billing.Options{
		OrderTTL:       cfg.Order.TTL,
		NotifyBaseURL:  cfg.Server.BaseURL,
		ReturnURL:      cfg.Payment.EPay.ReturnURL,
		InviteEnabled:  cfg.Invite.Enabled,
		CommissionRate: cfg.Invite.CommissionRate,
		Gateways:       gateways,
		Publisher:      bus,
		Observer:       observer,
		Plans:          plans,
	})
	bus.Subscribe(events.OrderPaid, svc.HandleOrderPaid)
	bus.Subscribe(events.OrderPaid, logEvent)
	bus.Subscribe(events.OrderRefunded, logEvent)
	bus.Subscribe(events.CodeRedeemed, logEvent)

	limiter := ratelimit.NewManager(ratelimit.NewSettingsProvider(cfg.Redis), nil, nil)

	s := &Server{
		cfg:      cfg,
		db:       conn,
		Billing:  svc,
		Bus:      bus,
		Limiter:  limiter,
		Watcher:  watcher.New(conn, plans, 0),
		Registry: registry,
	}
	s.Engine = s.buildEngine()
	return s, nil
}

func (s *Server) buildEngine() *gin.Engine {
	if mode := strings.TrimSpace(s.cfg.Server.Mode); mode != "" {
		gin.SetMode(mode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(s.cfg.Server.CORSOrigins))
	engine.Use(middleware.RequestLogger())

	engine.GET("/healthz", s.healthz)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{})))

	front.RegisterFrontRoutes(engine, s.db, s.cfg.JWT, s.Billing, s.Limiter)
	admin.RegisterAdminRoutes(engine, s.db, s.cfg.JWT, s.Billing, s.Limiter)
	return engine
}

func (s *Server) healthz(c *gin.Context) {
	sqlDB, errDB := s.db.DB()
	if errDB == nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		errDB = sqlDB.PingContext(ctx)
		cancel()
	}
	if errDB != nil {
		log.WithError(errDB).Warn("healthz: database ping failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Run serves HTTP, sweeps expired orders and polls settings until ctx ends.
func (s *Server) Run(ctx context.Context) error {
	if errStart := s.Watcher.Start(ctx); errStart != nil {
		return fmt.Errorf("app: start settings watcher: %w", errStart)
	}
	defer s.Watcher.Stop()
	defer func() {
		if errClose := s.Limiter.Close(); errClose != nil {
			log.WithError(errClose).Warn("close rate limiter failed")
		}
	}()

	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("billing server listening on %s", srv.Addr)
		if errListen := srv.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
			return errListen
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			return fmt.Errorf("app: shutdown: %w", errShutdown)
		}
		log.Info("billing server stopped")
		return nil
	})
	g.Go(func() error {
		return s.Billing.RunExpirySweeper(gctx, s.cfg.Order.SweepInterval)
	})
	return g.Wait()
}

// RunServer loads config, prepares the database and runs the server until ctx ends.
func RunServer(ctx context.Context, cfg config.AppConfig) error {
	fileCfg, errLoad := LoadConfig(cfg)
	if errLoad != nil {
		return errLoad
	}
	closer, errLog := logging.Setup(fileCfg.Log)
	if errLog != nil {
		return errLog
	}
	defer func() { _ = closer.Close() }()

	conn, errOpen := OpenDatabase(fileCfg)
	if errOpen != nil {
		return errOpen
	}
	defer closeDB(conn)
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	initialized, errInit := HasAdminInitialized(conn)
	if errInit != nil {
		return errInit
	}
	if !initialized {
		log.Warn("no admin account exists; create one with `panel admin create`")
	}

	server, errServer := NewServer(fileCfg, conn)
	if errServer != nil {
		return errServer
	}
	return server.Run(ctx)
}

func logEvent(_ context.Context, evt events.Event) error {
	log.WithFields(log.Fields{
		"topic":    evt.Topic,
		"user_id":  evt.UserID,
		"order_no": evt.OrderNo,
		"method":   evt.PayMethod,
		"amount":   evt.Amount,
	}).Info("billing event")
	return nil
}

func closeDB(conn *gorm.DB) {
	sqlDB, errDB := conn.DB()
	if errDB != nil {
		return
	}
	if errClose := sqlDB.Close(); errClose != nil {
		log.Errorf("sql db close error: %v", errClose)
	}
}
