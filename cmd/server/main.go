// Command gymdesk-server starts the gym REST API, the enrollment WebSocket
// bridge and the admin gRPC health listener.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/and161185/gymdesk/internal/config"
	"github.com/and161185/gymdesk/internal/crypto/templatecrypto"
	"github.com/and161185/gymdesk/internal/limiter"
	"github.com/and161185/gymdesk/internal/migrate"
	"github.com/and161185/gymdesk/internal/presence"
	"github.com/and161185/gymdesk/internal/repository/postgres"
	grpcserver "github.com/and161185/gymdesk/internal/server/grpc"
	"github.com/and161185/gymdesk/internal/server/httpapi"
	"github.com/and161185/gymdesk/internal/server/ws"
	"github.com/and161185/gymdesk/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func newLogger(dev bool) *zap.Logger {
	if dev {
		l, _ := zap.NewDevelopment()
		return l
	}
	l, _ := zap.NewProduction()
	return l
}

func main() {
	cfgPath := flag.String("config", "", "path to YAML config (optional)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		boot, _ := zap.NewProduction()
		boot.Fatal("load config", zap.Error(err))
	}

	logger := newLogger(cfg.Log.Dev)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("http", cfg.HTTP.Addr),
		zap.String("admin", cfg.Admin.Addr),
	)
	if !cfg.Log.Dev {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := migrate.Up(ctx, cfg.DB.URL, logger); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	db, err := postgres.New(ctx, cfg.DB.URL)
	if err != nil {
		logger.Fatal("postgres", zap.Error(err))
	}
	defer db.Close()

	userRepo := postgres.NewUserRepo(db)
	gymRepo := postgres.NewGymRepo(db)
	visitRepo := postgres.NewAttendanceRepo(db)

	lim := limiter.NewPG(db.Pool, cfg.Limiter.Window, cfg.Limiter.MaxFails, cfg.Limiter.BlockFor)

	cipher, err := templatecrypto.New(cfg.SecretKey)
	if err != nil {
		logger.Fatal("template cipher", zap.Error(err))
	}

	authSvc := service.NewAuthService(userRepo, []byte(cfg.SecretKey), cfg.Auth.AccessTTL, lim)
	userSvc := service.NewUserService(userRepo)
	visitSvc := service.NewAttendanceService(userRepo, visitRepo)
	enrollSvc := service.NewEnrollmentService(userRepo, cipher, logger.Named("enroll"))

	seeded, err := service.Bootstrap(ctx, userRepo, gymRepo, service.BootstrapAdmin{
		Email:    cfg.Admin.BootstrapEmail,
		Password: cfg.Admin.BootstrapPassword,
		GymName:  cfg.Admin.BootstrapName,
	})
	if err != nil {
		logger.Fatal("bootstrap admin", zap.Error(err))
	}
	if seeded {
		logger.Info("bootstrap admin created", zap.String("email", cfg.Admin.BootstrapEmail))
	}

	var pres ws.Presence
	if cfg.Redis.Addr != "" {
		rp, err := presence.Dial(ctx, presence.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			logger.Warn("presence disabled", zap.Error(err))
		} else {
			defer func() { _ = rp.Close() }()
			go rp.Run(ctx, presence.DefaultHeartbeat, func(err error) {
				logger.Warn("presence heartbeat failed", zap.Error(err))
			})
			pres = rp
		}
	}

	reg := ws.NewRegistry(logger.Named("ws"), pres)
	wsh := ws.NewHandler(reg, authSvc, enrollSvc, logger.Named("ws"), ws.Options{
		WriteTimeout:     cfg.WS.WriteTimeout,
		TemplatePageSize: cfg.WS.TemplatePageSize,
	})

	engine := httpapi.NewEngine(logger.Named("http"), httpapi.New(authSvc, userSvc, visitSvc, db.Ping))
	wsh.Register(engine)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var admin *grpcserver.Admin
	if cfg.Admin.Addr != "" {
		lis, err := net.Listen("tcp", cfg.Admin.Addr)
		if err != nil {
			logger.Fatal("admin listen", zap.Error(err))
		}
		admin = grpcserver.NewAdmin(logger.Named("admin"), db, grpcserver.Options{Reflection: cfg.Admin.Reflection})
		go admin.Watch(ctx)
		go func() { errCh <- admin.Serve(lis) }()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		reg.CloseAll()
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// Hijacked sockets are not tracked by http.Server.
	reg.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if admin != nil {
		admin.Stop()
	}
	logger.Info("shutdown complete")
}
