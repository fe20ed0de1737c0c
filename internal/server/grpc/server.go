// Package grpcserver runs the admin gRPC listener: standard health checks
// backed by a database probe, plus optional server reflection.
package grpcserver

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported alongside the overall "" entry.
const ServiceName = "gymdesk"

// Pinger probes a backing dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tune the admin listener.
type Options struct {
	Interval    time.Duration // probe period, default 10s
	Timeout     time.Duration // per-probe timeout, default 2s
	Reflection  bool
	StopTimeout time.Duration // graceful stop budget, default 5s
}

// Admin owns the gRPC server and its health state.
type Admin struct {
	srv  *grpc.Server
	hs   *health.Server
	db   Pinger
	log  *zap.Logger
	opts Options
}

// NewAdmin builds the admin server. Health starts as NOT_SERVING until the first probe.
func NewAdmin(log *zap.Logger, db Pinger, opts Options) *Admin {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 5 * time.Second
	}
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(RecoverUnary(log), LoggingUnary(log)),
		grpc.ChainStreamInterceptor(RecoverStream(log), LoggingStream(log)),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	if opts.Reflection {
		reflection.Register(s)
	}
	a := &Admin{srv: s, hs: hs, db: db, log: log, opts: opts}
	a.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return a
}

func (a *Admin) set(st healthpb.HealthCheckResponse_ServingStatus) {
	a.hs.SetServingStatus("", st)
	a.hs.SetServingStatus(ServiceName, st)
}

// Probe pings the database once and updates health status.
func (a *Admin) Probe(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()
	if err := a.db.Ping(pctx); err != nil {
		a.log.Warn("db probe failed", zap.Error(err))
		a.set(healthpb.HealthCheckResponse_NOT_SERVING)
		return false
	}
	a.set(healthpb.HealthCheckResponse_SERVING)
	return true
}

// Watch probes immediately and then every Interval until ctx is done.
func (a *Admin) Watch(ctx context.Context) {
	a.Probe(ctx)
	t := time.NewTicker(a.opts.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.Probe(ctx)
		}
	}
}

// Serve blocks serving lis.
func (a *Admin) Serve(lis net.Listener) error {
	a.log.Info("admin listening", zap.String("addr", lis.Addr().String()))
	return a.srv.Serve(lis)
}

// Stop marks health as shutting down and stops the server, forcing after StopTimeout.
func (a *Admin) Stop() {
	a.hs.Shutdown()
	done := make(chan struct{})
	go func() {
		a.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(a.opts.StopTimeout):
		a.srv.Stop()
	}
}
