package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
)

// HealthProbe checks the agent backend through the standard gRPC health
// service. Chat traffic itself goes over HTTP.
type HealthProbe struct {
	conn    *grpc.ClientConn
	client  healthpb.HealthClient
	addr    string
	service string
	timeout time.Duration
	logger  *slog.Logger
}

// ProbeConfig holds configuration for the health probe.
type ProbeConfig struct {
	Address          string
	Service          string
	RequestTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
}

// DefaultProbeConfig returns defaults for addr.
func DefaultProbeConfig(addr string) ProbeConfig {
	return ProbeConfig{
		Address:          addr,
		RequestTimeout:   5 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// NewHealthProbe builds a client connection. No network I/O happens until
// the first Check or Wait.
func NewHealthProbe(cfg ProbeConfig, logger *slog.Logger) (*HealthProbe, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Address == "" {
		return nil, errors.New("health probe address is required")
	}

	kacp := keepalive.ClientParameters{
		Time:                cfg.KeepaliveTime,
		Timeout:             cfg.KeepaliveTimeout,
		PermitWithoutStream: false,
	}
	conn, err := grpc.NewClient(cfg.Address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	)
	if err != nil {
		return nil, fmt.Errorf("create gRPC client for %s: %w", cfg.Address, err)
	}

	return &HealthProbe{
		conn:    conn,
		client:  healthpb.NewHealthClient(conn),
		addr:    cfg.Address,
		service: cfg.Service,
		timeout: cfg.RequestTimeout,
		logger:  logger,
	}, nil
}

// Address returns the probed address.
func (p *HealthProbe) Address() string { return p.addr }

// Wait blocks until the connection is ready or ctx ends.
func (p *HealthProbe) Wait(ctx context.Context) error {
	if err := waitForReady(ctx, p.conn); err != nil {
		return fmt.Errorf("agent backend at %s not ready: %w", p.addr, err)
	}
	return nil
}

// Check asks the backend for its serving status.
func (p *HealthProbe) Check(ctx context.Context) (*healthpb.HealthCheckResponse, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	resp, err := p.client.Check(ctx, &healthpb.HealthCheckRequest{Service: p.service})
	if err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}
	return resp, nil
}

// Close closes the gRPC connection.
func (p *HealthProbe) Close() {
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			p.logger.Warn("failed to close gRPC connection", "error", err)
		}
	}
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}
