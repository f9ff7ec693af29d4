// Package app wires the call session runtime: store, channel client,
// orchestrator, presentation hub, HTTP API, and the gRPC health endpoint.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/platform/timeouts"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/api/httpapi"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/api/ui"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/channel/ws"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/domain"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/metrics"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/orchestrator"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/recovery"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/render"
	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/storage"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the gRPC health name that reports SERVING while the
// orchestrator is running.
const HealthService = "callsession.orchestrator"

// Runtime holds the wired call session service.
type Runtime struct {
	cfg          RuntimeConfig
	store        storage.Store
	channel      *ws.Client
	orchestrator *orchestrator.Orchestrator
	bridge       *orchestrator.UIBridge
	hub          *ui.Hub
	httpListener net.Listener
	httpServer   *http.Server
	grpcListener net.Listener
	grpcServer   *grpc.Server
	health       *health.Server
}

// Run builds the runtime and serves until ctx is done.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	runtime, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return runtime.Serve(ctx)
}

// New opens the store and listeners and wires every component.
func New(ctx context.Context, cfg RuntimeConfig) (*Runtime, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg = cfg.normalized()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	backend, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store := storage.NewBounded(backend, cfg.StaleAfter, time.Now)

	channelClient, err := ws.New(ws.Config{
		URL:            cfg.ChannelURL,
		RequestTimeout: cfg.JoinTimeout,
		Logf:           log.Printf,
	})
	if err != nil {
		closeStore(store)
		return nil, fmt.Errorf("build channel client: %w", err)
	}

	device, err := outputDevice(cfg.VolumeCommand)
	if err != nil {
		closeStore(store)
		return nil, err
	}

	recorder := metrics.New()
	detector := orchestrator.NewProcessStateDetector(time.Now(), cfg.ColdStartWindow)
	hub := ui.NewHub(ui.Options{Surfaces: detector, Recorder: recorder, Logf: log.Printf})
	bridge := orchestrator.NewUIBridge(hub)
	printer := render.NewPrinter(cfg.Locale)

	orch, err := orchestrator.New(orchestrator.Deps{
		Store:      store,
		Heartbeats: store,
		Channel:    channelClient,
		Volume:     orchestrator.NewVolumeController(device, log.Printf),
		Notifier:   hub,
		UI:         bridge,
		Process:    detector,
		Render: func(session domain.Session) domain.Notification {
			return render.ForSession(printer, session)
		},
		Recorder: recorder,
	}, orchestrator.Config{
		OccupancyDelay:    cfg.OccupancyDelay,
		MaxTriggerAge:     cfg.MaxTriggerAge,
		HeartbeatInterval: cfg.HeartbeatInterval,
		JoinTimeout:       cfg.JoinTimeout,
		OccupancyTimeout:  cfg.OccupancyTimeout,
		LeaveTimeout:      cfg.LeaveTimeout,
	})
	if err != nil {
		bridge.Close()
		_ = channelClient.Close()
		closeStore(store)
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}

	coordinator := recovery.NewCoordinator(store, recovery.OwnerLiveness{
		Local:  orch,
		Remote: recovery.HeartbeatLiveness{Heartbeats: store, TTL: cfg.HeartbeatTTL},
	}, orch, recovery.WithRecorder(recorder))
	hub.SetRecoverer(coordinator)

	mux := http.NewServeMux()
	httpapi.NewHandler(orch, httpapi.Options{
		Metrics:  recorder.Handler(),
		UI:       hub,
		Recorder: recorder,
	}).RegisterRoutes(mux)

	runtime := &Runtime{
		cfg:          cfg,
		store:        store,
		channel:      channelClient,
		orchestrator: orch,
		bridge:       bridge,
		hub:          hub,
		httpServer: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: timeouts.ReadHeader,
		},
	}

	runtime.httpListener, err = net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		runtime.release()
		return nil, fmt.Errorf("listen on http addr %s: %w", cfg.HTTPAddr, err)
	}
	runtime.grpcListener, err = net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		runtime.release()
		return nil, fmt.Errorf("listen on grpc addr %s: %w", cfg.GRPCAddr, err)
	}

	runtime.grpcServer = grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	runtime.health = health.NewServer()
	grpc_health_v1.RegisterHealthServer(runtime.grpcServer, runtime.health)
	runtime.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	runtime.health.SetServingStatus(HealthService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	return runtime, nil
}

// HTTPAddr returns the bound HTTP address.
func (r *Runtime) HTTPAddr() string {
	if r == nil || r.httpListener == nil {
		return ""
	}
	return r.httpListener.Addr().String()
}

// GRPCAddr returns the bound gRPC health address.
func (r *Runtime) GRPCAddr() string {
	if r == nil || r.grpcListener == nil {
		return ""
	}
	return r.grpcListener.Addr().String()
}

// Serve runs the orchestrator and both servers until ctx is done or one of
// them fails. The in-flight session is ended before the channel client and
// store are released.
func (r *Runtime) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer r.release()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		r.health.SetServingStatus(HealthService, grpc_health_v1.HealthCheckResponse_SERVING)
		defer r.health.SetServingStatus(HealthService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		return r.orchestrator.Run(groupCtx)
	})
	group.Go(func() error {
		log.Printf("callsession HTTP server listening at %v", r.httpListener.Addr())
		if err := r.httpServer.Serve(r.httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve HTTP: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		log.Printf("callsession health server listening at %v", r.grpcListener.Addr())
		if err := r.grpcServer.Serve(r.grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		r.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("callsession HTTP shutdown: %v", err)
		}
		r.health.Shutdown()
		r.grpcServer.GracefulStop()
		return nil
	})
	return group.Wait()
}

// release closes everything New opened. The listeners are already closed
// when the servers have run.
func (r *Runtime) release() {
	if r.bridge != nil {
		r.bridge.Close()
	}
	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			log.Printf("close channel client: %v", err)
		}
	}
	if r.httpListener != nil {
		_ = r.httpListener.Close()
	}
	if r.grpcListener != nil {
		_ = r.grpcListener.Close()
	}
	closeStore(r.store)
}

func outputDevice(command string) (orchestrator.OutputDevice, error) {
	if strings.TrimSpace(command) == "" {
		return orchestrator.NoopDevice{}, nil
	}
	device, err := orchestrator.NewCommandDevice(command)
	if err != nil {
		return nil, fmt.Errorf("build volume device: %w", err)
	}
	return device, nil
}
