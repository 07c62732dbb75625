package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	redisstore "github.com/vladislavdragonenkov/marketplace/internal/cache/redis"
	healthcheck "github.com/vladislavdragonenkov/marketplace/internal/health"
	"github.com/vladislavdragonenkov/marketplace/internal/metrics"
	"github.com/vladislavdragonenkov/marketplace/internal/service/outbox"
	"github.com/vladislavdragonenkov/marketplace/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/marketplace/internal/version"
)

const shutdownTimeout = 5 * time.Second

// Run поднимает хранилище, граф сервисов, outbox worker и серверы, и работает до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	build := version.Current()
	logger := log.WithFields(log.Fields{"component": "app", "service": version.Service})
	logger.WithFields(build.Fields()).Info("starting marketplace")

	deps, err := initRuntimeDependencies(ctx, cfg, logger.WithField("layer", "storage"))
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.closeFn(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	marketMetrics := metrics.NewMarketMetrics()

	cache := initUnreadCache(ctx, cfg, logger)
	if cache != nil {
		defer func() { _ = cache.Close() }()
	}

	// Kafka необязательна: без неё события outbox уходят в лог.
	sink := newEventSink(cfg.KafkaBrokers, cfg.KafkaClientID, logger.WithField("component", "events"))
	defer sink.Close()

	services := NewDependencies(deps, cfg, marketMetrics, cache, logger)

	worker := outbox.NewWorker(deps.outboxRepo, sink.publisher, sink.workerOptions(
		outbox.WithLogger(logger.WithField("component", "outbox-worker")),
		outbox.WithMetrics(marketMetrics),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	)...)
	logger.WithField("kafka", sink.kafkaEnabled()).Info("outbox relay configured")

	healthHandler := healthcheck.NewHandler(build.Version)
	healthHandler.RegisterChecker("storage", healthcheck.Ping("storage", deps.pingFn))
	if cache != nil {
		healthHandler.RegisterOptional("redis", healthcheck.Ping("redis", cache.Ping))
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(runCtx)
	}()

	apiLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		stop()
		<-workerDone
		return fmt.Errorf("listen http api: %w", err)
	}
	apiSrv := &http.Server{
		Handler:           httpapi.NewHandler(services.HTTPServices(), logger.WithField("layer", "http")),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Infof("HTTP API слушает %s", apiLis.Addr())
		if err := apiSrv.Serve(apiLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http api: %w", err)
		}
	}()

	metricsSrv := startMetricsServer(runCtx, cfg.MetricsAddr, logger, healthHandler)

	grpcServer, grpcHealth := startGRPCServer(cfg.GRPCAddr, logger, errCh)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем серверы")
		runErr = ctx.Err()
	case err := <-errCh:
		logger.WithError(err).Error("server failed")
		runErr = err
	}

	stop()
	stopGRPC(grpcServer, grpcHealth, logger)
	shutdownHTTP(apiSrv, logger)
	shutdownHTTP(metricsSrv, logger)
	<-workerDone

	return runErr
}

// initUnreadCache подключает Redis-кэш счётчиков. Ошибка не фатальна: сервис читает из хранилища.
func initUnreadCache(ctx context.Context, cfg Config, logger *log.Entry) *redisstore.UnreadCache {
	if cfg.RedisURL == "" {
		return nil
	}
	cache, err := redisstore.Connect(ctx, cfg.RedisURL, cfg.UnreadCacheTTL)
	if err != nil {
		logger.WithError(err).Warn("failed to connect redis, unread counters are not cached")
		return nil
	}
	logger.Info("redis unread cache initialized")
	return cache
}

// startGRPCServer поднимает gRPC health и reflection для балансировщиков и grpcurl.
// Пустой адрес отключает сервер.
func startGRPCServer(addr string, logger *log.Entry, errCh chan<- error) (*grpc.Server, *health.Server) {
	if addr == "" {
		return nil, nil
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		errCh <- fmt.Errorf("listen grpc: %w", err)
		return nil, nil
	}

	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok2 := are.ExistingCollector.(*promgrpc.ServerMetrics); ok2 {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(version.Service, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	grpcMetrics.InitializeMetrics(grpcServer)

	go func() {
		logger.Infof("gRPC health слушает %s", lis.Addr())
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("grpc: %w", err)
		}
	}()
	return grpcServer, healthServer
}

func stopGRPC(srv *grpc.Server, healthServer *health.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	healthServer.Shutdown()

	stopped := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		srv.Stop()
	}
}

// observabilityMux отдаёт /metrics и health endpoints.
func observabilityMux(healthHandler *healthcheck.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	return mux
}

// startMetricsServer слушает addr до отмены ctx. Ошибка listen только логируется.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	srv := &http.Server{Addr: addr, Handler: observabilityMux(healthHandler), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.WithField("addr", addr).Info("metrics and health endpoints listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
