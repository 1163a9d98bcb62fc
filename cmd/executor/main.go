// Package main boots the spout executor demo process: configuration,
// logger, Redis remote transport, MQTT metrics sink, the bundled generator
// spout, and the executor run loop.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/ibs-source/spout-executor/golang/internal/config"
	"github.com/ibs-source/spout-executor/golang/internal/domain"
	"github.com/ibs-source/spout-executor/golang/internal/executor"
	"github.com/ibs-source/spout-executor/golang/internal/logger"
	"github.com/ibs-source/spout-executor/golang/internal/ports"
	runtimex "github.com/ibs-source/spout-executor/golang/internal/runtime"
	"github.com/ibs-source/spout-executor/golang/internal/spout"
	"github.com/ibs-source/spout-executor/golang/internal/timeutil"
	"github.com/ibs-source/spout-executor/golang/internal/topology"
	"github.com/ibs-source/spout-executor/golang/internal/transport"
	"github.com/ibs-source/spout-executor/golang/pkg/boundedqueue"
	"github.com/ibs-source/spout-executor/golang/pkg/circuitbreaker"
	"github.com/ibs-source/spout-executor/golang/pkg/serializer"
	"github.com/ibs-source/spout-executor/golang/pkg/waitstrategy"
)

// primaryTaskID is the spout task this demo process hosts. ackerTaskID is a
// second local task standing in for the topology's out-of-scope acker: the
// demo routes both through the same worker so the bundled GeneratorSpout's
// anchored emits exercise the real C6 local-delivery/back-pressure coupling
// and the real pending-map ack lifecycle end to end, instead of the
// immediate-ack bypass a topology with no acker configured would take.
const (
	primaryTaskID int64 = 1
	ackerTaskID   int64 = 2
)

// Application wires and owns every collaborator the executor run loop is
// built from, mirroring the teacher's Application struct shape
// (config/logger/clients/processor/healthSrv/wg).
type Application struct {
	config *config.Config
	logger ports.Logger

	recvQueue   *ports.RecvQueue
	ackerQueue  *ports.RecvQueue
	remoteBus   *transport.RedisBus
	metricsSink *transport.MetricsSink

	loop *executor.Loop

	healthSrv *http.Server
	wg        sync.WaitGroup
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return 1
	}

	logr, err := logger.NewLogrusLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return 1
	}

	app := &Application{
		config: cfg,
		logger: logr,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Start(ctx); err != nil {
		logr.Error("failed to start application", ports.Field{Key: "error", Value: err.Error()})
		return 1
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logr.Info("received shutdown signal", ports.Field{Key: "signal", Value: sig.String()})

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		logr.Error("failed to shutdown gracefully", ports.Field{Key: "error", Value: err.Error()})
		return 1
	}

	logr.Info("application shutdown complete")
	return 0
}

// Start wires every collaborator and begins driving the executor loop on a
// dedicated goroutine.
func (app *Application) Start(ctx context.Context) error {
	app.logger.Info("starting application",
		ports.Field{Key: "name", Value: app.config.App.Name},
		ports.Field{Key: "environment", Value: app.config.App.Environment},
	)

	app.applyCPUAffinityIfConfigured()

	// Multi: the loop's own goroutine (self-targeted spout emits), the
	// ticker goroutine, and the in-process acker simulator goroutine below
	// all publish into this queue concurrently.
	app.recvQueue = boundedqueue.New[domain.QueueMsg](
		uint32(app.config.Topology.QueueCapacity), boundedqueue.Multi,
	)
	// Single: only the loop's own goroutine ever publishes here, via the
	// collector's acker-init routing.
	app.ackerQueue = boundedqueue.New[domain.QueueMsg](
		uint32(app.config.Topology.QueueCapacity), boundedqueue.Single,
	)

	app.remoteBus = transport.NewRedisBus(transport.RedisBusConfig{
		Addresses:       app.config.Redis.Addresses,
		Username:        app.config.Redis.Username,
		Password:        app.config.Redis.Password,
		DB:              app.config.Redis.DB,
		MasterName:      app.config.Redis.MasterName,
		PoolSize:        app.config.Redis.PoolSize,
		MinIdleConns:    app.config.Redis.MinIdleConns,
		ConnectTimeout:  app.config.Redis.ConnectTimeout,
		ReadTimeout:     app.config.Redis.ReadTimeout,
		WriteTimeout:    app.config.Redis.WriteTimeout,
		ConnMaxLifetime: app.config.Redis.ConnMaxLifetime,
		ConnMaxIdleTime: app.config.Redis.ConnMaxIdleTime,
		PoolTimeout:     app.config.Redis.PoolTimeout,
		StreamPrefix:    app.config.Redis.StreamPrefix,
		MaxRetries:      app.config.Redis.MaxRetries,
		RetryInterval:   app.config.Redis.RetryInterval,
	}, app.logger)

	if app.config.MQTT.Brokers != nil {
		sink, err := app.connectMetricsSink(ctx)
		if err != nil {
			app.logger.Warn("metrics sink unavailable, metrics ticks will be dropped",
				ports.Field{Key: "error", Value: err.Error()})
		} else {
			app.metricsSink = sink
		}
	}

	var breaker ports.CircuitBreaker
	if app.config.CircuitBreaker.Enabled {
		breaker = circuitbreaker.New(
			"remote-flush",
			app.config.CircuitBreaker.ErrorThreshold,
			app.config.CircuitBreaker.SuccessThreshold,
			app.config.CircuitBreaker.Timeout,
			app.config.CircuitBreaker.MaxConcurrentCalls,
			app.config.CircuitBreaker.RequestVolumeThreshold,
		)
	}

	worker := topology.NewStaticWorker(map[int64]*ports.RecvQueue{
		primaryTaskID: app.recvQueue,
		ackerTaskID:   app.ackerQueue,
	}, app.remoteBus)
	// Self-targeting: the generator's tuples route back through this
	// process's own local queue via C6 rather than to an external
	// destination, so the demo exercises real local delivery and
	// back-pressure instead of calling Transfer with nowhere to go.
	grouping := topology.NewRoundRobinGrouping([]int64{primaryTaskID})
	backpressureWS := waitstrategy.Lookup(app.config.Topology.BackPressureWaitStrategy)

	transfer := executor.NewTransfer(
		worker,
		serializer.NewFastSerializer(),
		backpressureWS,
		app.config.Topology.ProducerBatchSize,
		breaker,
		app.logger,
	)

	gen := spout.NewGeneratorSpout()

	var metricsPublisher ports.MetricsPublisher
	if app.metricsSink != nil {
		metricsPublisher = app.metricsSink
	}

	loopCfg := executor.Config{
		MaxSpoutPending:   app.config.Topology.MaxSpoutPending,
		DrainCadence:      app.config.Topology.DrainCadence,
		InactiveSleep:     app.config.Topology.InactiveSleep,
		NumBuckets:        app.config.Topology.NumBuckets,
		EmptyEmitStrategy: waitstrategy.Lookup(app.config.Topology.SpoutWaitStrategy),
	}

	app.loop = executor.NewLoop(
		app.recvQueue,
		[]ports.Spout{gen},
		[]int64{primaryTaskID},
		grouping,
		transfer,
		app.logger,
		metricsPublisher,
		ackerTaskID, // anchored emits go through the real pending-map ack lifecycle
		loopCfg,
		func(err error) {
			app.logger.Error("executor reported a user error", ports.Field{Key: "error", Value: err.Error()})
		},
	)

	if err := app.loop.Open([]map[string]string{{"debug": fmt.Sprintf("%t", app.config.Topology.Debug)}}); err != nil {
		return fmt.Errorf("failed to open spouts: %w", err)
	}
	app.loop.SetActive(true)

	app.wg.Add(1)
	go app.runLoop(ctx)

	app.wg.Add(1)
	go app.runTickers(ctx)

	app.wg.Add(1)
	go app.runAckerSim(ctx)

	if app.config.Health.Enabled {
		app.startHealthServer()
	}

	app.logger.Info("application started successfully")
	return nil
}

// runLoop drives the executor's hot loop. When Topology.PinExecutorThread
// is set, it locks the goroutine to its OS thread and calls
// runtimex.PinCurrentThreadToCPU with the first configured affinity CPU;
// that call is a no-op in this build on every platform, so the thread is
// locked but not bound to a core.
func (app *Application) runLoop(ctx context.Context) {
	defer app.wg.Done()

	if app.config.Topology.PinExecutorThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		if len(app.config.Topology.CPUAffinity) > 0 {
			if err := runtimex.PinCurrentThreadToCPU(app.config.Topology.CPUAffinity[0]); err != nil {
				app.logger.Warn("pin executor thread failed", ports.Field{Key: "error", Value: err.Error()})
			}
		}
	}

	if err := app.loop.Run(ctx); err != nil {
		app.logger.Error("executor loop terminated", ports.Field{Key: "error", Value: err.Error()})
	}
}

// runTickers periodically enqueues SYSTEM_TICK (pending-map rotation) and
// METRICS_TICK messages onto the executor's own receive queue, standing in
// for the out-of-scope topology-master cadence driver.
func (app *Application) runTickers(ctx context.Context) {
	defer app.wg.Done()

	tickInterval := timeutil.SecondsOverBuckets(app.config.Topology.MessageTimeoutSecs, app.config.Topology.NumBuckets)
	if tickInterval <= 0 {
		tickInterval = time.Second
	}
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	metricsTicker := time.NewTicker(10 * time.Second)
	defer metricsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msg := domain.NewTickMsg()
			app.recvQueue.TryPublish(&msg)
		case <-metricsTicker.C:
			msg := domain.NewMetricsTickMsg()
			app.recvQueue.TryPublish(&msg)
		}
	}
}

// runAckerSim stands in for the out-of-scope acker task: it drains the
// acker-init tuples the collector routes to ackerTaskID (one per anchored
// emit, carrying (rootId, xor-of-anchors, taskId) per spec.md §4.5) and
// immediately replies with an ACKER_ACK on the spout's own receive queue,
// exercising the loop's real pending-map ack lifecycle instead of the
// no-acker immediate-ack bypass.
func (app *Application) runAckerSim(ctx context.Context) {
	defer app.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		drained := app.ackerQueue.Consume(boundedqueue.HandlerFunc[domain.QueueMsg]{
			AcceptFn: func(msg domain.QueueMsg) {
				if msg.Kind != domain.KindTuple || msg.Tuple.StreamID != domain.StreamAckerInit {
					return
				}
				rootID, _ := msg.Tuple.Values[0].(uint64)
				taskID, _ := msg.Tuple.Values[2].(int64)
				ack := domain.NewAckMsg(rootID, taskID)
				app.recvQueue.TryPublish(&ack)
			},
		})
		if drained == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Millisecond):
			}
		}
	}
}

func (app *Application) connectMetricsSink(ctx context.Context) (*transport.MetricsSink, error) {
	connectCtx, cancel := context.WithTimeout(ctx, app.config.MQTT.ConnectTimeout)
	defer cancel()
	return transport.NewMetricsSink(connectCtx, transport.MetricsSinkConfig{
		Brokers:           app.config.MQTT.Brokers,
		ClientID:          app.config.MQTT.ClientID,
		QoS:               app.config.MQTT.QoS,
		Topic:             app.config.MQTT.Topic,
		CleanSession:      app.config.MQTT.CleanSession,
		ConnectTimeout:    app.config.MQTT.ConnectTimeout,
		WriteTimeout:      app.config.MQTT.WriteTimeout,
		MaxReconnectDelay: app.config.MQTT.MaxReconnectDelay,
	}, app.logger)
}

// applyCPUAffinityIfConfigured passes the configured CPU set to
// runtimex.ApplyProcessAffinity, which is a no-op in this build on Linux
// and non-Linux alike.
func (app *Application) applyCPUAffinityIfConfigured() {
	if len(app.config.Topology.CPUAffinity) == 0 {
		return
	}
	if err := runtimex.ApplyProcessAffinity(runtimex.AffinitySpec{CPUSet: app.config.Topology.CPUAffinity}); err != nil {
		app.logger.Warn("failed to apply CPU affinity (best-effort)", ports.Field{Key: "error", Value: err.Error()})
		return
	}
	app.logger.Info("applied CPU affinity", ports.Field{Key: "cpus", Value: app.config.Topology.CPUAffinity})
}

// Shutdown waits for the background goroutines to return, runs the
// executor's orderly stop sequence (deactivate, flush, drain remaining
// acks), and closes the remote transports, all bounded by ctx's deadline.
func (app *Application) Shutdown(ctx context.Context) error {
	app.logger.Info("shutting down application")

	if app.recvQueue != nil {
		app.recvQueue.HaltWithInterrupt(domain.Interrupt)
	}

	if app.healthSrv != nil {
		if err := app.healthSrv.Shutdown(ctx); err != nil {
			app.logger.Error("failed to shutdown health server", ports.Field{Key: "error", Value: err.Error()})
		}
	}

	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		app.logger.Warn("shutdown deadline exceeded waiting for goroutines")
	}

	// The loop goroutine has returned: this goroutine is the queue's sole
	// consumer again, so the orderly stop sequence (deactivate, flush,
	// drain remaining acks) is safe to run here.
	if app.loop != nil {
		if err := app.loop.Stop(ctx); err != nil {
			app.logger.Error("executor stop", ports.Field{Key: "error", Value: err.Error()})
		}
	}

	if app.metricsSink != nil {
		if err := app.metricsSink.Close(); err != nil {
			app.logger.Error("failed to close metrics sink", ports.Field{Key: "error", Value: err.Error()})
		}
	}

	if app.remoteBus != nil {
		if err := app.remoteBus.Close(); err != nil {
			app.logger.Error("failed to close redis bus", ports.Field{Key: "error", Value: err.Error()})
		}
	}

	return nil
}

// startHealthServer starts the health/readiness/liveness HTTP server,
// grounded on the teacher's /health, /ready, /live handler set.
func (app *Application) startHealthServer() {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", app.healthHandler)
	mux.HandleFunc("/healthz", app.healthHandler)
	mux.HandleFunc("/ready", app.readyHandler)
	mux.HandleFunc("/live", app.liveHandler)

	app.healthSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", app.config.Health.Port),
		Handler:      mux,
		ReadTimeout:  app.config.Health.ReadTimeout,
		WriteTimeout: app.config.Health.WriteTimeout,
	}

	app.wg.Add(1)
	go app.runHealthServer()
}

func (app *Application) runHealthServer() {
	defer app.wg.Done()
	app.logger.Info("starting health server", ports.Field{Key: "port", Value: app.config.Health.Port})

	err := app.healthSrv.ListenAndServe()
	if err == nil || err == http.ErrServerClosed {
		return
	}
	app.logger.Error("health server error", ports.Field{Key: "error", Value: err.Error()})
}

func (app *Application) healthHandler(w http.ResponseWriter, _ *http.Request) {
	healthy := app.loop != nil
	if healthy {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"status":"healthy","pending":%d,"timestamp":"%s"}`,
			app.loop.PendingSize(), time.Now().Format(time.RFC3339))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = fmt.Fprintf(w, `{"status":"unhealthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

func (app *Application) readyHandler(w http.ResponseWriter, _ *http.Request) {
	if app.loop != nil {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"status":"ready","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = fmt.Fprintf(w, `{"status":"not_ready","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

func (app *Application) liveHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, `{"status":"alive","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}
