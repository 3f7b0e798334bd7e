package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/worker"

	"github.com/edvin/peacock/internal/activity"
	"github.com/edvin/peacock/internal/config"
	"github.com/edvin/peacock/internal/db"
	"github.com/edvin/peacock/internal/eventmanager"
	"github.com/edvin/peacock/internal/logging"
	"github.com/edvin/peacock/internal/logsink"
	"github.com/edvin/peacock/internal/metrics"
	"github.com/edvin/peacock/internal/provision"
	"github.com/edvin/peacock/internal/retry"
	"github.com/edvin/peacock/internal/store"
	"github.com/edvin/peacock/internal/token"
	"github.com/edvin/peacock/internal/tracing"
	"github.com/edvin/peacock/internal/workflow"
)

const taskQueue = "peacock-tasks"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("worker"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Options{
		Exporter:     cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		ServiceName:  cfg.ServiceName,
		Environment:  cfg.Environment,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up tracing")
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to flush traces")
		}
	}()

	corePool, err := db.NewCorePool(ctx, cfg.CoreDatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to core database")
	}
	defer corePool.Close()
	metrics.RegisterPgxPoolMetrics(prometheus.DefaultRegisterer, "core", corePool)

	tlsConfig, err := cfg.TemporalTLS()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure temporal TLS")
	}
	dialOpts := temporalclient.Options{HostPort: cfg.TemporalAddress}
	if tlsConfig != nil {
		dialOpts.ConnectionOptions = temporalclient.ConnectionOptions{TLS: tlsConfig}
		logger.Info().Msg("temporal TLS enabled")
	}
	tc, err := temporalclient.Dial(dialOpts)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to temporal")
	}
	defer tc.Close()

	policy, err := provision.ParseDeactivationFailurePolicy(cfg.DeactivationFailurePolicy)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid deactivation failure policy")
	}

	instances := store.NewPostgres(corePool)
	runner := provision.NewRunner(provision.Deps{
		Store:  instances,
		Logs:   logsink.Multi{logsink.NewZerolog(logger), logsink.NewPostgres(corePool)},
		Tokens: token.NewPostgres(corePool),
		Logger: logger,
	})
	events := eventmanager.NewClient(cfg.EventManagerURL, cfg.EventManagerElement)

	w := worker.New(tc, taskQueue, worker.Options{
		Interceptors: []interceptor.WorkerInterceptor{&workflow.ActivityErrorInterceptor{}},
	})

	// Register activities
	orchestratorActivities := activity.NewOrchestrator(tc, taskQueue)
	w.RegisterActivity(orchestratorActivities)

	provisionActivities := activity.NewProvision(
		provision.NewDriver(runner),
		provision.NewWaiter(runner, retry.Policy{Timeout: cfg.WaiterTimeout, Interval: cfg.WaiterInterval}),
		provision.NewEvaluator(runner, events, orchestratorActivities, policy),
		provision.NewRebuilder(runner, events),
		instances,
	)
	w.RegisterActivity(provisionActivities)

	callbackActivities := activity.NewCallback()
	w.RegisterActivity(callbackActivities)

	// Register workflows
	w.RegisterWorkflow(workflow.ProvisionOrchestratorWorkflow)
	w.RegisterWorkflow(workflow.PeacockProvisionWorkflow)
	w.RegisterWorkflow(workflow.RebuildProvisionWorkflow)
	w.RegisterWorkflow(workflow.SweepStalledProvisionsWorkflow)

	if cfg.MetricsAddr != "" {
		metricsSrv := metrics.NewServer(cfg.MetricsAddr, func(ctx context.Context) error {
			if err := corePool.Ping(ctx); err != nil {
				return fmt.Errorf("core db: %w", err)
			}
			if _, err := tc.CheckHealth(ctx, &temporalclient.CheckHealthRequest{}); err != nil {
				return fmt.Errorf("temporal: %w", err)
			}
			return nil
		})
		go func() {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("starting metrics server")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	go func() {
		logger.Info().Str("taskQueue", taskQueue).Msg("starting temporal worker")
		if err := w.Run(worker.InterruptCh()); err != nil {
			logger.Fatal().Err(err).Msg("worker failed")
		}
	}()

	// Errors for already-existing schedules are ignored so that re-deploys
	// do not fail.
	registerCronSchedules(ctx, tc, taskQueue, cfg, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down worker")
	cancel()
}

type cronSchedule struct {
	id       string
	cron     string
	workflow interface{}
	args     []interface{}
}

func registerCronSchedules(ctx context.Context, tc temporalclient.Client, taskQueue string, cfg *config.Config, logger zerolog.Logger) {
	schedules := []cronSchedule{
		{
			id:       "peacock-stalled-sweep",
			cron:     cfg.SweepSchedule,
			workflow: workflow.SweepStalledProvisionsWorkflow,
			args:     []interface{}{cfg.SweepStalledAfter},
		},
	}

	scheduleClient := tc.ScheduleClient()

	for _, s := range schedules {
		_, err := scheduleClient.Create(ctx, temporalclient.ScheduleOptions{
			ID: s.id,
			Spec: temporalclient.ScheduleSpec{
				CronExpressions: []string{s.cron},
			},
			Action: &temporalclient.ScheduleWorkflowAction{
				ID:        s.id,
				Workflow:  s.workflow,
				Args:      s.args,
				TaskQueue: taskQueue,
			},
		})
		if err != nil {
			if strings.Contains(err.Error(), "already exists") || strings.Contains(err.Error(), "AlreadyExists") || strings.Contains(err.Error(), "already registered") {
				logger.Info().Str("id", s.id).Msg("cron schedule already exists, skipping")
			} else {
				logger.Fatal().Err(err).Str("id", s.id).Msg("failed to create cron schedule")
			}
		} else {
			logger.Info().Str("id", s.id).Str("cron", s.cron).Msg("created cron schedule")
		}
	}
}
