package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/iliyamo/task-management-api/internal/config"
	"github.com/iliyamo/task-management-api/internal/handler"
	"github.com/iliyamo/task-management-api/internal/middleware"
	"github.com/iliyamo/task-management-api/internal/queue"
	"github.com/iliyamo/task-management-api/internal/router"
	"github.com/iliyamo/task-management-api/internal/scheduler"
	"github.com/iliyamo/task-management-api/internal/seed"
	"github.com/iliyamo/task-management-api/internal/service"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "taskapi",
		Short:         "Task management REST API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newSeedCmd(),
		newRecountCmd(),
		newWorkerCmd(),
	)
	return root
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.close()
			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	rdb := config.NewRedisClient()
	if rdb == nil {
		a.log.Warn("redis.unavailable")
	} else {
		defer rdb.Close()
	}

	qcfg := config.LoadQueueConfig()
	cacheCfg := config.LoadCacheConfig()
	gens := middleware.NewGenerations(cacheCfg, rdb, a.log)
	counter := service.NewCategoryCounter(a.store.Categories, a.log)
	deps := handler.Deps{
		Cfg:     a.cfg,
		Store:   a.store,
		Events:  service.NewPublisher(qcfg, a.log),
		Counter: counter,
		Log:     a.log,
	}
	e := router.New(deps, router.Options{
		Redis:     rdb,
		Cache:     cacheCfg,
		RateLimit: config.LoadRateLimitConfig(),
	})

	if qcfg.Enabled {
		p := &queue.Processor{LogPath: qcfg.ActivityLogPath, Recounter: counter, Cache: gens}
		go func() {
			if err := queue.StartTaskEventConsumer(ctx, qcfg, p, a.log); err != nil && !errors.Is(err, context.Canceled) {
				a.log.WithError(err).Error("queue.consumer.stopped")
			}
		}()
	}

	scfg := config.LoadSchedulerConfig()
	sched := scheduler.New(scfg, a.log)
	archiver := &scheduler.AutoArchiver{
		Tasks:      a.store.Tasks,
		Categories: a.store.Categories,
		Counter:    counter,
		Cache:      gens,
		Log:        a.log,
	}
	if ok, err := scheduler.ScheduleAutoArchive(sched, scfg, archiver); err != nil {
		return err
	} else if ok {
		a.log.WithField("interval", scfg.AutoArchiveInterval.String()).Info("scheduler.auto_archive.enabled")
	}
	sched.Start()
	defer sched.Stop()

	addr := ":" + a.cfg.Port
	errCh := make(chan error, 1)
	go func() {
		a.log.WithFields(log.Fields{"addr": addr, "env": a.cfg.Env}).Info("http.listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	a.log.Info("http.shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations (indexes for MongoDB)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			a.log.Info("migrate.done")
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	var destroy bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace the data with sample users, categories and tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			s := &seed.Seeder{Store: a.store, BcryptCost: a.cfg.BcryptCost, Log: a.log}
			if destroy {
				return s.Destroy(ctx)
			}
			_, err = s.Run(ctx)
			return err
		},
	}
	cmd.Flags().BoolVarP(&destroy, "destroy", "d", false, "only delete all data")
	return cmd
}

func newRecountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recount",
		Short: "Recompute the task count of every category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			n, err := service.NewCategoryCounter(a.store.Categories, a.log).RecountAll(ctx)
			if err != nil {
				return err
			}
			a.log.WithField("categories", n).Info("recount.done")
			return nil
		},
	}
}

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume task events without serving HTTP",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			rdb := config.NewRedisClient()
			if rdb != nil {
				defer rdb.Close()
			}

			qcfg := config.LoadQueueConfig()
			p := &queue.Processor{
				LogPath:   qcfg.ActivityLogPath,
				Recounter: service.NewCategoryCounter(a.store.Categories, a.log),
				Cache:     middleware.NewGenerations(config.LoadCacheConfig(), rdb, a.log),
			}
			err = queue.StartTaskEventConsumer(ctx, qcfg, p, a.log)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
