package system

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/julianstephens/daystreak/internal/alarm"
	"github.com/julianstephens/daystreak/internal/cli"
	"github.com/julianstephens/daystreak/internal/logger"
	"github.com/julianstephens/daystreak/internal/metrics"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/reminder"
)

type DaemonCmd struct {
	MetricsAddr string `help:"Serve Prometheus metrics on this address (e.g. :9464). Overrides config."`
}

// armer is the part of the scheduler the goal follower drives.
type armer interface {
	ArmAll(ctx context.Context) error
	DisarmAll(ctx context.Context) error
}

func (c *DaemonCmd) Run(ctx *cli.Context) error {
	base, stop := signal.NotifyContext(ctx.Base, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	rec := metrics.NewPrometheusRecorder(reg)

	var sched *reminder.Scheduler
	facility, err := alarm.NewGocronFacility(func(slotID string) {
		sched.OnFire(base, slotID)
	}, ctx.Clock)
	if err != nil {
		return fmt.Errorf("failed to create alarm facility: %w", err)
	}
	sched = reminder.New(ctx.Goals, facility, ctx.Notifier,
		reminder.WithClock(ctx.Clock),
		reminder.WithMetrics(rec),
		reminder.WithMessages(ctx.Messages),
	)
	facility.Start()
	defer func() {
		if err := facility.Shutdown(); err != nil {
			logger.Warn("alarm facility shutdown failed", "error", err)
		}
	}()

	snapshots, err := ctx.Goals.Observe(base)
	if err != nil {
		return err
	}

	addr := c.MetricsAddr
	if addr == "" && ctx.Config != nil {
		addr = ctx.Config.MetricsAddr
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)
	if addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           metricsMux(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		wg.Go(func() {
			logger.Info("serving metrics", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- fmt.Errorf("metrics server: %w", err)
				stop()
			}
		})
		wg.Go(func() {
			<-base.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		})
	}

	logger.Info("daemon started", "store", ctx.Store.GetConfigPath())
	ctx.Printf("daystreak daemon running (store: %s). Press Ctrl+C to stop.\n", ctx.Store.GetConfigPath())

	wg.Go(func() { followGoal(base, snapshots, sched) })
	wg.Wait()

	logger.Info("daemon stopped")
	select {
	case err := <-serveErr:
		return err
	default:
		return nil
	}
}

func metricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(reg))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// followGoal arms every slot while a goal exists and disarms them when it is
// gone. Only presence changes act; marking today leaves the schedule alone.
func followGoal(ctx context.Context, snapshots <-chan *models.Goal, s armer) {
	var present, seen bool
	for goal := range snapshots {
		has := goal != nil
		if seen && has == present {
			continue
		}
		seen, present = true, has

		if has {
			logger.Info("goal present, arming reminders", "goal", goal.Name)
			if err := s.ArmAll(ctx); err != nil {
				logger.Warn("some reminders could not be armed", "error", err)
			}
			continue
		}
		logger.Info("no goal, disarming reminders")
		if err := s.DisarmAll(ctx); err != nil {
			logger.Warn("failed to disarm reminders", "error", err)
		}
	}
}
