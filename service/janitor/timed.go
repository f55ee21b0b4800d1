package janitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/khaledhikmat/vs-segment/model"
	"github.com/khaledhikmat/vs-segment/service/config"
	"github.com/khaledhikmat/vs-segment/service/lgr"
	"github.com/khaledhikmat/vs-segment/service/metrics"
	"github.com/khaledhikmat/vs-segment/service/storage"
	"golang.org/x/xerrors"
)

type timedService struct {
	mu           sync.Mutex
	CanxCtx      context.Context
	SubsCtx      context.Context
	SubsCancel   context.CancelFunc
	StatsChannel chan model.JanitorStats
	CfgSvc       config.IService
	StorageSvc   storage.IService

	wg        sync.WaitGroup
	startTime time.Time
	stats     model.JanitorStats
}

// NewTimed sweeps expired workspaces every janitor interval once subscribed and
// delivers the running totals on the subscribed channel after each sweep.
func NewTimed(canxCtx context.Context, cfgSvc config.IService, storageSvc storage.IService) IService {
	return &timedService{
		CanxCtx:    canxCtx,
		CfgSvc:     cfgSvc,
		StorageSvc: storageSvc,
		startTime:  time.Now(),
	}
}

func (svc *timedService) Sweep(now time.Time) (int, error) {
	workspaces, err := svc.StorageSvc.Workspaces()
	if err != nil {
		return 0, err
	}

	cutoff := now.Add(-svc.CfgSvc.GetWorkspaceTTL())
	removed := 0
	var firstErr error
	for _, ws := range workspaces {
		if !ws.ModTime.Before(cutoff) {
			continue
		}

		if err := svc.StorageSvc.RemoveWorkspace(ws.Workspace.ID); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		removed++
		lgr.Logger.Debug(
			"janitor removed workspace",
			slog.String("workspace", ws.Workspace.ID),
			slog.Time("modTime", ws.ModTime),
		)
	}

	metrics.WorkspacesRemovedTotal.Add(float64(removed))
	return removed, firstErr
}

func (svc *timedService) Subscribe() (<-chan model.JanitorStats, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.SubsCtx != nil {
		lgr.Logger.Error(
			"janitor timed service. Already subscribed. Unsubscribe first",
		)
		return nil, xerrors.New("janitor timed service. child context is not nil. Unsubscribe first")
	}

	// Regardless of how many times we subscribe/unsubscribe, there is only one
	// stats channel
	if svc.StatsChannel == nil {
		svc.StatsChannel = make(chan model.JanitorStats)
	}

	subsCtx, subsCancel := context.WithCancel(svc.CanxCtx)
	svc.SubsCtx = subsCtx
	svc.SubsCancel = subsCancel

	svc.wg.Add(1)
	go func(out chan<- model.JanitorStats) {
		defer svc.wg.Done()
		svc.run(subsCtx, out)
	}(svc.StatsChannel)

	return svc.StatsChannel, nil
}

func (svc *timedService) run(subsCtx context.Context, out chan<- model.JanitorStats) {
	interval := svc.CfgSvc.GetJanitorInterval()

	for {
		select {
		case <-subsCtx.Done():
			lgr.Logger.Info(
				"janitor timed service context cancelled",
			)
			return

		case <-time.After(interval):
			removed, err := svc.Sweep(time.Now())

			svc.mu.Lock()
			svc.stats.Sweeps++
			svc.stats.Removed += removed
			if err != nil {
				svc.stats.Errors++
				lgr.Logger.Error(
					"janitor sweep failed",
					slog.Any("error", lgr.Err(err)),
				)
			}
			svc.stats.Uptime = int64(time.Since(svc.startTime).Seconds())
			stats := svc.stats
			svc.mu.Unlock()

			select {
			case <-subsCtx.Done():
				return
			case out <- stats:
			}
		}
	}
}

func (svc *timedService) Unsubscribe() error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.SubsCtx == nil {
		return xerrors.New("Not subscribed yet. Subscribe first")
	}

	svc.cleanup()
	return nil
}

// Finalize stops sweeping and closes the stats channel.
func (svc *timedService) Finalize() {
	svc.mu.Lock()
	svc.cleanup()
	svc.mu.Unlock()

	svc.wg.Wait()

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.StatsChannel != nil {
		close(svc.StatsChannel)
		svc.StatsChannel = nil
	}
}

func (svc *timedService) cleanup() {
	if svc.SubsCancel != nil {
		svc.SubsCancel()
		svc.SubsCtx = nil
		svc.SubsCancel = nil
	}
}
