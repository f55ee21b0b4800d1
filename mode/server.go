package mode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-segment/api"
	"github.com/khaledhikmat/vs-segment/model"
	"github.com/khaledhikmat/vs-segment/pipeline"
	"github.com/khaledhikmat/vs-segment/service/lgr"
)

const serverStatsPeriod = 60 * time.Second

// Server runs the HTTP API until the context is cancelled. Request stats,
// errors and janitor sweeps are funneled through this loop so they are
// persisted from one goroutine.
func Server(canxCtx context.Context, svcs pipeline.ServicesFactory, _ Args) error {
	var janitorStream <-chan model.JanitorStats
	if svcs.JanitorSvc != nil {
		stream, err := svcs.JanitorSvc.Subscribe()
		if err != nil {
			return err
		}
		janitorStream = stream
	}

	// Streams are never closed: handlers still in flight after the shutdown
	// deadline may send on them.
	errorStream := make(chan interface{})
	statsStream := make(chan interface{})

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", svcs.CfgSvc.GetHTTPPort()),
		Handler:           api.NewServer(svcs, statsStream, errorStream).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	listenErr := make(chan error, 1)
	go func() {
		lgr.Logger.Info(
			"http server listening",
			slog.String("address", httpSrv.Addr),
		)
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	var exitErr error
	startTime := time.Now()
	serverStats := model.ServerStats{}
	ticker := time.NewTicker(serverStatsPeriod)
	defer ticker.Stop()

	// Wait for cancellation, listener failure, stats or errors
	for {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info(
				"server context cancelled",
			)
			goto resume

		case err := <-listenErr:
			exitErr = xerrors.Errorf("http server: %w", err)
			procError(svcs.DataSvc, model.GenError("server",
				err,
				map[string]interface{}{
					"address": httpSrv.Addr,
				},
				"http server stopped listening"))
			goto resume

		case s, ok := <-janitorStream:
			if !ok {
				janitorStream = nil
				continue
			}
			procStats(svcs.DataSvc, s)

		case <-ticker.C:
			procStats(svcs.DataSvc, snapshot(serverStats, startTime))

		case s := <-statsStream:
			if rs, ok := s.(model.RequestStats); ok {
				accumulate(&serverStats, rs)
			}
			procStats(svcs.DataSvc, s)

		case e := <-errorStream:
			procError(svcs.DataSvc, e)
		}
	}

	// Drain the streams while in-flight requests finish, bounded by the
	// shutdown period
resume:
	lgr.Logger.Info(
		"server is waiting for in-flight requests to finish",
	)

	period := time.Duration(svcs.CfgSvc.GetModeMaxShutdownTime()) * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), period)
	defer shutdownCancel()

	shutdownDone := make(chan error, 1)
	go func() {
		shutdownDone <- httpSrv.Shutdown(shutdownCtx)
	}()

	if svcs.JanitorSvc != nil {
		if err := svcs.JanitorSvc.Unsubscribe(); err != nil {
			lgr.Logger.Debug(
				"janitor was not subscribed",
				slog.Any("error", lgr.Err(err)),
			)
		}
	}

	timer := time.NewTimer(period)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			lgr.Logger.Info(
				"server shutdown waiting period expired. Exiting now",
				slog.Duration("period", period),
			)
			procStats(svcs.DataSvc, snapshot(serverStats, startTime))
			return exitErr

		case err := <-shutdownDone:
			if err != nil {
				lgr.Logger.Error(
					"http server shutdown incomplete",
					slog.Any("error", lgr.Err(err)),
				)
			}
			lgr.Logger.Info(
				"http server stopped",
			)
			procStats(svcs.DataSvc, snapshot(serverStats, startTime))
			return exitErr

		case s := <-statsStream:
			if rs, ok := s.(model.RequestStats); ok {
				accumulate(&serverStats, rs)
			}
			procStats(svcs.DataSvc, s)

		case e := <-errorStream:
			procError(svcs.DataSvc, e)
		}
	}
}

func accumulate(stats *model.ServerStats, rs model.RequestStats) {
	switch rs.Kind {
	case model.RequestKindImage:
		stats.TotalImageRequests++
	case model.RequestKindVideo:
		stats.TotalVideoRequests++
	}
	stats.TotalFrames += int64(rs.Frames)
	stats.TotalErrors += int64(rs.Errors)
}

func snapshot(stats model.ServerStats, startTime time.Time) model.ServerStats {
	stats.Uptime = int64(time.Since(startTime).Seconds())
	stats.Timestamp = time.Now().Unix()

	if stats.Uptime > 0 {
		uptimeInMinutes := float64(stats.Uptime) / 60.0
		stats.AvgRequestsPerMin = float64(stats.TotalImageRequests+stats.TotalVideoRequests) / uptimeInMinutes
	} else {
		stats.AvgRequestsPerMin = 0.0 // Avoid division by zero
	}
	return stats
}
