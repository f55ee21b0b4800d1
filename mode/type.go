package mode

import (
	"context"
	"log/slog"

	"github.com/khaledhikmat/vs-segment/model"
	"github.com/khaledhikmat/vs-segment/pipeline"
	"github.com/khaledhikmat/vs-segment/service/data"
	"github.com/khaledhikmat/vs-segment/service/lgr"
)

// Args are the command line values a mode may need.
type Args struct {
	Input  string
	Output string
}

type Processor func(canxCtx context.Context, svcs pipeline.ServicesFactory, args Args) error

func procStats(datasvc data.IService, stats interface{}) {
	switch stats := stats.(type) {
	case model.RequestStats:
		procRequestStats(datasvc, stats)
	case model.JanitorStats:
		procJanitorStats(datasvc, stats)
	case model.ServerStats:
		procServerStats(datasvc, stats)
	default:
		lgr.Logger.Error(
			"unknown stats type",
			slog.Any("stats", stats),
		)
	}
}

func procRequestStats(datasvc data.IService, stats model.RequestStats) {
	err := datasvc.NewRequestStats(stats)
	if err != nil {
		lgr.Logger.Error(
			"failed to store request stats",
			slog.Any("stats", stats),
			slog.Any("error", err),
		)
	}
}

func procJanitorStats(datasvc data.IService, stats model.JanitorStats) {
	err := datasvc.NewJanitorStats(stats)
	if err != nil {
		lgr.Logger.Error(
			"failed to store janitor stats",
			slog.Any("stats", stats),
			slog.Any("error", err),
		)
	}
}

func procServerStats(datasvc data.IService, stats model.ServerStats) {
	err := datasvc.NewServerStats(stats)
	if err != nil {
		lgr.Logger.Error(
			"failed to store server stats",
			slog.Any("stats", stats),
			slog.Any("error", err),
		)
	}
}

func procError(datasvc data.IService, err interface{}) {
	errTemp := datasvc.NewError(err)
	if errTemp != nil {
		lgr.Logger.Error(
			"failed to store error",
			slog.Any("error", errTemp),
		)
	}
}
