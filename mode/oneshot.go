package mode

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-segment/model"
	"github.com/khaledhikmat/vs-segment/pipeline"
	"github.com/khaledhikmat/vs-segment/service/lgr"
)

const fileRoute = "/get_file/"

// Image segments a single image file from disk and optionally copies the
// colored result to args.Output.
func Image(canxCtx context.Context, svcs pipeline.ServicesFactory, args Args) error {
	if args.Input == "" {
		return xerrors.New("image mode needs an input file")
	}

	data, err := os.ReadFile(args.Input)
	if err != nil {
		return model.NewError(model.FileIOError, "read input", err)
	}

	res, stats, err := pipeline.ProcessImage(canxCtx, svcs, pipeline.Upload{
		Filename: filepath.Base(args.Input),
		Data:     data,
	})
	if err != nil {
		stats.Errors++
		procStats(svcs.DataSvc, stats)
		procError(svcs.DataSvc, model.GenError("image_mode",
			err,
			map[string]interface{}{
				"input": args.Input,
			},
			"error segmenting image"))
		return err
	}
	procStats(svcs.DataSvc, stats)

	lgr.Logger.Info(
		"image segmented",
		slog.String("request", res.RequestID),
		slog.String("result", res.Result),
		slog.Bool("cached", res.Cached),
		slog.Float64("durationSecs", stats.DurationSecs),
	)

	return export(svcs, res.Result, args.Output)
}

// Video segments a video file from disk and optionally copies the assembled
// result to args.Output.
func Video(canxCtx context.Context, svcs pipeline.ServicesFactory, args Args) error {
	if args.Input == "" {
		return xerrors.New("video mode needs an input file")
	}

	f, err := os.Open(args.Input)
	if err != nil {
		return model.NewError(model.FileIOError, "open input", err)
	}
	defer f.Close()

	res, stats, err := pipeline.ProcessVideo(canxCtx, svcs, filepath.Base(args.Input), f)
	if err != nil {
		stats.Errors++
		procStats(svcs.DataSvc, stats)
		procError(svcs.DataSvc, model.GenError("video_mode",
			err,
			map[string]interface{}{
				"input": args.Input,
			},
			"error segmenting video"))
		return err
	}
	procStats(svcs.DataSvc, stats)

	lgr.Logger.Info(
		"video segmented",
		slog.String("request", res.RequestID),
		slog.String("result", res.Result),
		slog.Int("frames", res.Frames),
		slog.Float64("durationSecs", stats.DurationSecs),
	)

	return export(svcs, res.Result, args.Output)
}

// export copies the file behind a result route to dest.
func export(svcs pipeline.ServicesFactory, route, dest string) error {
	if dest == "" {
		return nil
	}

	src, err := svcs.StorageSvc.Resolve(strings.TrimPrefix(route, fileRoute))
	if err != nil {
		return model.NewError(model.FileIOError, "resolve result", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return model.NewError(model.FileIOError, "export result", err)
	}
	defer in.Close()

	if dir := filepath.Dir(dest); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return model.NewError(model.FileIOError, "export result", err)
		}
	}

	out, err := os.Create(dest)
	if err != nil {
		return model.NewError(model.FileIOError, "export result", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return model.NewError(model.FileIOError, "export result", err)
	}
	if err := out.Close(); err != nil {
		return model.NewError(model.FileIOError, "export result", err)
	}

	lgr.Logger.Info(
		"result exported",
		slog.String("output", dest),
	)
	return nil
}
