package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/khaledhikmat/vs-segment/model"
	"github.com/khaledhikmat/vs-segment/service/lgr"
	"github.com/khaledhikmat/vs-segment/service/media"
	"github.com/khaledhikmat/vs-segment/service/metrics"
	"github.com/khaledhikmat/vs-segment/service/tracing"
)

func FramePath(dir string, i int) string {
	return filepath.Join(dir, fmt.Sprintf("frame%d.jpg", i))
}

func ResultPath(dir string, i int) string {
	return filepath.Join(dir, fmt.Sprintf("video_result%d.png", i))
}

// Split decodes up to maxFrames frames of the video into frame%d.jpg files in
// dir and returns how many were staged. Frame 0 is the first decoded frame.
func Split(ctx context.Context, mediaSvc media.IService, videoPath, dir string, maxFrames int) (int, error) {
	ctx, span := tracing.Tracer().Start(ctx, "split")
	defer span.End()

	src, err := mediaSvc.OpenVideo(videoPath)
	if err != nil {
		return 0, model.NewError(model.DecodeError, "open video", err)
	}
	defer src.Close()

	begin := time.Now()
	frames := 0

	defer func() {
		metrics.FramesStagedTotal.Add(float64(frames))
		metrics.StageDuration.WithLabelValues("split").Observe(time.Since(begin).Seconds())
	}()

	for frames < maxFrames {
		if err := ctx.Err(); err != nil {
			lgr.Logger.Info(
				"splitter context cancelled",
				slog.Int("frames", frames),
			)
			return frames, err
		}

		img, err := src.Read()
		if errors.Is(err, media.EOF) {
			break
		}
		if err != nil {
			return frames, model.NewError(model.DecodeError, "read frame", err)
		}

		if err := mediaSvc.WriteImage(FramePath(dir, frames), img); err != nil {
			return frames, model.NewError(model.FileIOError, "stage frame", err)
		}
		frames++
	}

	if frames == 0 {
		return 0, model.Errorf(model.DecodeError, "split", "video %s has no decodable frames", filepath.Base(videoPath))
	}

	if frames == maxFrames {
		lgr.Logger.Debug(
			"video truncated at frame cap",
			slog.Int("maxFrames", maxFrames),
		)
	}
	return frames, nil
}
