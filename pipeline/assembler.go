package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/khaledhikmat/vs-segment/model"
	"github.com/khaledhikmat/vs-segment/service/lgr"
	"github.com/khaledhikmat/vs-segment/service/media"
	"github.com/khaledhikmat/vs-segment/service/metrics"
	"github.com/khaledhikmat/vs-segment/service/tracing"
)

// TransformFrames runs every staged frame of dir through the transformer in
// index order and writes video_result%d.png next to it.
func TransformFrames(ctx context.Context, mediaSvc media.IService, t *Transformer, dir string, frames int) error {
	ctx, span := tracing.Tracer().Start(ctx, "transform_frames")
	defer span.End()

	for i := 0; i < frames; i++ {
		if err := ctx.Err(); err != nil {
			lgr.Logger.Info(
				"frame transformer context cancelled",
				slog.Int("frame", i),
			)
			return err
		}

		img, err := mediaSvc.ReadImage(FramePath(dir, i))
		if err != nil {
			return model.NewError(model.FileIOError, "read staged frame", err)
		}

		out, err := t.Transform(ctx, img)
		if err != nil {
			return err
		}

		if err := mediaSvc.WriteImage(ResultPath(dir, i), out); err != nil {
			return model.NewError(model.FileIOError, "write result frame", err)
		}
	}
	return nil
}

// Assemble encodes video_result0..n-1 of dir into outPath. Every frame is
// resized to the output size first.
func Assemble(ctx context.Context, mediaSvc media.IService, dir string, frames int, outPath string, format VideoSpec) error {
	ctx, span := tracing.Tracer().Start(ctx, "assemble")
	defer span.End()

	lgr.Logger.Debug(
		"assembling output video",
		slog.String("output", outPath),
		slog.Int("frames", frames),
		slog.String("codec", format.Codec),
		slog.Float64("fps", format.FPS),
	)

	begin := time.Now()
	sink, err := mediaSvc.CreateVideo(outPath, format.Codec, format.FPS, format.Width, format.Height)
	if err != nil {
		return model.NewError(model.FileIOError, "create output video", err)
	}

	for i := 0; i < frames; i++ {
		if err := ctx.Err(); err != nil {
			sink.Close()
			return err
		}

		img, err := mediaSvc.ReadImage(ResultPath(dir, i))
		if err != nil {
			sink.Close()
			return model.NewError(model.FileIOError, "read result frame", err)
		}

		if err := sink.Write(media.Fit(img, format.Width, format.Height)); err != nil {
			sink.Close()
			return model.NewError(model.FileIOError, "write output frame", err)
		}
	}

	if err := sink.Close(); err != nil {
		return model.NewError(model.FileIOError, "close output video", err)
	}

	metrics.StageDuration.WithLabelValues("assemble").Observe(time.Since(begin).Seconds())
	return nil
}
