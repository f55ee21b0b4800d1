package pipeline

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/khaledhikmat/vs-segment/model"
	"github.com/khaledhikmat/vs-segment/service/lgr"
	"github.com/khaledhikmat/vs-segment/service/tracing"
)

const videoOutputName = "outputvideo.avi"

// ProcessVideo stages the upload, splits it into frames, segments every frame
// and assembles the colored frames into outputvideo.avi, all inside a fresh
// workspace. It blocks until the output video is complete.
func ProcessVideo(ctx context.Context, svcs ServicesFactory, filename string, r io.Reader) (_ model.VideoResult, stats model.RequestStats, _ error) {
	ctx, span := tracing.Tracer().Start(ctx, "process_video")
	defer span.End()

	begin := time.Now()
	stats.Kind = model.RequestKindVideo
	defer func() {
		stats.DurationSecs = time.Since(begin).Seconds()
		stats.Timestamp = time.Now().Unix()
	}()

	cfg := svcs.CfgSvc

	ws, err := svcs.StorageSvc.NewWorkspace()
	if err != nil {
		return model.VideoResult{}, stats, err
	}
	stats.ID = ws.ID
	span.SetAttributes(attribute.String("request_id", ws.ID))

	originalName := "video_temp." + Ext(filename)
	videoPath := filepath.Join(ws.Dir, originalName)
	if err := stage(videoPath, r); err != nil {
		return model.VideoResult{}, stats, err
	}

	frames, err := Split(ctx, svcs.MediaSvc, videoPath, ws.Dir, cfg.GetMaxVideoFrames())
	stats.Frames = frames
	if err != nil {
		return model.VideoResult{}, stats, err
	}

	lgr.Logger.Info(
		"video split",
		slog.String("request", ws.ID),
		slog.Int("frames", frames),
	)

	t, err := NewTransformer(svcs.InferenceSvc, cfg.GetImageHeight(), cfg.GetImageWidth())
	if err != nil {
		return model.VideoResult{}, stats, err
	}

	if err := TransformFrames(ctx, svcs.MediaSvc, t, ws.Dir, frames); err != nil {
		return model.VideoResult{}, stats, err
	}

	outPath := filepath.Join(ws.Dir, videoOutputName)
	if err := Assemble(ctx, svcs.MediaSvc, ws.Dir, frames, outPath, VideoSpecFrom(cfg)); err != nil {
		return model.VideoResult{}, stats, err
	}

	result := model.VideoResult{
		RequestID:     ws.ID,
		OriginalVideo: svcs.StorageSvc.URL(ws, originalName),
		Result:        svcs.StorageSvc.URL(ws, videoOutputName),
		Frames:        frames,
	}

	stored, err := svcs.StorageSvc.StoreFile(ctx, outPath)
	if err != nil {
		stats.Errors++
		lgr.Logger.Error(
			"output video could not be mirrored",
			slog.String("request", ws.ID),
			slog.Any("error", lgr.Err(err)),
		)
	}
	result.StoredResult = stored

	if svcs.WebhookSvc != nil {
		err := svcs.WebhookSvc.Post(ctx, map[string]interface{}{
			"request_id":    result.RequestID,
			"kind":          model.RequestKindVideo,
			"frames":        frames,
			"result":        result.Result,
			"stored_result": result.StoredResult,
			"durationSecs":  time.Since(begin).Seconds(),
		})
		if err != nil {
			stats.Errors++
			lgr.Logger.Warn(
				"completion webhook failed",
				slog.String("request", ws.ID),
				slog.Any("error", lgr.Err(err)),
			)
		}
	}

	return result, stats, nil
}

func stage(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return model.NewError(model.FileIOError, "stage upload", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return model.NewError(model.FileIOError, "stage upload", err)
	}

	if err := f.Close(); err != nil {
		return model.NewError(model.FileIOError, "stage upload", err)
	}
	return nil
}
