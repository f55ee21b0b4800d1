package pipeline

import (
	"bytes"
	"context"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"go.opentelemetry.io/otel/attribute"

	"github.com/khaledhikmat/vs-segment/model"
	"github.com/khaledhikmat/vs-segment/service/cache"
	"github.com/khaledhikmat/vs-segment/service/lgr"
	"github.com/khaledhikmat/vs-segment/service/metrics"
	"github.com/khaledhikmat/vs-segment/service/tracing"
)

const (
	imageOutputName = "output.png"
	defaultExt      = "bin"
)

// Ext is the extension an upload is staged with: the part after the last dot
// of its base name, restricted to short alphanumerics.
func Ext(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	i := strings.LastIndex(base, ".")
	if i < 0 || i == len(base)-1 {
		return defaultExt
	}

	ext := strings.ToLower(base[i+1:])
	if len(ext) > 8 {
		return defaultExt
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return defaultExt
		}
	}
	return ext
}

func DecodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, model.Errorf(model.DecodeError, "decode image", "empty upload")
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, model.NewError(model.DecodeError, "decode image", err)
	}
	return img, nil
}

// ProcessImage stages the upload in a fresh workspace, segments it and writes
// output.png. Identical uploads are answered from the result cache while the
// earlier workspace still exists.
func ProcessImage(ctx context.Context, svcs ServicesFactory, upload Upload) (_ model.ImageResult, stats model.RequestStats, _ error) {
	ctx, span := tracing.Tracer().Start(ctx, "process_image")
	defer span.End()

	begin := time.Now()
	stats.Kind = model.RequestKindImage
	defer func() {
		stats.DurationSecs = time.Since(begin).Seconds()
		stats.Timestamp = time.Now().Unix()
	}()

	cfg := svcs.CfgSvc
	key := cache.Key(upload.Data, cfg.GetImageHeight(), cfg.GetImageWidth(), cfg.GetModelPath())
	if cached, ok := lookupImage(ctx, svcs, key); ok {
		stats.ID = cached.RequestID
		stats.Cached = true
		stats.Frames = 1
		span.SetAttributes(attribute.Bool("cached", true))
		return cached, stats, nil
	}

	ws, err := svcs.StorageSvc.NewWorkspace()
	if err != nil {
		return model.ImageResult{}, stats, err
	}
	stats.ID = ws.ID
	span.SetAttributes(attribute.String("request_id", ws.ID))

	originalName := "tmp." + Ext(upload.Filename)
	if err := os.WriteFile(filepath.Join(ws.Dir, originalName), upload.Data, 0644); err != nil {
		return model.ImageResult{}, stats, model.NewError(model.FileIOError, "stage upload", err)
	}

	img, err := DecodeImage(upload.Data)
	if err != nil {
		return model.ImageResult{}, stats, err
	}

	t, err := NewTransformer(svcs.InferenceSvc, cfg.GetImageHeight(), cfg.GetImageWidth())
	if err != nil {
		return model.ImageResult{}, stats, err
	}

	out, err := t.Transform(ctx, img)
	if err != nil {
		return model.ImageResult{}, stats, err
	}

	outPath := filepath.Join(ws.Dir, imageOutputName)
	if err := svcs.MediaSvc.WriteImage(outPath, out); err != nil {
		return model.ImageResult{}, stats, model.NewError(model.FileIOError, "write result", err)
	}
	stats.Frames = 1

	result := model.ImageResult{
		RequestID:     ws.ID,
		OriginalImage: svcs.StorageSvc.URL(ws, originalName),
		Result:        svcs.StorageSvc.URL(ws, imageOutputName),
	}

	stored, err := svcs.StorageSvc.StoreFile(ctx, outPath)
	if err != nil {
		stats.Errors++
		lgr.Logger.Error(
			"result could not be mirrored",
			slog.String("request", ws.ID),
			slog.Any("error", lgr.Err(err)),
		)
	}
	result.StoredResult = stored

	if svcs.CacheSvc != nil {
		if err := svcs.CacheSvc.Put(ctx, key, result, cfg.GetWorkspaceTTL()); err != nil {
			stats.Errors++
			lgr.Logger.Warn(
				"result could not be cached",
				slog.String("request", ws.ID),
				slog.Any("error", lgr.Err(err)),
			)
		}
	}

	return result, stats, nil
}

func lookupImage(ctx context.Context, svcs ServicesFactory, key string) (model.ImageResult, bool) {
	if svcs.CacheSvc == nil {
		return model.ImageResult{}, false
	}

	cached, ok, err := svcs.CacheSvc.Get(ctx, key)
	if err != nil {
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		lgr.Logger.Warn(
			"result cache lookup failed",
			slog.Any("error", lgr.Err(err)),
		)
		return model.ImageResult{}, false
	}

	if !ok {
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return model.ImageResult{}, false
	}

	// The janitor may have removed the earlier workspace
	if _, err := svcs.StorageSvc.Workspace(cached.RequestID); err != nil {
		metrics.CacheLookupsTotal.WithLabelValues("stale").Inc()
		return model.ImageResult{}, false
	}

	metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
	cached.Cached = true
	return cached, true
}
