package inference

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/khaledhikmat/vs-segment/service/config"
	"github.com/khaledhikmat/vs-segment/service/lgr"
	"gocv.io/x/gocv"
	"golang.org/x/xerrors"
)

func init() {
	RegisterBackend(config.OpenCVBackend, NewOpenCV)
}

type opencvService struct {
	mu  sync.Mutex
	net gocv.Net
}

// NewOpenCV loads the exported network through the OpenCV DNN module.
func NewOpenCV(cfgSvc config.IService) (IService, error) {
	modelPath := cfgSvc.GetModelPath()
	if _, err := os.Stat(modelPath); err != nil {
		return nil, xerrors.Errorf("opencv scorer: model %s: %w", modelPath, err)
	}

	lgr.Logger.Info("opencv scorer loading...",
		slog.String("model", modelPath),
		slog.String("openCV", gocv.Version()),
	)

	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		return nil, xerrors.Errorf("opencv scorer: error reading model %s", modelPath)
	}

	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, xerrors.Errorf("opencv scorer: error setting backend: %w", err)
	}

	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, xerrors.Errorf("opencv scorer: error setting target: %w", err)
	}

	return &opencvService{net: net}, nil
}

func (svc *opencvService) Name() string {
	return config.OpenCVBackend
}

func (svc *opencvService) Score(ctx context.Context, input Tensor) (Tensor, error) {
	if err := ctx.Err(); err != nil {
		return Tensor{}, err
	}

	if !input.Valid() {
		return Tensor{}, xerrors.Errorf("opencv scorer: malformed input tensor %v", input.Shape)
	}

	sizes := make([]int, len(input.Shape))
	for i, d := range input.Shape {
		sizes[i] = int(d)
	}

	blob := gocv.NewMatWithSizes(sizes, gocv.MatTypeCV32F)
	defer blob.Close()

	data, err := blob.DataPtrFloat32()
	if err != nil {
		return Tensor{}, xerrors.Errorf("opencv scorer: input blob: %w", err)
	}
	copy(data, input.Data)

	// WARNING: a net is not thread-safe
	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.net.SetInput(blob, "")
	output := svc.net.Forward("")
	defer output.Close()

	if output.Empty() {
		return Tensor{}, xerrors.Errorf("opencv scorer: empty output")
	}

	dims := output.Size()
	shape := make([]int64, len(dims))
	for i, d := range dims {
		shape[i] = int64(d)
	}

	raw, err := output.DataPtrFloat32()
	if err != nil {
		return Tensor{}, xerrors.Errorf("opencv scorer: output blob: %w", err)
	}

	result := Tensor{Shape: shape, Data: make([]float32, len(raw))}
	copy(result.Data, raw)
	return result, nil
}

func (svc *opencvService) Close() {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.net.Close()
}
