package inference

import (
	"context"
	"sync"

	"github.com/khaledhikmat/vs-segment/service/config"
	ort "github.com/yalue/onnxruntime_go"
	"golang.org/x/xerrors"
)

func init() {
	RegisterBackend(config.OnnxBackend, NewOnnx)
}

type onnxService struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	outputShape  []int64
}

// NewOnnx creates an ONNX Runtime session with pre-allocated input and output
// tensors sized for the configured resolution.
func NewOnnx(cfgSvc config.IService) (IService, error) {
	if path := cfgSvc.GetOnnxLibraryPath(); path != "" {
		ort.SetSharedLibraryPath(path)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return nil, xerrors.Errorf("failed to initialize ONNX environment: %w", err)
	}

	h, w := int64(cfgSvc.GetImageHeight()), int64(cfgSvc.GetImageWidth())
	info := cfgSvc.GetModelInfo()

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(info.InChannels), h, w))
	if err != nil {
		ort.DestroyEnvironment()
		return nil, xerrors.Errorf("failed to create input tensor: %w", err)
	}

	outputShape := []int64{1, int64(info.Classes), h, w}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(outputShape...))
	if err != nil {
		inputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, xerrors.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(cfgSvc.GetModelPath(),
		[]string{cfgSvc.GetOnnxInputName()}, []string{cfgSvc.GetOnnxOutputName()},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, xerrors.Errorf("failed to create ONNX session: %w", err)
	}

	return &onnxService{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		outputShape:  outputShape,
	}, nil
}

func (svc *onnxService) Name() string {
	return config.OnnxBackend
}

func (svc *onnxService) Score(ctx context.Context, input Tensor) (Tensor, error) {
	if err := ctx.Err(); err != nil {
		return Tensor{}, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	dst := svc.inputTensor.GetData()
	if len(dst) != len(input.Data) {
		return Tensor{}, xerrors.Errorf("onnx scorer: input has %d values, session expects %d", len(input.Data), len(dst))
	}
	copy(dst, input.Data)

	if err := svc.session.Run(); err != nil {
		return Tensor{}, xerrors.Errorf("inference failed: %w", err)
	}

	raw := svc.outputTensor.GetData()
	result := Tensor{
		Shape: append([]int64(nil), svc.outputShape...),
		Data:  make([]float32, len(raw)),
	}
	copy(result.Data, raw)
	return result, nil
}

func (svc *onnxService) Close() {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.inputTensor != nil {
		svc.inputTensor.Destroy()
	}
	if svc.outputTensor != nil {
		svc.outputTensor.Destroy()
	}
	if svc.session != nil {
		svc.session.Destroy()
	}
	ort.DestroyEnvironment()
}
