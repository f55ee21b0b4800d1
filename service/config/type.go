package config

import (
	"time"

	"github.com/khaledhikmat/vs-segment/model"
)

const (
	OpenCVBackend = "opencv"
	OnnxBackend   = "onnx"
	FakeBackend   = "fake"
)

type MinioSettings struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type IService interface {
	GetModeMaxShutdownTime() int
	GetSettingsFolder() string

	GetImageHeight() int
	GetImageWidth() int
	GetModelInfo() model.ModelInfo
	GetModelPath() string
	GetScorerBackend() string
	GetOnnxLibraryPath() string
	GetOnnxInputName() string
	GetOnnxOutputName() string

	GetStaticFolder() string
	GetWorkspacesFolder() string
	GetHTTPPort() int
	GetMaxUploadSize() int64

	GetMaxVideoFrames() int
	GetOutputVideoFPS() float64
	GetOutputVideoWidth() int
	GetOutputVideoHeight() int
	GetOutputVideoCodec() string

	GetWorkspaceTTL() time.Duration
	GetJanitorInterval() time.Duration

	GetLogLevel() string
	GetLogFile() string

	GetRedisAddress() string
	GetMinioSettings() MinioSettings
	GetOtelEndpoint() string
	GetWebhookURL() string
	GetSentryDSN() string
}
