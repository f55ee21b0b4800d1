package config

import (
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/khaledhikmat/vs-segment/model"
	"golang.org/x/xerrors"
)

// Settings mirrors the environment. Defaults must stay in sync with HardCoded().
type Settings struct {
	ImageHeight   int    `env:"IMG_HEIGHT"     envDefault:"512"`
	ImageWidth    int    `env:"IMG_WIDTH"      envDefault:"1024"`
	EncoderName   string `env:"ENCODER_NAME"   envDefault:"resnet34"`
	EncoderWeight string `env:"ENCODER_WEIGHT" envDefault:"imagenet"`
	InChannels    int    `env:"IN_CHANNELS"    envDefault:"3"`
	Classes       int    `env:"CLASSES"        envDefault:"8"`
	ModelPath     string `env:"MODEL_PATH"     envDefault:"./models/unet.onnx"`

	ScorerBackend   string `env:"SCORER_BACKEND"    envDefault:"opencv"`
	OnnxLibraryPath string `env:"ONNX_LIBRARY_PATH" envDefault:""`
	OnnxInputName   string `env:"ONNX_INPUT_NAME"   envDefault:"input"`
	OnnxOutputName  string `env:"ONNX_OUTPUT_NAME"  envDefault:"output"`

	StaticFolder    string `env:"STATIC_FOLDER"      envDefault:"./static"`
	HTTPPort        int    `env:"HTTP_PORT"          envDefault:"8001"`
	MaxUploadSizeMB int64  `env:"MAX_UPLOAD_SIZE_MB" envDefault:"512"`

	MaxVideoFrames    int     `env:"MAX_VIDEO_FRAMES"    envDefault:"1000"`
	OutputVideoFPS    float64 `env:"OUTPUT_VIDEO_FPS"    envDefault:"5"`
	OutputVideoWidth  int     `env:"OUTPUT_VIDEO_WIDTH"  envDefault:"1024"`
	OutputVideoHeight int     `env:"OUTPUT_VIDEO_HEIGHT" envDefault:"512"`
	OutputVideoCodec  string  `env:"OUTPUT_VIDEO_CODEC"  envDefault:"MJPG"`

	WorkspaceTTLMinutes    int `env:"WORKSPACE_TTL_MINUTES"    envDefault:"60"`
	JanitorIntervalSeconds int `env:"JANITOR_INTERVAL_SECONDS" envDefault:"300"`

	SettingsFolder      string `env:"SETTINGS_FOLDER"        envDefault:"./settings"`
	LogLevel            string `env:"LOG_LEVEL"              envDefault:"info"`
	LogFile             string `env:"LOG_FILE"               envDefault:"./logs/segment.log"`
	ModeMaxShutdownTime int    `env:"MODE_MAX_SHUTDOWN_TIME" envDefault:"5"`

	RedisAddress   string `env:"REDIS_ADDRESS"          envDefault:""`
	MinioEndpoint  string `env:"MINIO_ENDPOINT"         envDefault:""`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY"       envDefault:""`
	MinioSecretKey string `env:"MINIO_SECRET_KEY"       envDefault:""`
	MinioBucket    string `env:"MINIO_BUCKET"           envDefault:""`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL"          envDefault:"false"`
	OtelEndpoint   string `env:"OTEL_EXPORTER_ENDPOINT" envDefault:""`
	WebhookURL     string `env:"WEBHOOK_URL"            envDefault:""`
	SentryDSN      string `env:"SENTRY_DSN"             envDefault:""`
}

type settingsService struct {
	s Settings
}

// NewEnv parses the process environment. Callers load .env beforehand.
func NewEnv() (IService, error) {
	s := Settings{}
	if err := env.Parse(&s); err != nil {
		return nil, xerrors.Errorf("parse environment: %w", err)
	}
	return New(s)
}

// ParseMap parses settings from an explicit key/value map instead of the
// process environment. Missing keys take their defaults.
func ParseMap(vars map[string]string) (Settings, error) {
	s := Settings{}
	err := env.ParseWithOptions(&s, env.Options{Environment: vars})
	if err != nil {
		return s, xerrors.Errorf("parse settings: %w", err)
	}
	return s, nil
}

func New(s Settings) (IService, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &settingsService{s: s}, nil
}

func (s Settings) Validate() error {
	switch {
	case s.ImageHeight <= 0 || s.ImageWidth <= 0:
		return xerrors.Errorf("image size must be positive, got %dx%d", s.ImageHeight, s.ImageWidth)
	case s.InChannels != 3:
		return xerrors.Errorf("in channels must be 3, got %d", s.InChannels)
	case s.Classes < 1 || s.Classes > 8:
		return xerrors.Errorf("classes must be between 1 and 8, got %d", s.Classes)
	case s.MaxVideoFrames <= 0:
		return xerrors.Errorf("max video frames must be positive, got %d", s.MaxVideoFrames)
	case s.OutputVideoFPS <= 0:
		return xerrors.Errorf("output video fps must be positive, got %v", s.OutputVideoFPS)
	case s.OutputVideoWidth <= 0 || s.OutputVideoHeight <= 0:
		return xerrors.Errorf("output video size must be positive, got %dx%d", s.OutputVideoWidth, s.OutputVideoHeight)
	case len(s.OutputVideoCodec) != 4:
		return xerrors.Errorf("output video codec must be a fourcc, got %q", s.OutputVideoCodec)
	case s.StaticFolder == "":
		return xerrors.New("static folder is required")
	case s.WorkspaceTTLMinutes <= 0:
		return xerrors.Errorf("workspace ttl must be at least a minute, got %d", s.WorkspaceTTLMinutes)
	case s.JanitorIntervalSeconds <= 0:
		return xerrors.Errorf("janitor interval must be positive, got %d", s.JanitorIntervalSeconds)
	case s.ModeMaxShutdownTime <= 0:
		return xerrors.Errorf("mode max shutdown time must be positive, got %d", s.ModeMaxShutdownTime)
	case s.MaxUploadSizeMB <= 0:
		return xerrors.Errorf("max upload size must be positive, got %d", s.MaxUploadSizeMB)
	case s.HTTPPort < 1 || s.HTTPPort > 65535:
		return xerrors.Errorf("http port must be between 1 and 65535, got %d", s.HTTPPort)
	}
	return nil
}

func (svc *settingsService) GetModeMaxShutdownTime() int {
	return svc.s.ModeMaxShutdownTime
}

func (svc *settingsService) GetSettingsFolder() string {
	return svc.s.SettingsFolder
}

func (svc *settingsService) GetImageHeight() int {
	return svc.s.ImageHeight
}

func (svc *settingsService) GetImageWidth() int {
	return svc.s.ImageWidth
}

func (svc *settingsService) GetModelInfo() model.ModelInfo {
	return model.ModelInfo{
		EncoderName:   svc.s.EncoderName,
		EncoderWeight: svc.s.EncoderWeight,
		InChannels:    svc.s.InChannels,
		Classes:       svc.s.Classes,
		Height:        svc.s.ImageHeight,
		Width:         svc.s.ImageWidth,
		Backend:       svc.s.ScorerBackend,
	}
}

func (svc *settingsService) GetModelPath() string {
	return svc.s.ModelPath
}

func (svc *settingsService) GetScorerBackend() string {
	return svc.s.ScorerBackend
}

func (svc *settingsService) GetOnnxLibraryPath() string {
	return svc.s.OnnxLibraryPath
}

func (svc *settingsService) GetOnnxInputName() string {
	return svc.s.OnnxInputName
}

func (svc *settingsService) GetOnnxOutputName() string {
	return svc.s.OnnxOutputName
}

func (svc *settingsService) GetStaticFolder() string {
	return svc.s.StaticFolder
}

// Workspaces always live below the static folder so get_file can serve them.
func (svc *settingsService) GetWorkspacesFolder() string {
	return filepath.Join(svc.s.StaticFolder, "tmp")
}

func (svc *settingsService) GetHTTPPort() int {
	return svc.s.HTTPPort
}

func (svc *settingsService) GetMaxUploadSize() int64 {
	return svc.s.MaxUploadSizeMB << 20
}

func (svc *settingsService) GetMaxVideoFrames() int {
	return svc.s.MaxVideoFrames
}

func (svc *settingsService) GetOutputVideoFPS() float64 {
	return svc.s.OutputVideoFPS
}

func (svc *settingsService) GetOutputVideoWidth() int {
	return svc.s.OutputVideoWidth
}

func (svc *settingsService) GetOutputVideoHeight() int {
	return svc.s.OutputVideoHeight
}

func (svc *settingsService) GetOutputVideoCodec() string {
	return svc.s.OutputVideoCodec
}

func (svc *settingsService) GetWorkspaceTTL() time.Duration {
	return time.Duration(svc.s.WorkspaceTTLMinutes) * time.Minute
}

func (svc *settingsService) GetJanitorInterval() time.Duration {
	return time.Duration(svc.s.JanitorIntervalSeconds) * time.Second
}

func (svc *settingsService) GetLogLevel() string {
	return svc.s.LogLevel
}

func (svc *settingsService) GetLogFile() string {
	return svc.s.LogFile
}

func (svc *settingsService) GetRedisAddress() string {
	return svc.s.RedisAddress
}

func (svc *settingsService) GetMinioSettings() MinioSettings {
	return MinioSettings{
		Endpoint:  svc.s.MinioEndpoint,
		AccessKey: svc.s.MinioAccessKey,
		SecretKey: svc.s.MinioSecretKey,
		Bucket:    svc.s.MinioBucket,
		UseSSL:    svc.s.MinioUseSSL,
	}
}

func (svc *settingsService) GetOtelEndpoint() string {
	return svc.s.OtelEndpoint
}

func (svc *settingsService) GetWebhookURL() string {
	return svc.s.WebhookURL
}

func (svc *settingsService) GetSentryDSN() string {
	return svc.s.SentryDSN
}
