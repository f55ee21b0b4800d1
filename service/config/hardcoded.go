package config

// HardCoded returns the built-in defaults without looking at the environment.
func HardCoded() Settings {
	return Settings{
		ImageHeight:   512,
		ImageWidth:    1024,
		EncoderName:   "resnet34",
		EncoderWeight: "imagenet",
		InChannels:    3,
		Classes:       8,
		ModelPath:     "./models/unet.onnx",

		ScorerBackend:  OpenCVBackend,
		OnnxInputName:  "input",
		OnnxOutputName: "output",

		StaticFolder:    "./static",
		HTTPPort:        8001,
		MaxUploadSizeMB: 512,

		MaxVideoFrames:    1000,
		OutputVideoFPS:    5,
		OutputVideoWidth:  1024,
		OutputVideoHeight: 512,
		OutputVideoCodec:  "MJPG",

		WorkspaceTTLMinutes:    60,
		JanitorIntervalSeconds: 300,

		SettingsFolder:      "./settings",
		LogLevel:            "info",
		LogFile:             "./logs/segment.log",
		ModeMaxShutdownTime: 5,
	}
}

// NewHardCoded is used by tests and one-shot runs that do not need the
// environment. The optional mutators adjust the defaults before validation.
func NewHardCoded(mutators ...func(*Settings)) IService {
	s := HardCoded()
	for _, m := range mutators {
		m(&s)
	}

	svc, err := New(s)
	if err != nil {
		panic(err)
	}
	return svc
}
