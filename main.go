package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/akamensky/argparse"
	"github.com/joho/godotenv"

	"github.com/khaledhikmat/vs-segment/mode"
	"github.com/khaledhikmat/vs-segment/pipeline"
	"github.com/khaledhikmat/vs-segment/service/cache"
	"github.com/khaledhikmat/vs-segment/service/config"
	"github.com/khaledhikmat/vs-segment/service/data"
	"github.com/khaledhikmat/vs-segment/service/inference"
	"github.com/khaledhikmat/vs-segment/service/janitor"
	"github.com/khaledhikmat/vs-segment/service/lgr"
	"github.com/khaledhikmat/vs-segment/service/media"
	"github.com/khaledhikmat/vs-segment/service/storage"
	"github.com/khaledhikmat/vs-segment/service/tracing"
	"github.com/khaledhikmat/vs-segment/service/webhook"
)

// Grace on top of the mode processor shutdown time
const shutdownGrace = 3 * time.Second

var modeProcessors = map[string]mode.Processor{
	"server": mode.Server,
	"image":  mode.Image,
	"video":  mode.Video,
}

func main() {
	rootCtx := context.Background()
	canxCtx, canxFn := context.WithCancel(rootCtx)

	// Hook up a signal handler to cancel the context
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		lgr.Logger.Info(
			"received kill signal",
			slog.Any("signal", sig),
		)
		canxFn()
	}()

	// The mode may be given as the first argument, the rest are flags
	argv := os.Args
	modeType := "server"
	if len(argv) > 1 && !strings.HasPrefix(argv[1], "-") {
		modeType = argv[1]
		argv = append([]string{argv[0]}, argv[2:]...)
	}

	parser := argparse.NewParser("vs-segment", "Semantic segmentation of driving images and videos")
	input := parser.String("i", "input", &argparse.Options{Help: "Input image or video file (image and video modes)", Default: ""})
	output := parser.String("o", "output", &argparse.Options{Help: "Copy the segmented result to this file", Default: ""})
	envFile := parser.String("e", "env", &argparse.Options{Help: "Environment file loaded in dev", Default: ".env"})
	if err := parser.Parse(argv); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	modeProc, ok := modeProcessors[modeType]
	if !ok {
		lgr.Logger.Error("invalid mode", slog.String("mode", modeType))
		fmt.Print(parser.Usage(nil))
		os.Exit(1)
	}

	// Load env vars if we are in DEV mode
	if os.Getenv("RUN_TIME_ENV") == "dev" || os.Getenv("RUN_TIME_ENV") == "" {
		if err := godotenv.Load(*envFile); err != nil {
			lgr.Logger.Warn(
				"no env file loaded, using the process environment",
				slog.String("file", *envFile),
				slog.Any("error", lgr.Err(err)),
			)
		}
	}

	// Config service
	cfgSvc, err := config.NewEnv()
	if err != nil {
		lgr.Logger.Error("invalid configuration", slog.Any("error", lgr.Err(err)))
		os.Exit(1)
	}

	lgr.Init(cfgSvc.GetLogLevel(), cfgSvc.GetLogFile())
	defer lgr.Close()

	modelInfo := cfgSvc.GetModelInfo()
	lgr.Banner("vs-segment",
		"mode", modeType,
		"scorer", cfgSvc.GetScorerBackend(),
		"model", cfgSvc.GetModelPath(),
		"resolution", fmt.Sprintf("%dx%d", modelInfo.Height, modelInfo.Width),
		"static", cfgSvc.GetStaticFolder(),
		"port", strconv.Itoa(cfgSvc.GetHTTPPort()),
	)

	// Tracing is opt-in
	if endpoint := cfgSvc.GetOtelEndpoint(); endpoint != "" {
		tp, err := tracing.InitTracer(canxCtx, endpoint)
		if err != nil {
			lgr.Logger.Error("tracing disabled", slog.Any("error", lgr.Err(err)))
		} else {
			defer tp.Shutdown(context.Background())
		}
	}

	// Create the services needed for the mode processor
	// Storage service, optionally mirroring results to object storage
	var mirror storage.Mirror
	if ms := cfgSvc.GetMinioSettings(); ms.Endpoint != "" {
		m, err := storage.NewMinio(canxCtx, ms)
		if err != nil {
			lgr.Logger.Error("result mirroring disabled", slog.Any("error", lgr.Err(err)))
		} else {
			mirror = m
		}
	}
	storageSvc := storage.NewLocal(cfgSvc, mirror)

	// Cache service
	var cacheSvc cache.IService
	if address := cfgSvc.GetRedisAddress(); address != "" {
		cacheSvc = cache.NewRedis(address)
	} else {
		cacheSvc = cache.NewMemory()
	}
	defer cacheSvc.Close()

	// Webhook service
	var webhookSvc webhook.IService
	if url := cfgSvc.GetWebhookURL(); url != "" {
		webhookSvc = webhook.NewResty(url)
	}

	// Inference service
	inferenceSvc, err := inference.New(cfgSvc)
	if err != nil {
		lgr.Logger.Error("scorer could not be loaded", slog.Any("error", lgr.Err(err)))
		os.Exit(1)
	}
	defer inferenceSvc.Close()

	// Janitor service
	janitorSvc := janitor.NewTimed(canxCtx, cfgSvc, storageSvc)
	defer janitorSvc.Finalize()

	svcs := pipeline.ServicesFactory{
		CfgSvc:       cfgSvc,
		DataSvc:      data.NewFilesDB(cfgSvc),
		StorageSvc:   storageSvc,
		InferenceSvc: inferenceSvc,
		MediaSvc:     media.NewOpenCV(),
		CacheSvc:     cacheSvc,
		WebhookSvc:   webhookSvc,
		JanitorSvc:   janitorSvc,
	}

	// Create mode processor result
	modeProcResult := make(chan error, 1)
	procDone := false
	var procErr error

	// Start the mode processor
	go func() {
		modeProcResult <- modeProc(canxCtx, svcs, mode.Args{
			Input:  *input,
			Output: *output,
		})
	}()

	// Wait for cancellation or the mode processor
	select {
	case <-canxCtx.Done():
		lgr.Logger.Info(
			"segment context cancelled",
		)

	case procErr = <-modeProcResult:
		procDone = true
		if procErr != nil {
			lgr.Logger.Error(
				"segment mode processor exited",
				slog.Any("error", lgr.Err(procErr)),
			)
		}
	}

	// Cancel the context if not already cancelled
	if canxCtx.Err() == nil {
		canxFn()
	}

	if !procDone {
		waitOnShutdown := time.Duration(cfgSvc.GetModeMaxShutdownTime())*time.Second + shutdownGrace
		lgr.Logger.Info(
			"segment is waiting for the mode processor to exit",
			slog.Duration("period", waitOnShutdown),
		)

		timer := time.NewTimer(waitOnShutdown)
		select {
		case <-timer.C:
			lgr.Logger.Info(
				"segment shutdown waiting period expired. Exiting now",
				slog.Duration("period", waitOnShutdown),
			)
		case procErr = <-modeProcResult:
			if procErr != nil {
				lgr.Logger.Info(
					"segment mode processor exited",
					slog.Any("error", lgr.Err(procErr)),
				)
			}
		}
		timer.Stop()
	}

	if procErr != nil {
		// Deferred cleanup does not run after os.Exit
		janitorSvc.Finalize()
		lgr.Close()
		os.Exit(1)
	}
}
