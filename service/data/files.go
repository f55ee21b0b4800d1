package data

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/getsentry/raven-go"
	"github.com/khaledhikmat/vs-segment/model"
	"github.com/khaledhikmat/vs-segment/service/config"
	"github.com/khaledhikmat/vs-segment/service/lgr"
	"golang.org/x/xerrors"
)

const (
	errorsFile       = "errors"
	requestStatsFile = "request-stats"
	janitorStatsFile = "janitor-stats"
	serverStatsFile  = "server-stats"
)

type filesDBService struct {
	CfgSvc config.IService
	mu     sync.Mutex
	sentry *raven.Client
}

// NewFilesDB persists stats and errors as JSON arrays in the settings folder.
// Errors are also reported to Sentry when a DSN is configured.
func NewFilesDB(cfgsvc config.IService) IService {
	svc := &filesDBService{
		CfgSvc: cfgsvc,
	}

	if dsn := cfgsvc.GetSentryDSN(); dsn != "" {
		client, err := raven.New(dsn)
		if err != nil {
			lgr.Logger.Error(
				"sentry client could not be created",
				slog.Any("error", lgr.Err(err)),
			)
		} else {
			svc.sentry = client
		}
	}

	return svc
}

func (svc *filesDBService) RetrieveRequestStats() ([]model.RequestStats, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return retrieveEntities[model.RequestStats](requestStatsFile, svc.CfgSvc)
}

func (svc *filesDBService) RetrieveErrors() ([]ErrorRecord, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return retrieveEntities[ErrorRecord](errorsFile, svc.CfgSvc)
}

func (svc *filesDBService) NewError(err interface{}) error {
	// Determine if the error is custom
	var customErr model.CustomError
	switch e := err.(type) {
	case model.CustomError:
		customErr = e
	case error:
		customErr.Processor = "N/A"
		customErr.Inner = e
		customErr.Message = e.Error()
		customErr.StackTrace = "N/A"
	default:
		return xerrors.Errorf("unsupported error value %T", err)
	}

	record := ErrorRecord{
		Timestamp:  time.Now().Unix(),
		Processor:  customErr.Processor,
		Message:    customErr.Message,
		StackTrace: customErr.StackTrace,
		Misc:       customErr.Misc,
	}
	if customErr.Inner != nil {
		record.Inner = customErr.Inner.Error()
	}

	if svc.sentry != nil {
		svc.sentry.CaptureError(customErr, map[string]string{
			"processor": customErr.Processor,
		})
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	return newEntity(record, errorsFile, svc.CfgSvc)
}

func (svc *filesDBService) NewRequestStats(stats model.RequestStats) error {
	if stats.Timestamp == 0 {
		stats.Timestamp = time.Now().Unix()
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	return newEntity(stats, requestStatsFile, svc.CfgSvc)
}

func (svc *filesDBService) NewJanitorStats(stats model.JanitorStats) error {
	stats.Timestamp = time.Now().Unix()

	svc.mu.Lock()
	defer svc.mu.Unlock()
	return newEntity(stats, janitorStatsFile, svc.CfgSvc)
}

func (svc *filesDBService) NewServerStats(stats model.ServerStats) error {
	stats.Timestamp = time.Now().Unix()

	svc.mu.Lock()
	defer svc.mu.Unlock()
	return newEntity(stats, serverStatsFile, svc.CfgSvc)
}

func entityFile(filename string, cfgsvc config.IService) string {
	return filepath.Join(cfgsvc.GetSettingsFolder(), filename+".json")
}

func newEntity[T any](entity T, filename string, cfgsvc config.IService) error {
	entities, err := retrieveEntities[T](filename, cfgsvc)
	if err != nil {
		return err
	}

	entities = append(entities, entity)

	data, err := json.MarshalIndent(entities, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfgsvc.GetSettingsFolder(), 0755); err != nil {
		return err
	}

	// Write the JSON data to the file (with truncation)
	return os.WriteFile(entityFile(filename, cfgsvc), data, 0644)
}

func retrieveEntities[T any](filename string, cfgsvc config.IService) ([]T, error) {
	entities := []T{}

	data, err := os.ReadFile(entityFile(filename, cfgsvc))
	if os.IsNotExist(err) {
		// File not found, start with an empty slice
		return entities, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, &entities); err != nil {
		return nil, err
	}
	return entities, nil
}
