package data

import "github.com/khaledhikmat/vs-segment/model"

type IService interface {
	RetrieveRequestStats() ([]model.RequestStats, error)
	RetrieveErrors() ([]ErrorRecord, error)

	NewError(err interface{}) error
	NewRequestStats(stats model.RequestStats) error
	NewJanitorStats(stats model.JanitorStats) error
	NewServerStats(stats model.ServerStats) error
}

// ErrorRecord is the persisted form of a model.CustomError.
type ErrorRecord struct {
	Timestamp  int64                  `json:"timestamp"`
	Processor  string                 `json:"processor"`
	Inner      string                 `json:"innerError"`
	Message    string                 `json:"message"`
	StackTrace string                 `json:"stackTrace"`
	Misc       map[string]interface{} `json:"misc"`
}
