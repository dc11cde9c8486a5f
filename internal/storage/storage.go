// Package storage persists log records and farm registry records.
package storage

import "farmScope/internal/model"

// Storage defines a sink for log records.
type Storage interface {
	PutLogBatch(logs []model.LogRecord) error
}

// FarmSink receives the farm registry.
type FarmSink interface {
	PutFarms(farms []model.Farm) error
}
