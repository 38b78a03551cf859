package domain

import (
	"context"
)

// TextExtractor converts an uploaded document (image or PDF) into raw text.
// It is the only failure-capable step in front of the parser.
type TextExtractor interface {
	ExtractText(ctx context.Context, filename string, content []byte) (string, error)
}

// PatientRepository supplies the current medication list and visit records
// owned by the storage layer.
type PatientRepository interface {
	CurrentMedications(ctx context.Context, patientID string) ([]Medication, error)
	RecentRecords(ctx context.Context, patientID string, limit int) ([]MedicalRecord, error)
}

// InsightGenerator produces AI narrative insights for a visit. No
// implementation ships with this module.
type InsightGenerator interface {
	GenerateInsights(ctx context.Context, overview *VisitOverview) (string, error)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	Reload() error
	Validate() error
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
