package database

import (
	"time"

	"github.com/watershedtools/mdc/internal/trend"
)

// SampleRow represents one laboratory sample result in the database
type SampleRow struct {
	ID            int64     `gorm:"primaryKey;autoIncrement;column:id"`
	StationID     string    `gorm:"column:station_id;not null"`
	Parameter     string    `gorm:"column:parameter;not null"`
	SampledAt     time.Time `gorm:"column:sampled_at;not null"`
	Concentration float64   `gorm:"column:concentration;not null"`
	Unit          string    `gorm:"column:unit"`
	LabFlag       string    `gorm:"column:lab_flag"`
}

// TableName specifies the table name for SampleRow
func (SampleRow) TableName() string {
	return "samples"
}

// Observation converts a sample row to a trend observation
func (r SampleRow) Observation() trend.Observation {
	return trend.Observation{
		StationID:     r.StationID,
		Timestamp:     r.SampledAt,
		Concentration: r.Concentration,
	}
}
