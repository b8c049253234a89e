package model

import (
	"time"

	"gorm.io/datatypes"
)

// AnalysisType classifies an AI analysis report.
type AnalysisType string

const (
	AnalysisMonthly     AnalysisType = "monthly"
	AnalysisPerformance AnalysisType = "performance"
	AnalysisPredictive  AnalysisType = "predictive"
)

// AnalysisStatus is the regeneration state of an analysis.
type AnalysisStatus string

const (
	AnalysisCompleted    AnalysisStatus = "completed"
	AnalysisRegenerating AnalysisStatus = "regenerating"
)

// Analysis is one entry of the AI analysis history. Entries are seeded at
// startup and regenerated in place; they are never deleted.
type Analysis struct {
	ID              string                      `gorm:"primaryKey;size:36" json:"id"`
	Ordinal         int64                       `gorm:"index;not null" json:"-"`
	Title           string                      `gorm:"size:256;not null" json:"title"`
	Type            AnalysisType                `gorm:"size:16;not null" json:"type"`
	Date            string                      `gorm:"size:10;not null" json:"date"`
	Score           int                         `gorm:"not null" json:"score"`
	Insights        datatypes.JSONSlice[string] `json:"insights"`
	Recommendations datatypes.JSONSlice[string] `json:"recommendations"`
	Status          AnalysisStatus              `gorm:"size:16;not null;index" json:"status"`
	UpdatedAt       time.Time                   `json:"updatedAt"`
}
