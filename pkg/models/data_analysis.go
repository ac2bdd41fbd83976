package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AnalysisType identifies what a DataAnalysis row carries.
type AnalysisType string

const (
	AnalysisBasicStats AnalysisType = "basic_stats"
	AnalysisCleaning   AnalysisType = "cleaning"
)

// Cleaning action names recorded in CleaningReport.ActionsPerformed.
const (
	ActionDuplicatesDropped   = "duplicates_dropped"
	ActionMissingValuesFilled = "missing_values_filled"
)

// StatsResult holds descriptive statistics keyed by numeric column name.
// Correlation is column -> column -> Pearson coefficient. Values that are undefined
// for a column (too few values, zero variance) are absent from the maps.
type StatsResult struct {
	Mean        map[string]float64            `json:"mean"`
	Median      map[string]float64            `json:"median"`
	Correlation map[string]map[string]float64 `json:"correlation"`
	Std         map[string]float64            `json:"std"`
	Min         map[string]float64            `json:"min"`
	Max         map[string]float64            `json:"max"`
}

// NewStatsResult returns a result with every map allocated.
func NewStatsResult() *StatsResult {
	return &StatsResult{
		Mean:        map[string]float64{},
		Median:      map[string]float64{},
		Correlation: map[string]map[string]float64{},
		Std:         map[string]float64{},
		Min:         map[string]float64{},
		Max:         map[string]float64{},
	}
}

// MissingValuesFilled summarises imputation: per-column missing counts before and after,
// and the fill method used.
type MissingValuesFilled struct {
	Before map[string]int `json:"before"`
	After  map[string]int `json:"after"`
	Method string         `json:"method"`
}

// CleaningReport describes one cleaning run and the derived file it produced.
type CleaningReport struct {
	OriginalShape    [2]int    `json:"original_shape"`
	ActionsPerformed []string  `json:"actions_performed"`
	CleanedShape     [2]int    `json:"cleaned_shape"`
	CleanedFileID    uuid.UUID `json:"cleaned_file_id"`
	CleanedFilename  string    `json:"cleaned_filename"`
}

// CleaningResult is the payload returned for a cleaning analysis.
type CleaningResult struct {
	DuplicatesRemoved   int                  `json:"duplicates_removed"`
	MissingValuesFilled *MissingValuesFilled `json:"missing_values_filled"`
	CleaningReport      *CleaningReport      `json:"cleaning_report"`
}

// DataAnalysis is a stored analysis result for a DataFile. Which fields are populated
// depends on AnalysisType.
type DataAnalysis struct {
	ID           uuid.UUID    `json:"id"`
	DataFileID   uuid.UUID    `json:"data_file_id"`
	AnalysisType AnalysisType `json:"analysis_type"`
	AnalysisDate time.Time    `json:"analysis_date"`

	// basic_stats
	StatsMean        map[string]float64            `json:"stats_mean,omitempty"`
	StatsMedian      map[string]float64            `json:"stats_median,omitempty"`
	StatsCorrelation map[string]map[string]float64 `json:"stats_correlation,omitempty"`
	StatsStd         map[string]float64            `json:"stats_std,omitempty"`
	StatsMin         map[string]float64            `json:"stats_min,omitempty"`
	StatsMax         map[string]float64            `json:"stats_max,omitempty"`

	// cleaning
	DuplicatesRemoved   *int                 `json:"duplicates_removed,omitempty"`
	MissingValuesFilled *MissingValuesFilled `json:"missing_values_filled,omitempty"`
	CleaningReport      *CleaningReport      `json:"cleaning_report,omitempty"`
}

// NewStatsAnalysis builds a basic_stats record for fileID.
func NewStatsAnalysis(fileID uuid.UUID, result *StatsResult) *DataAnalysis {
	return &DataAnalysis{
		DataFileID:       fileID,
		AnalysisType:     AnalysisBasicStats,
		StatsMean:        result.Mean,
		StatsMedian:      result.Median,
		StatsCorrelation: result.Correlation,
		StatsStd:         result.Std,
		StatsMin:         result.Min,
		StatsMax:         result.Max,
	}
}

// NewCleaningAnalysis builds a cleaning record for fileID.
func NewCleaningAnalysis(fileID uuid.UUID, result *CleaningResult) *DataAnalysis {
	removed := result.DuplicatesRemoved
	return &DataAnalysis{
		DataFileID:          fileID,
		AnalysisType:        AnalysisCleaning,
		DuplicatesRemoved:   &removed,
		MissingValuesFilled: result.MissingValuesFilled,
		CleaningReport:      result.CleaningReport,
	}
}

// StatsResult returns the basic_stats payload. Nil maps read back as empty ones.
func (a *DataAnalysis) StatsResult() (*StatsResult, error) {
	if a.AnalysisType != AnalysisBasicStats {
		return nil, fmt.Errorf("analysis %s is %q, not %q", a.ID, a.AnalysisType, AnalysisBasicStats)
	}
	result := &StatsResult{
		Mean:        orEmpty(a.StatsMean),
		Median:      orEmpty(a.StatsMedian),
		Correlation: a.StatsCorrelation,
		Std:         orEmpty(a.StatsStd),
		Min:         orEmpty(a.StatsMin),
		Max:         orEmpty(a.StatsMax),
	}
	if result.Correlation == nil {
		result.Correlation = map[string]map[string]float64{}
	}
	return result, nil
}

// CleaningResult returns the cleaning payload.
func (a *DataAnalysis) CleaningResult() (*CleaningResult, error) {
	if a.AnalysisType != AnalysisCleaning {
		return nil, fmt.Errorf("analysis %s is %q, not %q", a.ID, a.AnalysisType, AnalysisCleaning)
	}
	result := &CleaningResult{
		MissingValuesFilled: a.MissingValuesFilled,
		CleaningReport:      a.CleaningReport,
	}
	if a.DuplicatesRemoved != nil {
		result.DuplicatesRemoved = *a.DuplicatesRemoved
	}
	return result, nil
}

// GetData returns the kind-specific payload: *StatsResult or *CleaningResult.
func (a *DataAnalysis) GetData() (any, error) {
	switch a.AnalysisType {
	case AnalysisBasicStats:
		return a.StatsResult()
	case AnalysisCleaning:
		return a.CleaningResult()
	}
	return nil, fmt.Errorf("invalid analysis type %q", a.AnalysisType)
}

func orEmpty(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}
