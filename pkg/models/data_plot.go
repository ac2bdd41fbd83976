package models

import (
	"time"

	"github.com/google/uuid"
)

// PlotType is the kind of chart rendered for a DataPlot.
type PlotType string

const (
	PlotHistogram PlotType = "histogram"
	PlotScatter   PlotType = "scatter"
)

// Valid reports whether t is a supported plot type.
func (t PlotType) Valid() bool {
	return t == PlotHistogram || t == PlotScatter
}

// DataPlot is a rendered chart cached for a DataFile. PlotJSON holds the values the chart
// was drawn from, with missing cells coerced to 0.
type DataPlot struct {
	ID          uuid.UUID            `json:"id"`
	DataFileID  uuid.UUID            `json:"data_file_id"`
	PlotType    PlotType             `json:"plot_type"`
	PlotData    []byte               `json:"-"`
	PlotJSON    map[string][]float64 `json:"plot_json"`
	ColumnsUsed []string             `json:"columns_used"`
	CreatedAt   time.Time            `json:"created_at"`
}
