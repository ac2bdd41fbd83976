// Package plotting renders histogram and scatter charts of table columns as PNG images.
package plotting

import (
	"bytes"
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ekaya-inc/tabula/pkg/apperrors"
	"github.com/ekaya-inc/tabula/pkg/models"
	"github.com/ekaya-inc/tabula/pkg/tabular"
)

const (
	DefaultWidth         = 6.0
	DefaultHeight        = 4.0
	DefaultHistogramBins = 10
)

// Request names the chart to draw. XColumn is only used by scatter plots and defaults to
// the first column of the table.
type Request struct {
	Kind        models.PlotType
	ValueColumn string
	XColumn     string
}

// Validate checks the parts of the request that do not depend on the table.
// Kind is checked first.
func (r Request) Validate() error {
	if !r.Kind.Valid() {
		return apperrors.InvalidParameter("invalid plot type %q, valid: 'histogram' or 'scatter'", r.Kind)
	}
	if r.ValueColumn == "" {
		return apperrors.InvalidParameter("column is required")
	}
	return nil
}

// Result is a rendered chart together with the data it was drawn from.
type Result struct {
	Image       []byte
	ColumnsUsed []string
	// Data holds every row of each used column, missing or non-numeric cells as 0.
	Data map[string][]float64
}

// Renderer draws charts on a fixed-size canvas.
type Renderer struct {
	width  vg.Length
	height vg.Length
	bins   int
}

// NewRenderer returns a Renderer producing width x height inch images. Non-positive
// arguments fall back to the defaults.
func NewRenderer(width, height float64, bins int) *Renderer {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	if bins <= 0 {
		bins = DefaultHistogramBins
	}
	return &Renderer{
		width:  vg.Length(width) * vg.Inch,
		height: vg.Length(height) * vg.Inch,
		bins:   bins,
	}
}

// Render draws the requested chart using the default canvas.
func Render(t *tabular.Table, req Request) (*Result, error) {
	return NewRenderer(0, 0, 0).Render(t, req)
}

// Render draws the requested chart of t.
func (r *Renderer) Render(t *tabular.Table, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	value, ok := t.Column(req.ValueColumn)
	if !ok {
		return nil, apperrors.InvalidParameter("column %q not found", req.ValueColumn)
	}

	switch req.Kind {
	case models.PlotHistogram:
		return r.histogram(value)
	default:
		x, err := resolveX(t, req.XColumn)
		if err != nil {
			return nil, err
		}
		return r.scatter(x, value)
	}
}

func resolveX(t *tabular.Table, name string) (*tabular.Column, error) {
	if name == "" {
		if t.NumCols() == 0 {
			return nil, apperrors.InvalidParameter("table has no columns")
		}
		return t.Columns[0], nil
	}
	col, ok := t.Column(name)
	if !ok {
		return nil, apperrors.InvalidParameter("column %q not found", name)
	}
	return col, nil
}

func (r *Renderer) histogram(col *tabular.Column) (*Result, error) {
	values := col.Numbers()
	if len(values) == 0 {
		return nil, apperrors.ProcessingFailure(fmt.Errorf("column %q has no numeric values to plot", col.Name))
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Histogram of %s", col.Name)
	p.X.Label.Text = col.Name
	p.Y.Label.Text = "Frequency"

	h, err := plotter.NewHist(plotter.Values(values), r.bins)
	if err != nil {
		return nil, apperrors.ProcessingFailure(fmt.Errorf("failed to build histogram: %w", err))
	}
	p.Add(h)

	img, err := r.encode(p)
	if err != nil {
		return nil, err
	}
	return &Result{
		Image:       img,
		ColumnsUsed: []string{col.Name},
		Data:        map[string][]float64{col.Name: zeroFilled(col)},
	}, nil
}

func (r *Renderer) scatter(x, y *tabular.Column) (*Result, error) {
	var points plotter.XYs
	if x.IsNumeric() && y.IsNumeric() {
		for i := range y.Cells {
			if x.Cells[i].Missing || y.Cells[i].Missing {
				continue
			}
			points = append(points, plotter.XY{X: x.Cells[i].Number, Y: y.Cells[i].Number})
		}
	}
	if len(points) == 0 {
		return nil, apperrors.ProcessingFailure(fmt.Errorf("columns %q and %q have no numeric pairs to plot", x.Name, y.Name))
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s vs %s", y.Name, x.Name)
	p.X.Label.Text = x.Name
	p.Y.Label.Text = y.Name

	s, err := plotter.NewScatter(points)
	if err != nil {
		return nil, apperrors.ProcessingFailure(fmt.Errorf("failed to build scatter: %w", err))
	}
	p.Add(s)

	img, err := r.encode(p)
	if err != nil {
		return nil, err
	}
	return &Result{
		Image:       img,
		ColumnsUsed: []string{y.Name, x.Name},
		Data: map[string][]float64{
			y.Name: zeroFilled(y),
			x.Name: zeroFilled(x),
		},
	}, nil
}

func (r *Renderer) encode(p *plot.Plot) ([]byte, error) {
	w, err := p.WriterTo(r.width, r.height, "png")
	if err != nil {
		return nil, apperrors.ProcessingFailure(fmt.Errorf("failed to create png writer: %w", err))
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, apperrors.ProcessingFailure(fmt.Errorf("failed to encode png: %w", err))
	}
	return buf.Bytes(), nil
}

func zeroFilled(col *tabular.Column) []float64 {
	out := make([]float64, len(col.Cells))
	if !col.IsNumeric() {
		return out
	}
	for i, cell := range col.Cells {
		if !cell.Missing {
			out[i] = cell.Number
		}
	}
	return out
}
