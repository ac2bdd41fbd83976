package cleaning

import (
	"strings"

	"github.com/ekaya-inc/tabula/pkg/apperrors"
)

// DuplicateMode controls how exact duplicate rows are handled.
type DuplicateMode string

const (
	DuplicatesDrop DuplicateMode = "drop"
	DuplicatesKeep DuplicateMode = "keep"
)

// FillMethod is the statistic used to impute missing numeric cells.
type FillMethod string

const (
	FillMean   FillMethod = "mean"
	FillMedian FillMethod = "median"
	FillZero   FillMethod = "zero"
)

// Options are the cleaning parameters.
type Options struct {
	HandleDuplicates DuplicateMode `json:"handle_duplicates"`
	FillMissing      FillMethod    `json:"fill_missing"`
}

// DefaultOptions drops duplicates and fills with the column mean.
func DefaultOptions() Options {
	return Options{HandleDuplicates: DuplicatesDrop, FillMissing: FillMean}
}

// ParseOptions builds Options from raw parameter values. Empty values take the defaults.
func ParseOptions(handleDuplicates, fillMissing string) (Options, error) {
	opts := DefaultOptions()
	if v := strings.TrimSpace(handleDuplicates); v != "" {
		opts.HandleDuplicates = DuplicateMode(v)
	}
	if v := strings.TrimSpace(fillMissing); v != "" {
		opts.FillMissing = FillMethod(v)
	}
	return opts, opts.Validate()
}

// Validate rejects unknown modes with apperrors.ErrInvalidParameter.
func (o Options) Validate() error {
	switch o.HandleDuplicates {
	case DuplicatesDrop, DuplicatesKeep:
	default:
		return apperrors.InvalidParameter("invalid value %q for handle_duplicates, valid: 'drop' or 'keep'", o.HandleDuplicates)
	}
	switch o.FillMissing {
	case FillMean, FillMedian, FillZero:
	default:
		return apperrors.InvalidParameter("invalid value %q for fill_missing, valid: 'mean', 'median', 'zero'", o.FillMissing)
	}
	return nil
}
