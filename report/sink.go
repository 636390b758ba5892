package report

import (
	"fmt"

	"github.com/TFMV/bdt/pkg/compare"
	"github.com/TFMV/bdt/pkg/core"
)

// DifferenceSchema is the row layout used when differences are written out
// as a dataset.
var DifferenceSchema = core.NewSchema(
	core.Column{Name: "row_ordinal", Type: core.Integer(64, false)},
	core.Column{Name: "column", Type: core.Utf8(), Nullable: true},
	core.Column{Name: "left", Type: core.Utf8(), Nullable: true},
	core.Column{Name: "right", Type: core.Utf8(), Nullable: true},
	core.Column{Name: "kind", Type: core.Utf8()},
)

// WriteDifferences writes every recorded difference of rep to sink, one row
// per difference, and closes the sink.
func WriteDifferences(rep *compare.Report, sink core.RowSink) (err error) {
	if err := sink.Open(DifferenceSchema); err != nil {
		return fmt.Errorf("failed to open difference output: %w", err)
	}
	defer func() {
		if closeErr := sink.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close difference output: %w", closeErr)
		}
	}()

	for i, d := range rep.Differences {
		row := core.Row{d.RowOrdinal, optional(d.Column), optionalPtr(d.Left), optionalPtr(d.Right), string(d.Kind)}
		if err := sink.Write(row); err != nil {
			return fmt.Errorf("failed to write difference %d: %w", i, err)
		}
	}
	return nil
}

func optional(s string) core.Value {
	if s == "" {
		return nil
	}
	return s
}

func optionalPtr(s *string) core.Value {
	if s == nil {
		return nil
	}
	return *s
}
