package export

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"mercator-hq/bdl/pkg/audit"
)

// CSVExporter exports record summaries as CSV. Payloads are not included.
type CSVExporter struct {
	// IncludeHeader includes a header row with column names.
	IncludeHeader bool
}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{
		IncludeHeader: includeHeader,
	}
}

var csvHeader = []string{
	"trace_id", "policy_id", "version", "verdict", "reason_codes",
	"required_fields", "created_at", "duration_ms", "hash",
}

// Export writes records to w. List columns are joined with ";".
func (e *CSVExporter) Export(ctx context.Context, records []*audit.Record, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(csvHeader); err != nil {
			return audit.NewExportError("csv", len(records), err)
		}
	}

	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		row := []string{
			r.TraceID,
			r.PolicyID,
			r.Version,
			r.Verdict,
			strings.Join(r.ReasonCodes, ";"),
			strings.Join(r.RequiredFields, ";"),
			r.CreatedAt.UTC().Format(time.RFC3339Nano),
			strconv.FormatFloat(float64(r.Duration)/float64(time.Millisecond), 'f', 3, 64),
			r.Hash,
		}
		if err := writer.Write(row); err != nil {
			return audit.NewExportError("csv", len(records), err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return audit.NewExportError("csv", len(records), err)
	}
	return nil
}
