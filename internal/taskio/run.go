package taskio

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ── ImportJob ──────────────────────────────────────────────
// Orchestrates: source.Read → transform chain → validate → write.

// ImportJob holds the configuration for a single task import.
type ImportJob struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	SourceType    string            `json:"sourceType"`
	SourceCfg     SourceConfig      `json:"sourceConfig"`
	Transforms    []TransformConfig `json:"transforms,omitempty"`
	SyncMode      SyncMode          `json:"syncMode"`
	DedupeKey     string            `json:"dedupeKey,omitempty"`
	TriggerType   string            `json:"triggerType"`   // "manual" | "schedule" | "file_watch"
	TriggerConfig string            `json:"triggerConfig"` // cron expression or watch path
	Enabled       bool              `json:"enabled"`
	LastRunAt     *time.Time        `json:"lastRunAt,omitempty"`
	LastStatus    string            `json:"lastStatus"` // "success" | "error" | "running" | ""
	LastError     string            `json:"lastError"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// TransformConfig is a declarative transform definition (stored as JSON).
type TransformConfig struct {
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
}

// RunResult is the outcome of running an import job.
type RunResult struct {
	JobID       string        `json:"jobId"`
	Status      string        `json:"status"` // "success" | "error"
	RowsRead    int           `json:"rowsRead"`
	RowsWritten int           `json:"rowsWritten"`
	RowsSkipped int           `json:"rowsSkipped"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
}

// RunLog is a historical record of an import run.
type RunLog struct {
	ID          string    `json:"id"`
	JobID       string    `json:"jobId"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
	Status      string    `json:"status"`
	RowsRead    int       `json:"rowsRead"`
	RowsWritten int       `json:"rowsWritten"`
	RowsSkipped int       `json:"rowsSkipped"`
	Error       string    `json:"error,omitempty"`
}

// maxSkipDetails caps how many per-record validation failures are kept in
// the run error summary.
const maxSkipDetails = 5

// ── Engine ─────────────────────────────────────────────────

// Engine runs import jobs using the registered sources and a destination.
type Engine struct {
	Dest Destination
}

// RunImport executes an import job end-to-end.
func (e *Engine) RunImport(ctx context.Context, job *ImportJob) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{JobID: job.ID}

	fail := func(err error, stage string) (*RunResult, error) {
		result.Status = "error"
		if stage != "" {
			result.Error = fmt.Sprintf("%s: %s", stage, err)
		} else {
			result.Error = err.Error()
		}
		result.Duration = time.Since(start)
		return result, err
	}

	// 1. Resolve source from registry.
	source, err := GetSource(job.SourceType)
	if err != nil {
		return fail(err, "")
	}

	// 2. Read records from source.
	recCh, errCh := source.Read(ctx, job.SourceCfg)

	// 3. Build transformer chain from config.
	transformers := buildTransformers(job.Transforms, job.DedupeKey)

	// 4. Collect + transform records.
	var records []Record
	for rec := range recCh {
		result.RowsRead++
		transformed, keep := ApplyTransformers(rec, transformers)
		if keep {
			records = append(records, transformed)
		}
	}

	// 4b. Apply batch transforms (sort).
	records = ApplyBatchSort(records, transformers)

	// Check for source errors.
	if err := <-errCh; err != nil {
		return fail(err, "read")
	}

	// 5. Validate; invalid records are skipped, not fatal.
	var (
		valid       []Record
		skipDetails []string
	)
	for _, rec := range records {
		if err := ValidateRecord(rec); err != nil {
			result.RowsSkipped++
			if len(skipDetails) < maxSkipDetails {
				skipDetails = append(skipDetails, err.Error())
			}
			continue
		}
		valid = append(valid, rec)
	}

	// 6. Write to destination.
	written, err := e.Dest.Write(ctx, valid, job.SyncMode)
	if err != nil {
		return fail(err, "write")
	}

	result.Status = "success"
	result.RowsWritten = written
	if result.RowsSkipped > 0 {
		result.Error = fmt.Sprintf("skipped %d invalid record(s): %s",
			result.RowsSkipped, strings.Join(skipDetails, "; "))
	}
	result.Duration = time.Since(start)
	return result, nil
}

// Preview executes only the source read phase and returns up to maxRows records.
func (e *Engine) Preview(ctx context.Context, sourceType string, cfg SourceConfig, maxRows int) ([]Record, *Schema, error) {
	source, err := GetSource(sourceType)
	if err != nil {
		return nil, nil, err
	}

	schema, err := source.Discover(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("discover: %w", err)
	}

	recCh, errCh := source.Read(ctx, cfg)

	var records []Record
	for rec := range recCh {
		records = append(records, rec)
		if len(records) >= maxRows {
			break
		}
	}

	// Drain remaining and check for errors.
	go func() {
		for range recCh {
		}
	}()
	if err := <-errCh; err != nil {
		return records, schema, err
	}

	return records, schema, nil
}

// buildTransformers converts declarative TransformConfig into Transformer instances.
func buildTransformers(configs []TransformConfig, dedupeKey string) []Transformer {
	var ts []Transformer

	for _, tc := range configs {
		switch tc.Type {
		case "filter":
			field, _ := tc.Config["field"].(string)
			op, _ := tc.Config["op"].(string)
			value := tc.Config["value"]
			if field != "" && op != "" {
				ts = append(ts, &FilterTransform{Field: field, Op: op, Value: value})
			}

		case "rename":
			if mapping, ok := tc.Config["mapping"].(map[string]any); ok {
				m := make(map[string]string)
				for k, v := range mapping {
					m[k] = fmt.Sprint(v)
				}
				ts = append(ts, &RenameTransform{Mapping: m})
			}

		case "select":
			if fields, ok := tc.Config["fields"].([]any); ok {
				var ff []string
				for _, f := range fields {
					ff = append(ff, fmt.Sprint(f))
				}
				ts = append(ts, &SelectTransform{Fields: ff})
			}

		case "compute":
			if columns, ok := tc.Config["columns"].([]any); ok {
				var cols []ComputeColumn
				for _, c := range columns {
					if cm, ok := c.(map[string]any); ok {
						name, _ := cm["name"].(string)
						expr, _ := cm["expression"].(string)
						if name != "" && expr != "" {
							cols = append(cols, ComputeColumn{Name: name, Expression: expr})
						}
					}
				}
				if len(cols) > 0 {
					ts = append(ts, &ComputeTransform{Columns: cols})
				}
			}

		case "status_map":
			field, _ := tc.Config["field"].(string)
			if field == "" {
				field = "status"
			}
			def, _ := tc.Config["default"].(string)
			m := make(map[string]string)
			if mapping, ok := tc.Config["mapping"].(map[string]any); ok {
				for k, v := range mapping {
					m[k] = fmt.Sprint(v)
				}
			}
			ts = append(ts, &StatusMapTransform{Field: field, Mapping: m, Default: def})

		case "default_value":
			field, _ := tc.Config["field"].(string)
			if field != "" {
				ts = append(ts, &DefaultValueTransform{Field: field, Value: tc.Config["value"]})
			}

		case "sort":
			field, _ := tc.Config["field"].(string)
			direction, _ := tc.Config["direction"].(string)
			if direction == "" {
				direction = "asc"
			}
			if field != "" {
				ts = append(ts, &SortTransform{Field: field, Direction: direction})
			}

		case "limit":
			if count, ok := tc.Config["count"].(float64); ok && count > 0 {
				ts = append(ts, NewLimitTransform(int(count)))
			}

		case "type_cast":
			field, _ := tc.Config["field"].(string)
			castType, _ := tc.Config["castType"].(string)
			if field != "" && castType != "" {
				ts = append(ts, &TypeCastTransform{Field: field, CastType: castType})
			}
		}
	}

	// Dedupe is always applied last if a key is specified.
	if dedupeKey != "" {
		ts = append(ts, NewDedupeTransform(dedupeKey))
	}

	return ts
}
