package numeric

import (
	"fmt"
	"math"
	"strings"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
)

// InferOptions controls when a column is considered safe to convert. The zero value means
// DefaultInferOptions.
type InferOptions struct {
	// Threshold is the minimum parsed/attempted ratio for conversion.
	Threshold float64
	// EvaluationRowLimit caps the rows sampled per column; conversion still covers every row.
	EvaluationRowLimit int
	// MinNonNullValues is the minimum number of non-null-like samples before a column can convert.
	MinNonNullValues int
	// AllowParensNegative treats "(123)" as -123.
	AllowParensNegative bool
}

// DefaultInferOptions returns the stock thresholds.
func DefaultInferOptions() InferOptions {
	return InferOptions{
		Threshold:           0.7,
		EvaluationRowLimit:  5000,
		MinNonNullValues:    2,
		AllowParensNegative: true,
	}
}

// Example shows one raw cell and its normalized form.
type Example struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

// ColumnInference is the per-column diagnostic record.
type ColumnInference struct {
	Attempted int       `json:"attempted"`
	Parsed    int       `json:"parsed"`
	Ratio     float64   `json:"ratio"`
	Converted bool      `json:"converted"`
	Reason    string    `json:"reason"`
	Examples  []Example `json:"examples"`
}

// Inference records the options used plus per-column diagnostics.
type Inference struct {
	Threshold          float64                     `json:"threshold"`
	EvaluationRowLimit int                         `json:"evaluationRowLimit"`
	MinNonNullValues   int                         `json:"minNonNullValues"`
	Columns            map[string]*ColumnInference `json:"columns"`
}

// InferResult is the converted copy of the rows plus what was decided.
type InferResult struct {
	Data           []*dataset.Row `json:"data"`
	NumericColumns []string       `json:"numericColumns"`
	Inference      Inference      `json:"numericInference"`
}

// InferNumericColumnsAndConvert samples each declared column, decides which ones are numeric
// and returns converted copies of all rows holding only the declared columns. Cells that fail
// to parse in a numeric column become "" rather than an error. The input rows are not touched.
func InferNumericColumnsAndConvert(rows []*dataset.Row, columns []string, opt InferOptions) InferResult {
	if opt == (InferOptions{}) {
		opt = DefaultInferOptions()
	}
	limit := opt.EvaluationRowLimit
	if limit < 0 {
		limit = 0
	}
	evalRows := rows
	if len(evalRows) > limit {
		evalRows = evalRows[:limit]
	}

	res := InferResult{
		NumericColumns: []string{},
		Inference: Inference{
			Threshold:          opt.Threshold,
			EvaluationRowLimit: opt.EvaluationRowLimit,
			MinNonNullValues:   opt.MinNonNullValues,
			Columns:            make(map[string]*ColumnInference, len(columns)),
		},
	}
	numeric := make(map[string]bool, len(columns))

	for _, col := range columns {
		ci := &ColumnInference{Examples: []Example{}}
		for _, r := range evalRows {
			raw := r.Value(col)
			if IsNullLike(raw) {
				continue
			}
			ci.Attempted++
			pr := TryParseNumber(raw, opt.AllowParensNegative)
			if !pr.OK {
				continue
			}
			ci.Parsed++
			if len(ci.Examples) < 3 && !raw.IsNumber() {
				before := raw.String()
				if strings.TrimSpace(before) != pr.Normalized {
					ci.Examples = append(ci.Examples, Example{Before: before, After: pr.Normalized})
				}
			}
		}
		if ci.Attempted > 0 {
			ci.Ratio = float64(ci.Parsed) / float64(ci.Attempted)
		}
		ci.Converted = ci.Attempted >= opt.MinNonNullValues && ci.Ratio >= opt.Threshold
		switch {
		case ci.Attempted < opt.MinNonNullValues:
			ci.Reason = fmt.Sprintf("Too few non-empty values to infer numeric (need ≥ %d)", opt.MinNonNullValues)
		case ci.Converted:
			ci.Reason = fmt.Sprintf("Converted (%d%% numeric parse success)", roundPct(ci.Ratio))
		default:
			ci.Reason = fmt.Sprintf("Below threshold (%d%% < %d%%)", roundPct(ci.Ratio), roundPct(opt.Threshold))
		}
		if ci.Converted && !numeric[col] {
			numeric[col] = true
			res.NumericColumns = append(res.NumericColumns, col)
		}
		res.Inference.Columns[col] = ci
	}

	res.Data = make([]*dataset.Row, len(rows))
	for i, r := range rows {
		out := dataset.NewRow(len(columns))
		for _, col := range columns {
			v := r.Value(col)
			if numeric[col] {
				out.Set(col, convertNumeric(v, opt.AllowParensNegative))
				continue
			}
			out.Set(col, dataset.Text(strings.TrimSpace(v.String())))
		}
		res.Data[i] = out
	}
	return res
}

func convertNumeric(v dataset.Value, allowParens bool) dataset.Value {
	if IsNullLike(v) {
		return dataset.Empty()
	}
	pr := TryParseNumber(v, allowParens)
	if !pr.OK {
		return dataset.Empty()
	}
	return dataset.Number(pr.Value)
}

// roundPct rounds half up like a percentage display would.
func roundPct(x float64) int {
	return int(math.Floor(x*100 + 0.5))
}
