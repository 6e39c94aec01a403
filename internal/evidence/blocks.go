package evidence

import (
	"encoding/json"
	"fmt"
	"math"
)

// BlockType is the closed set of insight block kinds shared with the plan executor.
type BlockType string

const (
	KPIBlock       BlockType = "KPIBlock"
	TrendBlock     BlockType = "TrendBlock"
	TopNBlock      BlockType = "TopNBlock"
	BreakdownBlock BlockType = "BreakdownBlock"
	GeoLikeBlock   BlockType = "GeoLikeBlock"
	DriverBlock    BlockType = "DriverBlock"
)

// Block statuses.
const (
	StatusOK               = "OK"
	StatusInsufficientData = "INSUFFICIENT_DATA"
	StatusNotApplicable    = "NOT_APPLICABLE"
)

// Num returns a pointer to x, or nil when x is NaN or infinite.
func Num(x float64) *float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil
	}
	return &x
}

func finite(p *float64) *float64 {
	if p == nil {
		return nil
	}
	return Num(*p)
}

// Block is one computed insight unit. Payload holds *KPIPayload, *TrendPayload,
// *BreakdownPayload or *DriverPayload according to Type, or nil when the payload
// was missing or could not be decoded.
type Block struct {
	ID          string    `json:"id,omitempty"`
	Type        BlockType `json:"type"`
	Title       string    `json:"title,omitempty"`
	Status      string    `json:"status,omitempty"`
	Confidence  float64   `json:"confidence"`
	Assumptions []string  `json:"assumptions,omitempty"`
	SampleSize  int       `json:"sampleSize"`
	Narrative   string    `json:"blockNarrative,omitempty"`
	Reason      string    `json:"-"`
	Payload     any       `json:"payload,omitempty"`
}

type NumericSummary struct {
	Count     int      `json:"count"`
	NullCount int      `json:"nullCount"`
	Min       *float64 `json:"min"`
	Max       *float64 `json:"max"`
	Mean      *float64 `json:"mean"`
	P10       *float64 `json:"p10"`
	P25       *float64 `json:"p25"`
	P50       *float64 `json:"p50"`
	P75       *float64 `json:"p75"`
	P90       *float64 `json:"p90"`
}

type MetricSummary struct {
	Name    string         `json:"name"`
	Summary NumericSummary `json:"summary"`
}

type PeriodValue struct {
	Period string   `json:"period"`
	Value  *float64 `json:"value"`
}

type Change struct {
	Abs *float64 `json:"abs"`
	Pct *float64 `json:"pct"`
}

type RangeWindow struct {
	From  string   `json:"from"`
	To    string   `json:"to"`
	Total *float64 `json:"total"`
}

type RangeCompare struct {
	Current  RangeWindow `json:"current"`
	Previous RangeWindow `json:"previous"`
	Change   Change      `json:"change"`
}

type Contributor struct {
	Dimension string   `json:"dimension"`
	Group     string   `json:"group"`
	Value     *float64 `json:"value,omitempty"`
	Share     *float64 `json:"share"`
}

// ExecutiveKPIs compares the latest and previous time buckets of the primary measure.
type ExecutiveKPIs struct {
	TimeColumn     string        `json:"timeColumn"`
	Grain          string        `json:"grain"`
	Measure        string        `json:"measure"`
	Latest         *PeriodValue  `json:"latest,omitempty"`
	Previous       *PeriodValue  `json:"previous,omitempty"`
	Change         *Change       `json:"change,omitempty"`
	RangeCompare   *RangeCompare `json:"rangeCompare,omitempty"`
	TopContributor *Contributor  `json:"topContributor,omitempty"`
}

// TimeKPIs is the year-over-year comparison for year-like time columns.
type TimeKPIs struct {
	Measure      string   `json:"measure"`
	TimeColumn   string   `json:"timeColumn"`
	LatestPeriod int      `json:"latestPeriod"`
	PrevPeriod   int      `json:"prevPeriod"`
	LatestValue  *float64 `json:"latestValue"`
	PrevValue    *float64 `json:"prevValue"`
	Delta        *float64 `json:"delta"`
	Pct          *float64 `json:"pct"`
}

type KPIPayload struct {
	RowCount        int             `json:"rowCount"`
	PrimaryMeasure  string          `json:"primaryMeasure,omitempty"`
	MetricSummaries []MetricSummary `json:"metricSummaries"`
	ExecutiveKPIs   *ExecutiveKPIs  `json:"executiveKpis,omitempty"`
	TimeKPIs        *TimeKPIs       `json:"timeKpis,omitempty"`
}

type SeriesPoint struct {
	T     string   `json:"t"`
	Sum   *float64 `json:"sum,omitempty"`
	Count int      `json:"count"`
}

type TrendPayload struct {
	TimeColumn string        `json:"timeColumn"`
	Grain      string        `json:"grain"`
	Measure    string        `json:"measure,omitempty"`
	Agg        string        `json:"agg,omitempty"`
	Series     []SeriesPoint `json:"series"`
	Anomalies  []string      `json:"anomalies"`
}

// BreakdownRow carries whichever of value, sum and count the producer computed.
type BreakdownRow struct {
	Key   string   `json:"key"`
	Value *float64 `json:"value,omitempty"`
	Sum   *float64 `json:"sum,omitempty"`
	Count *float64 `json:"count,omitempty"`
}

// Resolved returns value, else sum, else count.
func (r BreakdownRow) Resolved() *float64 {
	switch {
	case r.Value != nil:
		return finite(r.Value)
	case r.Sum != nil:
		return finite(r.Sum)
	default:
		return finite(r.Count)
	}
}

type BreakdownPayload struct {
	Dimension     string         `json:"dimension"`
	Measure       string         `json:"measure,omitempty"`
	Agg           string         `json:"agg"`
	Rows          []BreakdownRow `json:"rows"`
	CategoryCount int            `json:"categoryCount,omitempty"`
}

type DriverGroup struct {
	Dimension string   `json:"dimension"`
	Group     string   `json:"group"`
	Total     *float64 `json:"total"`
	Share     *float64 `json:"share"`
	Avg       *float64 `json:"avg,omitempty"`
	Lift      *float64 `json:"lift"`
	Count     int      `json:"count"`
	Score     *float64 `json:"score,omitempty"`
}

type Overall struct {
	Total *float64 `json:"total"`
	Avg   *float64 `json:"avg"`
	Count int      `json:"count"`
}

type DriverPayload struct {
	Measure    string        `json:"measure"`
	Overall    *Overall      `json:"overall,omitempty"`
	TopDrivers []DriverGroup `json:"topDrivers"`
}

// UnmarshalJSON decodes the envelope and the payload matching Type. A payload that does not
// fit its type is dropped rather than failing the whole block.
func (b *Block) UnmarshalJSON(data []byte) error {
	type envelope Block
	var env struct {
		envelope
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode block: %w", err)
	}
	*b = Block(env.envelope)
	b.Payload = nil
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return nil
	}
	var target any
	switch b.Type {
	case KPIBlock:
		target = &KPIPayload{}
	case TrendBlock:
		target = &TrendPayload{}
	case TopNBlock, BreakdownBlock, GeoLikeBlock:
		target = &BreakdownPayload{}
	case DriverBlock:
		target = &DriverPayload{}
	default:
		return nil
	}
	if err := json.Unmarshal(env.Payload, target); err != nil {
		return nil
	}
	b.Payload = target
	return nil
}

// DecodeBlocks reads a JSON array of blocks. Elements that are not block objects are skipped.
func DecodeBlocks(data []byte) ([]Block, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decode blocks: %w", err)
	}
	out := make([]Block, 0, len(raws))
	for _, raw := range raws {
		var b Block
		if err := json.Unmarshal(raw, &b); err != nil {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}
