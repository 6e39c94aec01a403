// Package insight executes an analysis plan over typed rows and produces evidence blocks.
package insight

import (
	"github.com/KaramelBytes/datalens-cli/internal/evidence"
	"github.com/KaramelBytes/datalens-cli/internal/profile"
)

// BlockSpec requests one block. Empty fields fall back to executor defaults.
type BlockSpec struct {
	Type       evidence.BlockType `json:"type" yaml:"type"`
	Title      string             `json:"title,omitempty" yaml:"title,omitempty"`
	TimeColumn string             `json:"timeColumn,omitempty" yaml:"timeColumn,omitempty"`
	Grain      string             `json:"grain,omitempty" yaml:"grain,omitempty"`
	Dimension  string             `json:"dimension,omitempty" yaml:"dimension,omitempty"`
	Dimensions []string           `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	Measure    string             `json:"measure,omitempty" yaml:"measure,omitempty"`
	Agg        string             `json:"agg,omitempty" yaml:"agg,omitempty"`
	Limit      int                `json:"limit,omitempty" yaml:"limit,omitempty"`
	// ExcludeOther drops the "Other" remainder row from top-N output.
	ExcludeOther  bool `json:"excludeOther,omitempty" yaml:"excludeOther,omitempty"`
	MaxCategories int  `json:"maxCategories,omitempty" yaml:"maxCategories,omitempty"`
}

// Selections are plan-wide choices shared by every block.
type Selections struct {
	PrimaryMeasure string   `json:"primaryMeasure,omitempty" yaml:"primaryMeasure,omitempty"`
	TimeColumn     string   `json:"timeColumn,omitempty" yaml:"timeColumn,omitempty"`
	Grain          string   `json:"grain,omitempty" yaml:"grain,omitempty"`
	TopDims        []string `json:"topDims,omitempty" yaml:"topDims,omitempty"`
}

type Plan struct {
	Blocks     []BlockSpec `json:"blocks" yaml:"blocks"`
	Selections Selections  `json:"selections" yaml:"selections"`
}

// Aggregations.
const (
	AggSum   = "sum"
	AggCount = "count"
	AggAvg   = "avg"
)

// DefaultPlan builds KPI, trend, top-N, breakdown, geo and driver blocks from the columns the
// profile exposes. Blocks whose inputs are absent are left out.
func DefaultPlan(p *profile.Profile, metric evidence.Metric, grain string) Plan {
	if !ValidGrain(grain) {
		grain = GrainMonth
	}
	cs := detectColumns(p)
	measure := ""
	if !metric.IsRowCount() {
		measure = metric.Column
	}
	agg := AggCount
	if measure != "" {
		agg = AggSum
	}

	var dims []string
	if p != nil {
		for _, c := range p.Columns {
			if c.RoleCandidate == profile.RoleDimension && c.InferredType == profile.TypeString {
				dims = append(dims, c.Name)
			}
		}
	}
	timeCol := ""
	if len(cs.date) > 0 {
		timeCol = cs.date[0]
	}

	plan := Plan{
		Selections: Selections{PrimaryMeasure: measure, TimeColumn: timeCol, Grain: grain, TopDims: dims},
		Blocks:     []BlockSpec{{Type: evidence.KPIBlock}},
	}
	if timeCol != "" {
		plan.Blocks = append(plan.Blocks, BlockSpec{Type: evidence.TrendBlock, TimeColumn: timeCol, Grain: grain, Measure: measure, Agg: agg})
	}
	if len(dims) > 0 {
		plan.Blocks = append(plan.Blocks, BlockSpec{Type: evidence.TopNBlock, Dimension: dims[0], Measure: measure, Agg: agg, Limit: 10})
	}
	if len(dims) > 1 {
		plan.Blocks = append(plan.Blocks, BlockSpec{Type: evidence.BreakdownBlock, Dimension: dims[1], Measure: measure, Agg: agg})
	}
	if p != nil {
		if geo := p.ColumnsWithRole(profile.RoleGeo); len(geo) > 0 {
			plan.Blocks = append(plan.Blocks, BlockSpec{Type: evidence.GeoLikeBlock, Dimension: geo[0], Measure: measure, Agg: agg})
		}
	}
	if measure != "" {
		plan.Blocks = append(plan.Blocks, BlockSpec{Type: evidence.DriverBlock, Measure: measure})
	}
	return plan
}
