package profile

import "github.com/KaramelBytes/datalens-cli/internal/dataset"

// InferredType is the storage type a column was inferred to hold.
type InferredType string

const (
	TypeNumber InferredType = "number"
	TypeString InferredType = "string"
	TypeDate   InferredType = "date"
)

// Role is the semantic role assigned to a column.
type Role string

const (
	RoleMeasure   Role = "measure"
	RoleDimension Role = "dimension"
	RoleID        Role = "id"
	RoleTime      Role = "time"
	RoleGeo       Role = "geo"
)

// ColumnProfile describes one column. NullPct is the fraction of sampled rows holding a
// null-like value.
type ColumnProfile struct {
	Name          string          `json:"name"`
	InferredType  InferredType    `json:"inferredType"`
	RoleCandidate Role            `json:"roleCandidate"`
	NullPct       float64         `json:"nullPct"`
	DistinctCount int             `json:"distinctCount"`
	SampleValues  []dataset.Value `json:"sampleValues,omitempty"`
}

// IsNumeric reports a measure role or number type.
func (c ColumnProfile) IsNumeric() bool {
	return c.RoleCandidate == RoleMeasure || c.InferredType == TypeNumber
}

type DatasetStats struct {
	RowCount         int `json:"rowCount"`
	ColumnCount      int `json:"columnCount"`
	ProfiledRowCount int `json:"profiledRowCount"`
}

type Flags struct {
	HasTime        bool `json:"hasTime"`
	HasGeo         bool `json:"hasGeo"`
	HasNumeric     bool `json:"hasNumeric"`
	HasCategorical bool `json:"hasCategorical"`
	HasText        bool `json:"hasText"`
}

// ParseIssue counts cells in a column that did not match its inferred type.
type ParseIssue struct {
	Column string `json:"column"`
	Type   string `json:"type"`
	Count  int    `json:"count"`
	Hint   string `json:"hint,omitempty"`
}

type Missingness struct {
	OverallMissingPct       float64  `json:"overallMissingPct"`
	ColumnsOver50PctMissing []string `json:"columnsOver50PctMissing"`
	ColumnsOver90PctMissing []string `json:"columnsOver90PctMissing"`
}

type Quality struct {
	DuplicatesPct      float64      `json:"duplicatesPct"`
	MissingnessSummary Missingness  `json:"missingnessSummary"`
	ParseIssues        []ParseIssue `json:"parseIssues"`
}

// Profile is the per-dataset summary consumed by intent detection, field derivation and
// metric selection.
type Profile struct {
	DatasetStats DatasetStats    `json:"datasetStats"`
	Columns      []ColumnProfile `json:"columns"`
	Flags        Flags           `json:"flags"`
	Quality      Quality         `json:"quality"`
}

// Column returns the profile for name.
func (p *Profile) Column(name string) (ColumnProfile, bool) {
	if p == nil {
		return ColumnProfile{}, false
	}
	for _, c := range p.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnProfile{}, false
}

// ColumnsWithRole lists column names holding role, in profile order.
func (p *Profile) ColumnsWithRole(role Role) []string {
	if p == nil {
		return nil
	}
	var out []string
	for _, c := range p.Columns {
		if c.RoleCandidate == role {
			out = append(out, c.Name)
		}
	}
	return out
}
