package profile

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const profileSchema = `{
  "type": "object",
  "required": ["columns"],
  "properties": {
    "columns": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "inferredType", "roleCandidate"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "inferredType": {"enum": ["number", "string", "date"]},
          "roleCandidate": {"enum": ["measure", "dimension", "id", "time", "geo"]},
          "nullPct": {"type": "number", "minimum": 0, "maximum": 1},
          "distinctCount": {"type": "integer", "minimum": 0}
        }
      }
    }
  }
}`

// ValidationError lists every schema violation found in a profile document.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid profile: %s", strings.Join(e.Problems, "; "))
}

// ValidateProfileJSON checks an externally produced profile document against the column schema.
func ValidateProfileJSON(doc []byte) error {
	res, err := gojsonschema.Validate(gojsonschema.NewStringLoader(profileSchema), gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("validate profile: %w", err)
	}
	if res.Valid() {
		return nil
	}
	problems := make([]string, len(res.Errors()))
	for i, desc := range res.Errors() {
		problems[i] = desc.String()
	}
	return &ValidationError{Problems: problems}
}

// ParseProfileJSON validates and decodes a profile document. A column without nullPct is
// treated as fully null so it never wins a low-null preference.
func ParseProfileJSON(doc []byte) (*Profile, error) {
	if err := ValidateProfileJSON(doc); err != nil {
		return nil, err
	}
	var raw struct {
		Profile
		Columns []struct {
			ColumnProfile
			NullPct *float64 `json:"nullPct"`
		} `json:"columns"`
	}
	if err := json.Unmarshal(doc, &raw); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	p := raw.Profile
	p.Columns = make([]ColumnProfile, len(raw.Columns))
	for i, c := range raw.Columns {
		cp := c.ColumnProfile
		cp.NullPct = 1
		if c.NullPct != nil {
			cp.NullPct = *c.NullPct
		}
		p.Columns[i] = cp
	}
	if p.DatasetStats.ColumnCount == 0 {
		p.DatasetStats.ColumnCount = len(p.Columns)
	}
	return &p, nil
}
