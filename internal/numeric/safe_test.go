package numeric

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
)

func TestSafeNumber(t *testing.T) {
	cases := []struct {
		in   dataset.Value
		want float64
		ok   bool
	}{
		{dataset.Number(4), 4, true},
		{dataset.Number(math.NaN()), 0, false},
		{dataset.Text(" $1,250.50 "), 1250.5, true},
		{dataset.Text("-3"), -3, true},
		{dataset.Text("1e3"), 1000, true},
		{dataset.Text("$"), 0, false},
		{dataset.Text(""), 0, false},
		{dataset.Text("12kg"), 0, false},
		{dataset.Text("Infinity"), 0, false},
		{dataset.Null(), 0, false},
	}
	for _, tc := range cases {
		got, ok := SafeNumber(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in.String())
		assert.Equal(t, tc.want, got, tc.in.String())
	}
}

func TestLeadingFloat(t *testing.T) {
	got, ok := LeadingFloat(dataset.Text("12kg"))
	assert.True(t, ok)
	assert.Equal(t, 12.0, got)

	got, ok = LeadingFloat(dataset.Text("$ 1,000.5 USD"))
	assert.True(t, ok)
	assert.Equal(t, 1000.5, got)

	_, ok = LeadingFloat(dataset.Text("abc"))
	assert.False(t, ok)
	_, ok = LeadingFloat(dataset.Null())
	assert.False(t, ok)
}
