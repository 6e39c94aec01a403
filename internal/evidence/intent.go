package evidence

import (
	"regexp"
	"strings"

	"github.com/KaramelBytes/datalens-cli/internal/profile"
)

// Intent is a coarse classification of what a dataset is about.
type Intent string

const (
	IntentSales       Intent = "sales"
	IntentFinancial   Intent = "financial"
	IntentOpportunity Intent = "opportunity"
	IntentOperations  Intent = "operations"
	IntentGeneric     Intent = "generic"
)

// Intents lists the scored intents in tie-break order; generic is the fallback.
var Intents = []Intent{IntentSales, IntentFinancial, IntentOpportunity, IntentOperations}

// Keywords are matched as substrings of underscore-normalized column names.
var Keywords = map[Intent][]string{
	IntentSales:       {"order", "customer", "product", "qty", "quantity", "unit_price", "price", "sales", "sku", "revenue"},
	IntentFinancial:   {"amount", "expense", "vendor", "invoice", "payment", "balance", "cost"},
	IntentOpportunity: {"opportunity", "agency", "naics", "solicitation", "notice", "award", "set_aside"},
	IntentOperations:  {"ticket", "case", "call", "duration", "sla", "agent", "resolution"},
}

type roleBonus struct {
	roles []profile.Role
	re    *regexp.Regexp
}

var roleBonuses = map[Intent]roleBonus{
	IntentSales:       {[]profile.Role{profile.RoleMeasure}, regexp.MustCompile(`revenue|sales|price|quantity|qty|unit_price`)},
	IntentFinancial:   {[]profile.Role{profile.RoleMeasure}, regexp.MustCompile(`amount|cost|expense|balance`)},
	IntentOpportunity: {[]profile.Role{profile.RoleDimension, profile.RoleID}, regexp.MustCompile(`agency|naics|set_aside|solicitation|notice`)},
	IntentOperations:  {[]profile.Role{profile.RoleDimension, profile.RoleMeasure}, regexp.MustCompile(`duration|sla|agent|ticket|case|call`)},
}

var spaceRunRe = regexp.MustCompile(`\s+`)

// NormalizeName lower-cases a column name and turns whitespace runs into underscores.
func NormalizeName(name string) string {
	return spaceRunRe.ReplaceAllString(strings.ToLower(name), "_")
}

// ScoreColumn returns the per-intent score contributed by one column.
func ScoreColumn(name string, role profile.Role) map[Intent]int {
	n := NormalizeName(name)
	out := make(map[Intent]int, len(Intents))
	for _, intent := range Intents {
		s := 0
		for _, kw := range Keywords[intent] {
			if strings.Contains(n, kw) {
				s += 2
			}
		}
		b := roleBonuses[intent]
		for _, r := range b.roles {
			if strings.ToLower(string(role)) == string(r) && b.re.MatchString(n) {
				s++
				break
			}
		}
		out[intent] = s
	}
	return out
}

// DetectDatasetIntent sums column scores and returns the first strictly highest intent,
// or generic when nothing scores.
func DetectDatasetIntent(p *profile.Profile) Intent {
	if p == nil {
		return IntentGeneric
	}
	totals := map[Intent]int{}
	for _, c := range p.Columns {
		for intent, s := range ScoreColumn(c.Name, c.RoleCandidate) {
			totals[intent] += s
		}
	}
	best, bestScore := IntentGeneric, 0
	for _, intent := range Intents {
		if totals[intent] > bestScore {
			best, bestScore = intent, totals[intent]
		}
	}
	return best
}
