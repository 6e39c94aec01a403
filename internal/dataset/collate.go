package dataset

import (
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// NewCollator returns an English collator for locale-aware name ordering.
// A collator is not safe for concurrent use; create one per sort.
func NewCollator() *collate.Collator {
	return collate.New(language.English)
}

// SortNames sorts names in place with locale-aware ordering.
func SortNames(names []string) {
	NewCollator().SortStrings(names)
}
