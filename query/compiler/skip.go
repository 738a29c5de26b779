package compiler

// SkipReason explains why a field or filter key was ignored.
type SkipReason string

const (
	SkipUnknownField        SkipReason = "unknown field"
	SkipCollection          SkipReason = "collection relation"
	SkipUnresolvedTarget    SkipReason = "unresolvable relation target"
	SkipUnresolvedJoin      SkipReason = "unresolvable join condition"
	SkipUnknownFilterKey    SkipReason = "unknown filter key"
	SkipUnknownFilterColumn SkipReason = "unknown relation filter column"
)

// Skip records one ignored selection field or filter key.
type Skip struct {
	// Alias is the alias the field was looked up on.
	Alias  string
	Field  string
	Reason SkipReason
}
