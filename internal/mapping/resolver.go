package mapping

import (
	"strings"

	"github.com/rpattn/salesingest/internal/domain"
)

// Resolver suggests optional column mappings from detected headers.
type Resolver struct {
	catalog Catalog
}

// NewResolver creates a resolver bound to an alias catalog.
func NewResolver(catalog Catalog) *Resolver {
	return &Resolver{catalog: catalog}
}

// ResolveOptional maps each optional column to the detected header matching
// its highest-priority alias. Unmatched columns are absent from the result.
// Required columns are never resolved.
func (r *Resolver) ResolveOptional(detected []string, columns []domain.Column) domain.ColumnMapping {
	// When several headers normalize to the same key the lexically smallest
	// wins, so the result does not depend on header order.
	byKey := make(map[string]string, len(detected))
	for _, header := range detected {
		key := Normalize(header)
		if current, ok := byKey[key]; !ok || header < current {
			byKey[key] = header
		}
	}

	resolved := domain.ColumnMapping{}
	for _, col := range columns {
		if !col.IsOptional() {
			continue
		}
		for _, alias := range r.catalog.Aliases(col) {
			if actual, ok := byKey[Normalize(alias)]; ok {
				resolved[col] = actual
				break
			}
		}
	}
	return resolved
}

// ValidateRequired fails with *domain.IncompleteMappingError when any
// required column is unmapped.
func ValidateRequired(m domain.ColumnMapping) error {
	if missing := m.MissingRequired(); len(missing) > 0 {
		return &domain.IncompleteMappingError{Missing: missing}
	}
	return nil
}

// Merge builds the final mapping. Precedence: required, then the caller's
// optional overrides, then the system suggestion.
func Merge(system, override, required domain.ColumnMapping) domain.ColumnMapping {
	final := system.Clone()
	for col, actual := range final {
		if strings.TrimSpace(actual) == "" {
			delete(final, col)
		}
	}
	for _, layer := range []domain.ColumnMapping{override, required} {
		for col, actual := range layer {
			if strings.TrimSpace(actual) == "" {
				continue
			}
			final[col] = actual
		}
	}
	return final
}

// Reusable reports whether a stored mapping applies silently to an upload:
// every actual header it references must be present verbatim.
func Reusable(stored domain.ColumnMapping, detected []string) bool {
	if len(stored) == 0 {
		return false
	}
	present := make(map[string]struct{}, len(detected))
	for _, h := range detected {
		present[h] = struct{}{}
	}
	for _, actual := range stored.ActualColumns() {
		if _, ok := present[actual]; !ok {
			return false
		}
	}
	return true
}
