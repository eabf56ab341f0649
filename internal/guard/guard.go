// Package guard decides whether a catalog site may enter user-owned
// collections (visited set, favorites, inventory).
package guard

import (
	"strings"

	"culturehub-api/internal/model"
)

// DefaultPlaceholders are the name/category values produced by the catalog
// import when the source data carries nothing useful.
var DefaultPlaceholders = []string{"unknown", "uncategorized"}

// Guard rejects sites whose name or category is a placeholder.
type Guard struct {
	placeholders map[string]struct{}
}

// New creates a guard for the given placeholder values. Matching is
// case-insensitive and ignores surrounding whitespace; the empty string is
// always a placeholder.
func New(placeholders []string) *Guard {
	g := &Guard{placeholders: map[string]struct{}{"": {}}}
	for _, p := range placeholders {
		g.placeholders[normalize(p)] = struct{}{}
	}
	return g
}

// IsEligible reports whether the site is a real, named, categorized site.
func (g *Guard) IsEligible(site *model.Site) bool {
	if site == nil {
		return false
	}
	return !g.isPlaceholder(site.Name) && !g.isPlaceholder(site.Category)
}

// Filter returns the eligible sites, preserving order.
func (g *Guard) Filter(sites []model.Site) []model.Site {
	out := make([]model.Site, 0, len(sites))
	for i := range sites {
		if g.IsEligible(&sites[i]) {
			out = append(out, sites[i])
		}
	}
	return out
}

func (g *Guard) isPlaceholder(v string) bool {
	_, ok := g.placeholders[normalize(v)]
	return ok
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
