package route

import (
	"fmt"
	"sort"
	"strings"
)

// Rule maps one path prefix to a backend service, with an optional
// prefix-substitution rewrite. Rules are immutable after the table is
// built.
type Rule struct {
	PathPrefix  string
	ServiceName string
	RewriteFrom string
	RewriteTo   string
	Description string
}

// RewritePath applies the rule's prefix substitution. A rule without a
// rewrite passes the path through unchanged.
func (r Rule) RewritePath(path string) string {
	if r.RewriteFrom == "" || !strings.HasPrefix(path, r.RewriteFrom) {
		return path
	}
	return r.RewriteTo + strings.TrimPrefix(path, r.RewriteFrom)
}

// Table is an ordered route table evaluated longest-prefix-first. It is
// read-only after construction, so lookups need no locking.
type Table struct {
	rules []Rule
}

// NewTable validates the rules and sorts them by prefix length, descending,
// so Match can take the first hit. Rules with equally long prefixes keep
// their configured order.
func NewTable(rules []Rule) (*Table, error) {
	seen := make(map[string]struct{}, len(rules))
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)

	for _, rule := range sorted {
		if !strings.HasPrefix(rule.PathPrefix, "/") {
			return nil, fmt.Errorf("route prefix %q must start with /", rule.PathPrefix)
		}
		if rule.ServiceName == "" {
			return nil, fmt.Errorf("route %q has no service name", rule.PathPrefix)
		}
		if _, dup := seen[rule.PathPrefix]; dup {
			return nil, fmt.Errorf("duplicate route prefix %q", rule.PathPrefix)
		}
		seen[rule.PathPrefix] = struct{}{}
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].PathPrefix) > len(sorted[j].PathPrefix)
	})

	return &Table{rules: sorted}, nil
}

// Match finds the most specific rule whose prefix covers the path. Prefixes
// match on segment boundaries: /api/bills covers /api/bills and
// /api/bills/42, but not /api/billsberg.
func (t *Table) Match(path string) (Rule, bool) {
	for _, rule := range t.rules {
		if matchesPrefix(path, rule.PathPrefix) {
			return rule, true
		}
	}
	return Rule{}, false
}

// Prefixes lists the table's path prefixes in match order, for diagnostics
// and the service listing.
func (t *Table) Prefixes() []string {
	prefixes := make([]string, len(t.rules))
	for i, rule := range t.rules {
		prefixes[i] = rule.PathPrefix
	}
	return prefixes
}

// Rules returns the table's rules in match order.
func (t *Table) Rules() []Rule {
	rules := make([]Rule, len(t.rules))
	copy(rules, t.rules)
	return rules
}

func matchesPrefix(path, prefix string) bool {
	if prefix == "/" {
		return true
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}
