// Package route holds the gateway's route table: an immutable, ordered set
// of path-prefix rules resolved with longest-prefix matching. Each rule
// names the backend service that owns the prefix and an optional path
// rewrite applied before proxying.
package route
