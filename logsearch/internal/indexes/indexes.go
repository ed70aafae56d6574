// Package indexes maps a time window onto the monthly log partitions that
// hold its documents.
package indexes

import (
	"strings"
	"time"

	"github.com/telhawk-systems/logsearch/logsearch/internal/timewindow"
)

// DefaultPrefix names the monthly log partitions.
const DefaultPrefix = "api-umbrella-logs"

// Resolver produces partition names of the form <Prefix>-<YYYY-MM>.
type Resolver struct {
	Prefix string
}

// NewResolver returns a resolver for prefix, falling back to DefaultPrefix.
func NewResolver(prefix string) Resolver {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Resolver{Prefix: prefix}
}

// Resolve lists one partition per UTC calendar month touched by the window,
// oldest first.
func (r Resolver) Resolve(w timewindow.Window) []string {
	prefix := r.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}

	start := w.Start.UTC()
	end := w.End.UTC()
	month := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)

	var out []string
	for !month.After(last) {
		out = append(out, prefix+"-"+month.Format("2006-01"))
		month = month.AddDate(0, 1, 0)
	}
	return out
}

// Join renders partitions the way the search API expects them.
func Join(indexes []string) string {
	return strings.Join(indexes, ",")
}
