package logging

import (
	"log/slog"
	"strings"
	"time"
)

// Common field names for consistent logging.
const (
	FieldService      = "service"
	FieldRequestID    = "request_id"
	FieldMethod       = "method"
	FieldPath         = "path"
	FieldStatus       = "status"
	FieldDuration     = "duration_ms"
	FieldError        = "error"
	FieldQuery        = "query"
	FieldIndexes      = "indexes"
	FieldRegion       = "region"
	FieldAggregations = "aggregations"
	FieldTotalHits    = "total_hits"
	FieldJobID        = "job_id"
	FieldSavedSearch  = "saved_search_id"
	FieldSubject      = "subject"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// Method returns a slog attribute for the HTTP method.
func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

// Path returns a slog attribute for the HTTP path.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Status returns a slog attribute for the HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration returns a slog attribute for the time elapsed since start, in
// milliseconds.
func Duration(start time.Time) slog.Attr {
	return slog.Int64(FieldDuration, time.Since(start).Milliseconds())
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

// Query returns a slog attribute for a free-text query.
func Query(query string) slog.Attr {
	return slog.String(FieldQuery, query)
}

// Indexes returns a slog attribute listing the searched partitions.
func Indexes(indexes []string) slog.Attr {
	return slog.String(FieldIndexes, strings.Join(indexes, ","))
}

// Region returns a slog attribute for the region drill-down token.
func Region(region string) slog.Attr {
	return slog.String(FieldRegion, region)
}

// Aggregations returns a slog attribute listing the requested aggregations.
func Aggregations(names []string) slog.Attr {
	return slog.String(FieldAggregations, strings.Join(names, ","))
}

// TotalHits returns a slog attribute for the number of matching documents.
func TotalHits(n int64) slog.Attr {
	return slog.Int64(FieldTotalHits, n)
}

// JobID returns a slog attribute for an async search job.
func JobID(id string) slog.Attr {
	return slog.String(FieldJobID, id)
}

// SavedSearchID returns a slog attribute for a saved search.
func SavedSearchID(id string) slog.Attr {
	return slog.String(FieldSavedSearch, id)
}

// Subject returns a slog attribute for a message subject.
func Subject(subject string) slog.Attr {
	return slog.String(FieldSubject, subject)
}
