package messaging

// Subject constants for the log search message bus.
// Follow the pattern: {domain}.{action}.{resource}
const (
	// Search job subjects - requests for log search execution
	SubjectLogSearchJobsQuery = "logsearch.jobs.query" // Ad-hoc and saved search requests

	// Search result subjects - responses from the log search worker
	SubjectLogSearchResultsQuery = "logsearch.results.query" // Search results (append .{id} for a specific job)
)

// Queue group names for load-balanced consumers.
// Workers in the same queue group share messages (each message processed once).
const (
	QueueLogSearchWorkers = "logsearch-workers"
)

// HeaderRequestID carries the caller's request id on job messages.
const HeaderRequestID = "X-Request-ID"

// SearchQueryResultSubject returns the subject for a specific job's results.
// Example: logsearch.results.query.abc123
func SearchQueryResultSubject(jobID string) string {
	return SubjectLogSearchResultsQuery + "." + jobID
}
