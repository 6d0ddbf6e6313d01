package entity

import "fmt"

// DataSourceError means a configured archive or band does not exist in the
// raster engine. It is raised at resolve time, before any frame work, and is
// never retried within a run.
type DataSourceError struct {
	Archive string
	Band    string
	Err     error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("data source %q band %q unavailable: %v", e.Archive, e.Band, e.Err)
}

func (e *DataSourceError) Unwrap() error { return e.Err }

// MissingDataError means the lights archive has no tile for a requested year.
// The whole run aborts rather than silently skipping the year, since a gap
// would desynchronize the sequencer's year ordering.
type MissingDataError struct {
	Year int
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("no nighttime lights tile for year %d", e.Year)
}

// ExportRejectedError means the render service declined the export task.
// Submission is fire-and-forget; a rejection is surfaced, never retried.
type ExportRejectedError struct {
	Task   string
	Reason string
}

func (e *ExportRejectedError) Error() string {
	return fmt.Sprintf("export task %q rejected: %s", e.Task, e.Reason)
}
