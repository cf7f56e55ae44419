package constants

// JobStatus is the canonical status for a document extraction job.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusQueued    JobStatus = "QUEUED"    // waiting in the processing queue
	JobStatusRunning   JobStatus = "RUNNING"   // pipeline in progress
	JobStatusCompleted JobStatus = "COMPLETED" // all pages reconciled (failures may be recorded per page)
	JobStatusFailed    JobStatus = "FAILED"    // document could not be loaded at all
)
