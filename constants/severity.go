package constants

// Severity grades a validation finding.
type Severity string

// Stable values (surfaced verbatim in exports and API responses).
const (
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// StageStatus tracks a document's progress through the pipeline, for logging.
type StageStatus string

const (
	StageQueued   StageStatus = "QUEUED"
	StageRunning  StageStatus = "RUNNING"
	StageOCROK    StageStatus = "OCR_OK"
	StageParsedOK StageStatus = "PARSED_OK"
	StageFailed   StageStatus = "FAILED"
)
