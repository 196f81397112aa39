package constants

// AnalysisStatus is the externally visible status of a canonical record.
type AnalysisStatus string

// Stable values (store these exact strings in DB).
const (
	StatusPending   AnalysisStatus = "PENDING"
	StatusSucceeded AnalysisStatus = "SUCCEEDED" // terminal
	StatusFailed    AnalysisStatus = "FAILED"    // terminal
)

// IsTerminal reports whether the status can no longer change.
func (s AnalysisStatus) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// RunState is the internal state of one pipeline run.
type RunState string

const (
	RunPending             RunState = "PENDING"
	RunStructuredAttempted RunState = "STRUCTURED_ATTEMPTED" // structured extractor concluded
	RunOCRAttempted        RunState = "OCR_ATTEMPTED"        // OCR analyzer concluded
	RunSucceeded           RunState = "SUCCEEDED"            // terminal
	RunFailed              RunState = "FAILED"               // terminal
)

// IsTerminal reports whether the run state is final.
func (s RunState) IsTerminal() bool {
	return s == RunSucceeded || s == RunFailed
}

// Status projects a run state onto the record status.
func (s RunState) Status() AnalysisStatus {
	switch s {
	case RunSucceeded:
		return StatusSucceeded
	case RunFailed:
		return StatusFailed
	default:
		return StatusPending
	}
}

// ExtractionSource records which extractor produced a canonical record.
type ExtractionSource string

const (
	SourceStructured ExtractionSource = "STRUCTURED"
	SourceOCR        ExtractionSource = "OCR"
)
