package progress

import (
	"fmt"
	"io"
	"time"
)

// Stage represents a submission stage
type Stage struct {
	Number      int
	Total       int
	Name        string
	Description string
}

// Stages of a submission, in order
var (
	StageValidate = Stage{1, 3, "validate", "Validating parameters..."}
	StageDispatch = Stage{2, 3, "dispatch", "Sending to display and effects board..."}
	StageRecord   = Stage{3, 3, "record", "Recording submission..."}
)

// Reporter handles CLI progress output
type Reporter struct {
	out       io.Writer
	startTime time.Time
	verbose   bool
}

// NewReporter creates a new progress reporter
func NewReporter(out io.Writer, verbose bool) *Reporter {
	return &Reporter{
		out:       out,
		startTime: time.Now(),
		verbose:   verbose,
	}
}

// StartStage announces the beginning of a stage
func (r *Reporter) StartStage(stage Stage) {
	fmt.Fprintf(r.out, "[%d/%d] %s\n", stage.Number, stage.Total, stage.Description)
}

// Update shows a sub-progress message within a stage
func (r *Reporter) Update(format string, args ...any) {
	if r.verbose {
		fmt.Fprintf(r.out, "      %s\n", fmt.Sprintf(format, args...))
	}
}

// StageComplete shows completion message for a stage
func (r *Reporter) StageComplete(format string, args ...any) {
	fmt.Fprintf(r.out, "      %s\n", fmt.Sprintf(format, args...))
}

// Done announces successful completion
func (r *Reporter) Done(output fmt.Stringer) {
	elapsed := time.Since(r.startTime)
	fmt.Fprintf(r.out, "Done! Effect %s submitted in %.2f seconds\n", output, elapsed.Seconds())
}

// Error announces an error
func (r *Reporter) Error(err error) {
	fmt.Fprintf(r.out, "Error: %s\n", err)
}

// Warning announces a non-fatal warning
func (r *Reporter) Warning(format string, args ...any) {
	fmt.Fprintf(r.out, "Warning: %s\n", fmt.Sprintf(format, args...))
}
