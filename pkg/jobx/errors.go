package jobx

import "github.com/Abraxas-365/auralis/pkg/errx"

var jobxErrors = errx.NewRegistry("JOBX")

var (
	ErrJobNotFound    = jobxErrors.Register("JOB_NOT_FOUND", errx.TypeNotFound, 404, "Job not found")
	ErrQueueClosed    = jobxErrors.Register("QUEUE_CLOSED", errx.TypeConflict, 409, "Queue is closed")
	ErrNoHandler      = jobxErrors.Register("NO_HANDLER", errx.TypeValidation, 400, "No handler registered for job type")
	ErrInvalidJob     = jobxErrors.Register("INVALID_JOB", errx.TypeValidation, 400, "Invalid job definition")
	ErrAlreadyRunning = jobxErrors.Register("ALREADY_RUNNING", errx.TypeConflict, 409, "Worker pool is already running")
	ErrHandlerPanic   = jobxErrors.Register("HANDLER_PANIC", errx.TypeInternal, 500, "Job handler panicked")
)

// NewError builds an error from a registered jobx code. Exported for the
// queue backends living in subpackages.
func NewError(code *errx.ErrorCode) *errx.Error {
	return jobxErrors.New(code)
}
