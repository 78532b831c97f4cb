package commands

import (
	"errors"

	"github.com/taskorch/tm/internal/models"
)

// ExitCode maps an error to the CLI exit code: 0 success, a distinct code per
// error kind, and 1 for errors that carry no kind.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var se *models.Error
	var ve *models.ValidationError
	if !errors.As(err, &se) && !errors.As(err, &ve) {
		return 1
	}
	switch models.KindOf(err) {
	case models.KindInvalidInput:
		return 2
	case models.KindNotFound:
		return 3
	case models.KindDependencyViolation:
		return 4
	case models.KindCycleDetected:
		return 5
	case models.KindIllegalTransition:
		return 6
	case models.KindValidationFailed:
		return 7
	case models.KindStoreBusy:
		return 8
	case models.KindLockTimeout:
		return 9
	case models.KindSchemaMismatch:
		return 10
	case models.KindSizeExceeded:
		return 11
	case models.KindCorrupt:
		return 12
	case models.KindInternal:
		return 13
	}
	return 1
}
