package commands

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taskorch/tm/internal/models"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("plain error")))

	cases := map[models.ErrorKind]int{
		models.KindInvalidInput:        2,
		models.KindNotFound:            3,
		models.KindDependencyViolation: 4,
		models.KindCycleDetected:       5,
		models.KindIllegalTransition:   6,
		models.KindValidationFailed:    7,
		models.KindStoreBusy:           8,
		models.KindLockTimeout:         9,
		models.KindSchemaMismatch:      10,
		models.KindSizeExceeded:        11,
		models.KindCorrupt:             12,
		models.KindInternal:            13,
	}
	for kind, want := range cases {
		assert.Equal(t, want, ExitCode(models.E(kind, "boom")), "kind %s", kind)
	}
}

func TestExitCodeSeesThroughPrintedError(t *testing.T) {
	inner := models.E(models.KindNotFound, "no such task")
	assert.Equal(t, 3, ExitCode(printedError{err: inner}))
}

func TestExitCodeUnwrapsWrappedKinds(t *testing.T) {
	wrapped := models.Wrap(models.KindCycleDetected, errors.New("loop"), "adding dependency")
	assert.Equal(t, 5, ExitCode(wrapped))

	valErr := &models.ValidationError{TaskID: "abc12345"}
	assert.Equal(t, 7, ExitCode(valErr))
}
