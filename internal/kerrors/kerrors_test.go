package kerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelMatching(t *testing.T) {
	err := Config("population must be > 0")
	assert.True(t, errors.Is(err, ErrConfig))
	assert.False(t, errors.Is(err, ErrBounds))
}

func TestWrappedCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Io("checkpoint write failed", cause)
	assert.True(t, errors.Is(err, ErrIo))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "disk full")
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "BoundsError", KindBounds.String())
	assert.Equal(t, "CommandError", KindCommand.String())
}

func TestNumericMonitorClampsInReleaseMode(t *testing.T) {
	m := &NumericMonitor{}
	assert.NoError(t, m.Check("non-finite belief"))
	assert.NoError(t, m.Check("negative wealth"))
	assert.Equal(t, uint64(2), m.Warnings)
}

func TestNumericMonitorFailsFastInStrictMode(t *testing.T) {
	m := &NumericMonitor{Strict: true}
	err := m.Check("negative wealth")
	assert.True(t, errors.Is(err, ErrNumeric))
	assert.Equal(t, uint64(0), m.Warnings)
}

func TestNilNumericMonitorBehavesAsNonStrict(t *testing.T) {
	var m *NumericMonitor
	assert.NoError(t, m.Check("anything"))
}
