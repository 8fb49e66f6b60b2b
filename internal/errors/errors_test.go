package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := Newf(CodeInsufficientData, "edge %s: n=%d below floor %d", "opinion", 5, 30)
	assert.Equal(t, "INSUFFICIENT_DATA: edge opinion: n=5 below floor 30", err.Error())
}

func TestWrapAndUnwrap(t *testing.T) {
	cause := fmt.Errorf("open file: no such file")
	err := Wrap(cause, CodeIngest, "read responses")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeIngest, CodeOf(err))
}

func TestCodeOfThroughChain(t *testing.T) {
	inner := New(CodeConfiguration, "edge references unknown variable")
	outer := fmt.Errorf("build model: %w", inner)

	assert.Equal(t, CodeConfiguration, CodeOf(outer))
	assert.True(t, IsConfiguration(outer))
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(fmt.Errorf("plain")))
	assert.False(t, IsConfiguration(fmt.Errorf("plain")))
}
