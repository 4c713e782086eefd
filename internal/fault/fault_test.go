package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{errors.New("other"), ""},
		{ErrDuplicateElement, "DuplicateElement"},
		{fmt.Errorf("find %q: %w", "x", ErrUnknownElement), "UnknownElement"},
		{fmt.Errorf("parse: %w", ErrInvalidValue), "InvalidValue"},
		{fmt.Errorf("parse: %w", ErrMalformedCommand), "MalformedCommand"},
		{fmt.Errorf("bind: %w", ErrTransportUnavailable), "TransportUnavailable"},
		{fmt.Errorf("unlink: %w", ErrResourceCleanup), "ResourceCleanupFailure"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err))
	}
}

func TestPerUpdate(t *testing.T) {
	assert.True(t, PerUpdate(fmt.Errorf("x: %w", ErrInvalidValue)))
	assert.True(t, PerUpdate(ErrMalformedCommand))
	assert.True(t, PerUpdate(ErrUnknownElement))
	assert.False(t, PerUpdate(ErrTransportUnavailable))
	assert.False(t, PerUpdate(ErrDuplicateElement))
	assert.False(t, PerUpdate(nil))
}
