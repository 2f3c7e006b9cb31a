package common

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"wrapped transient", Transient(errors.New("reset")), true},
		{"deadline", fmt.Errorf("chat: %w", context.DeadlineExceeded), true},
		{"server error", &HTTPStatusError{URL: "https://www.sec.gov", StatusCode: 503}, true},
		{"rate limited", &HTTPStatusError{URL: "https://www.sec.gov", StatusCode: 429}, true},
		{"not found", &HTTPStatusError{URL: "https://www.sec.gov", StatusCode: 404}, false},
		{"malformed", Malformed("no JSON object in %q", "hello"), false},
		{"configuration", &ConfigurationError{Field: "edgar.user_agent", Reason: "required"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestTransientDoesNotDoubleWrap(t *testing.T) {
	err := Transient(errors.New("timeout"))
	assert.Same(t, err, Transient(err))
	assert.Nil(t, Transient(nil))
}

func TestDataIntegrityError(t *testing.T) {
	err := fmt.Errorf("put: %w", &DataIntegrityError{FilingID: "0000320193-24-000001", Field: "company_id", Stored: "320193", Incoming: "789019"})
	assert.ErrorIs(t, err, ErrDataIntegrity)
	assert.Contains(t, err.Error(), "company_id")
}

func TestCallSafely(t *testing.T) {
	err := CallSafely(arbor.NewLogger(), "rules", func() error {
		var m map[string]int
		m["x"] = 1
		return nil
	})

	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "rules", panicErr.Name)
	assert.NotEmpty(t, panicErr.Stack)

	sentinel := errors.New("plain failure")
	assert.Same(t, sentinel, CallSafely(nil, "rules", func() error { return sentinel }))
}

func TestWriteCrashFile(t *testing.T) {
	InstallCrashHandler(t.TempDir())

	path := WriteCrashFile("boom", "goroutine 1 [running]:")
	require.NotEmpty(t, path)
	assert.True(t, strings.HasPrefix(path, CrashLogDir))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "panic: boom")
	assert.Contains(t, string(data), "goroutines:")
}

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	assert.True(t, strings.HasPrefix(a, "run_"))
	assert.NotEqual(t, a, b)
}
