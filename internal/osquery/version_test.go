package osquery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hyprwatch/shadow/internal/command"
)

func TestExtractVersion(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    string
		wantErr bool
	}{
		{"osqueryd banner", "osqueryd version 5.20.0", "5.20.0", false},
		{"trailing newline", "osqueryd version 5.12.1\n", "5.12.1", false},
		{"multiline", "I1016 flags\nosqueryd version 5.20.0\n", "5.20.0", false},
		{"no version", "usage: osqueryd [options]", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractVersion(tt.output)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadVersion(t *testing.T) {
	runner := &mockRunner{}
	runner.On("Run", mock.Anything, "/opt/osqueryd", []string{"--version"}).
		Return(&command.ExitResult{Stdout: []byte("osqueryd version 5.20.0\n")}, nil)

	got, err := ReadVersion(context.Background(), runner, "/opt/osqueryd")
	require.NoError(t, err)
	assert.Equal(t, "5.20.0", got)
	runner.AssertExpectations(t)
}

func TestReadVersion_Stderr(t *testing.T) {
	runner := &mockRunner{}
	runner.On("Run", mock.Anything, "osqueryd", []string{"--version"}).
		Return(&command.ExitResult{Stderr: []byte("osqueryd version 5.19.0")}, nil)

	got, err := ReadVersion(context.Background(), runner, "osqueryd")
	require.NoError(t, err)
	assert.Equal(t, "5.19.0", got)
}

func TestReadVersion_Failures(t *testing.T) {
	runner := &mockRunner{}
	runner.On("Run", mock.Anything, "bad", []string{"--version"}).
		Return(&command.ExitResult{Code: 1, Stderr: []byte("boom\n")}, nil)
	runner.On("Run", mock.Anything, "missing", []string{"--version"}).
		Return(nil, errors.New("exec: not found"))

	_, err := ReadVersion(context.Background(), runner, "bad")
	var qErr *QueryError
	require.ErrorAs(t, err, &qErr)
	assert.Equal(t, 1, qErr.ExitCode)
	assert.Equal(t, "boom", qErr.Stderr)

	_, err = ReadVersion(context.Background(), runner, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
