package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAPIErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{
			name: "object list",
			body: `{"errors":[{"code":99,"message":"Unable to verify your credentials"}]}`,
			want: []string{"Unable to verify your credentials (code 99)"},
		},
		{
			name: "string list",
			body: `{"errors":["tweet_ids must not be empty","bad type"]}`,
			want: []string{"tweet_ids must not be empty", "bad type"},
		},
		{
			name: "oauth error description",
			body: `{"error":"invalid_client","error_description":"bad secret"}`,
			want: []string{"bad secret"},
		},
		{
			name: "no errors",
			body: `{"access_token":"x"}`,
			want: nil,
		},
		{
			name: "not json",
			body: `<html>oops</html>`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAPIErrors([]byte(tt.body)))
		})
	}
}

func TestFromStatus(t *testing.T) {
	err := FromStatus(403, "token request failed", []byte(`{"errors":[{"message":"forbidden"}]}`))

	assert.Equal(t, ErrorTypeAuth, err.Type)
	assert.Equal(t, 403, err.Code)
	assert.Equal(t, "Forbidden", err.Reason)
	assert.Equal(t, []string{"forbidden"}, err.Details)
	assert.Contains(t, err.Error(), "auth error (code 403): token request failed [Forbidden]: forbidden")
}

func TestTypeForStatus(t *testing.T) {
	assert.Equal(t, ErrorTypeNetwork, TypeForStatus(0))
	assert.Equal(t, ErrorTypeAuth, TypeForStatus(401))
	assert.Equal(t, ErrorTypeNotFound, TypeForStatus(404))
	assert.Equal(t, ErrorTypeRateLimit, TypeForStatus(429))
	assert.Equal(t, ErrorTypeServerError, TypeForStatus(503))
	assert.Equal(t, ErrorTypeUnknown, TypeForStatus(400))
}

func TestWrapUnwrap(t *testing.T) {
	cause := fmt.Errorf("dial tcp: refused")
	err := Wrap(ErrorTypeNetwork, "request failed", cause)

	assert.True(t, stderrors.Is(err, cause))

	var typed *Error
	require.True(t, stderrors.As(fmt.Errorf("outer: %w", err), &typed))
	assert.Equal(t, ErrorTypeNetwork, typed.Type)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrorTypeNetwork))
	assert.True(t, IsRetryable(ErrorTypeServerError))
	assert.False(t, IsRetryable(ErrorTypeAuth))
	assert.False(t, IsRetryable(ErrorTypeUnknown))

	assert.True(t, IsRetryableStatusCode(429))
	assert.True(t, IsRetryableStatusCode(507))
	assert.False(t, IsRetryableStatusCode(401))
	assert.False(t, IsRetryableStatusCode(400))
}
