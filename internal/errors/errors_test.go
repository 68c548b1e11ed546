package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProcessingErrorMatching(t *testing.T) {
	cause := stderrors.New("unexpected EOF")
	err := fmt.Errorf("upload: %w", NewImageReadError("id.png", cause))

	require.Equal(t, ErrorImageRead, CodeOf(err))
	require.True(t, HasCode(err, ErrorImageRead))
	require.False(t, HasCode(err, ErrorNoNameFound))
	require.True(t, stderrors.Is(err, &ProcessingError{Code: ErrorImageRead}))
	require.True(t, stderrors.Is(err, cause))

	require.Equal(t, ErrorCode(""), CodeOf(cause))
	require.Equal(t, ErrorCode(""), CodeOf(nil))
}

func TestToMap(t *testing.T) {
	m := NewMalformedNameError("Jane Ann Doe", 3).WithRequestID("req-1").ToMap()

	require.Equal(t, "MALFORMED_NAME", m["error_code"])
	require.Equal(t, "req-1", m["request_id"])
	require.Equal(t, "Jane Ann Doe", m["candidate"])
	require.Equal(t, 3, m["tokens"])
	require.NotContains(t, m, "cause")

	m = NewOCRFailedError("tesseract", stderrors.New("no tessdata")).ToMap()
	require.Equal(t, "no tessdata", m["cause"])
	require.NotContains(t, m, "request_id")
}

func TestErrorString(t *testing.T) {
	require.Equal(t, "NO_NAME_FOUND: Could not extract a name from the document", NewNoNameFoundError(0).Error())
	require.Contains(t, NewStorageFailedError("write", stderrors.New("disk full")).Error(), "caused by: disk full")
}
