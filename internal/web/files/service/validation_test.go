package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestSanitizeFileName makes sure path traversal and control characters
// cannot survive into a blob key.
func TestSanitizeFileName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "report.pdf", "report.pdf"},
		{"traversal", "../../etc/passwd", "etcpasswd"},
		{"windows separators", `..\..\boot.ini`, "boot.ini"},
		{"control characters", "a\x00b\x1fc.txt", "abc.txt"},
		{"surrounding spaces", "  notes.txt  ", "notes.txt"},
		{"unicode kept", "日報.pdf", "日報.pdf"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, SanitizeFileName(tc.in))
		})
	}
}

// TestValidateFileName rejects empty, oversized and non-utf8 names.
func TestValidateFileName(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateFileName("report.pdf"))
	require.ErrorIs(t, ValidateFileName(""), ErrValidation)
	require.ErrorIs(t, ValidateFileName(strings.Repeat("a", 256)), ErrValidation)
	require.ErrorIs(t, ValidateFileName(string([]byte{0xff, 0xfe})), ErrValidation)
}

// TestValidateMimeType checks the allow list and parameter handling.
func TestValidateMimeType(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateMimeType("application/pdf"))
	require.NoError(t, ValidateMimeType("text/plain; charset=utf-8"))
	require.NoError(t, ValidateMimeType("image/png"))

	require.ErrorIs(t, ValidateMimeType("application/x-sh"), ErrFileTypeNotAllowed)
	require.ErrorIs(t, ValidateMimeType("text/html"), ErrFileTypeNotAllowed)
	require.ErrorIs(t, ValidateMimeType("not a type"), ErrValidation)
}
