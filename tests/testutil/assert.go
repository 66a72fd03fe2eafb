package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	dserrors "github.com/jejernig/keyvault-to-appconfig/internal/errors"
)

// AssertNoSecretLeak fails when any of secrets appears in output.
func AssertNoSecretLeak(t *testing.T, output string, secrets []string) {
	t.Helper()

	for _, secret := range secrets {
		assert.NotContains(t, output, secret,
			"Secret %q should be redacted, but appears in output", secret)
	}
}

// AssertExitCode checks the process exit code a command error maps to.
func AssertExitCode(t *testing.T, err error, want int) {
	t.Helper()

	assert.Equal(t, want, dserrors.ExitCode(err), "exit code for error: %v", err)
}

// AssertLinesContain verifies that every expected fragment appears on some
// line of output.
func AssertLinesContain(t *testing.T, output string, expectedLines []string) {
	t.Helper()

	lines := strings.Split(output, "\n")
	for _, expected := range expectedLines {
		found := false
		for _, line := range lines {
			if strings.Contains(line, expected) {
				found = true
				break
			}
		}
		assert.True(t, found, "Expected to find line containing %q in output:\n%s", expected, output)
	}
}
