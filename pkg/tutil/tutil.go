// Package tutil holds helpers shared by tests.
package tutil

import (
	"os"
	"strings"
	"testing"
)

// IsIntegrationTest reports whether VIDHUB_TEST=integration is set. Tests
// that need a real database or media host account only run then.
func IsIntegrationTest() bool {
	return strings.EqualFold(os.Getenv("VIDHUB_TEST"), "integration")
}

// SkipUnlessIntegration skips t outside integration runs.
func SkipUnlessIntegration(t *testing.T) {
	t.Helper()

	if !IsIntegrationTest() {
		t.Skip("set VIDHUB_TEST=integration to run")
	}
}
