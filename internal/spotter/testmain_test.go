package spotter

import (
	"os"
	"testing"

	"github.com/spotterhq/spotter/internal/monitoring"
)

func TestMain(m *testing.M) {
	// Mute pipeline diagnostics during tests.
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}
