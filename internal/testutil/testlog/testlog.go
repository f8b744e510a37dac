// Package testlog puts tests on the test logging profile.
package testlog

import (
	"testing"
	"time"

	"github.com/danmuck/stridelink/internal/logging"
	"github.com/rs/zerolog/log"
)

// Start configures test logging and brackets t with start and finish lines.
// A failed test finishes at warn so it stands out in verbose output.
func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	start := time.Now()
	log.Debug().Msgf("testlog.Start test=%s", t.Name())
	t.Cleanup(func() {
		event := log.Debug()
		if t.Failed() {
			event = log.Warn()
		}
		event.Dur("elapsed", time.Since(start)).Msgf("testlog.Done test=%s failed=%t", t.Name(), t.Failed())
	})
}
