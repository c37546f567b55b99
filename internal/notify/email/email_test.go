package email

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/alarm-watcher/internal/domain/alarm"
)

// TestComposeMessageText verifies the body lists every PV of the batch.
func TestComposeMessageText(t *testing.T) {
	t.Parallel()

	batch := []alarm.Record{
		{EntityID: "DCS:HV:CH01", Severity: "MAJOR", Status: "ALARM"},
		{EntityID: "DCS:TEMP:03", Severity: "MINOR", Status: "ALARM"},
	}

	text := composeMessageText(batch)

	require.Contains(t, text, "the following PV(s) triggered an alarm")
	require.Contains(t, text, "DCS:HV:CH01\n")
	require.Contains(t, text, "DCS:TEMP:03\n")
	require.Contains(t, text, "acknowledge the alarms")
}
