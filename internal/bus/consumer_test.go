package bus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestDecodeStatusChange covers state messages, idle messages, missing
// fields and the protocol prefix strip.
func TestDecodeStatusChange(t *testing.T) {
	t.Parallel()

	entityID, severity, status, ok := decodeStatusChange(
		[]byte(`{"TEXT":"STATE","NAME":"epics://DCS:HV:CH01","SEVERITY":"MAJOR","STATUS":"ALARM"}`))
	require.True(t, ok)
	require.Equal(t, "DCS:HV:CH01", entityID)
	require.Equal(t, "MAJOR", severity)
	require.Equal(t, "ALARM", status)

	// Name without the pseudo-protocol prefix passes through unchanged.
	entityID, _, _, ok = decodeStatusChange(
		[]byte(`{"TEXT":"STATE","NAME":"DCS:TEMP:03","SEVERITY":"MINOR","STATUS":"ALARM"}`))
	require.True(t, ok)
	require.Equal(t, "DCS:TEMP:03", entityID)

	// Idle messages are dropped.
	_, _, _, ok = decodeStatusChange([]byte(`{"TEXT":"IDLE"}`))
	require.False(t, ok)

	// Missing required fields.
	_, _, _, ok = decodeStatusChange([]byte(`{"TEXT":"STATE","NAME":"DCS:HV:CH01"}`))
	require.False(t, ok)

	// Garbage payload.
	_, _, _, ok = decodeStatusChange([]byte(`not json`))
	require.False(t, ok)
}
