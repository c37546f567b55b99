package labsignal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestCommand verifies the relay frame layout for both switch states.
func TestCommand(t *testing.T) {
	t.Parallel()

	require.Equal(t, []byte{0xFF, 0x01, 0x01}, command(true))
	require.Equal(t, []byte{0xFF, 0x01, 0x00}, command(false))
}

// TestWrite_RequiresDeviceNode verifies the relay refuses to switch
// without a configured device node.
func TestWrite_RequiresDeviceNode(t *testing.T) {
	t.Parallel()

	relay := NewRelay(func() string { return "" })

	require.ErrorIs(t, relay.SignalOn(), errNoDeviceNode)
	require.ErrorIs(t, relay.SignalOff(), errNoDeviceNode)
}
