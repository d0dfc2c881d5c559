package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/livewire/internal/domain"
)

func TestBusChannelRoundTrip(t *testing.T) {
	for _, ch := range domain.Channels() {
		name := busChannel(ch)
		assert.Equal(t, "livewire:"+ch.String(), name)

		parsed, ok := parseBusChannel(name)
		require.True(t, ok, "channel %q must round-trip", ch)
		assert.Equal(t, ch, parsed)
	}
}

func TestParseBusChannelRejectsForeignTraffic(t *testing.T) {
	_, ok := parseBusChannel("message.sent")
	assert.False(t, ok, "missing prefix")

	_, ok = parseBusChannel("livewire:message.read")
	assert.False(t, ok, "unknown channel name")

	_, ok = parseBusChannel("otherapp:message.sent")
	assert.False(t, ok, "foreign prefix")
}
