// ABOUTME: Tests for event sink composition.
// ABOUTME: Verifies MultiSink fan-out and nil handling.

package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiSink_FansOut(t *testing.T) {
	a := &captureSink{}
	b := &captureSink{}

	sink := MultiSink(a, nil, b)
	require.NotNil(t, sink)

	sink.Record(Event{Agent: "worker-1", Type: EventStarted})

	assert.Len(t, a.all(), 1)
	assert.Len(t, b.all(), 1)
	assert.Equal(t, EventStarted, a.all()[0].Type)
}

func TestMultiSink_AllNil(t *testing.T) {
	assert.Nil(t, MultiSink(nil, nil))
	assert.Nil(t, MultiSink())
}
