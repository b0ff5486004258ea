package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMessage_GetHeight(t *testing.T) {
	// Redis returns numbers as strings.
	msg := Message{Values: map[string]interface{}{"height": "149167"}}
	assert.Equal(t, uint64(149167), msg.GetHeight())

	msg = Message{Values: map[string]interface{}{"height": int64(42)}}
	assert.Equal(t, uint64(42), msg.GetHeight())

	msg = Message{Values: map[string]interface{}{}}
	assert.Equal(t, uint64(0), msg.GetHeight())

	msg = Message{Values: map[string]interface{}{"height": "not-a-number"}}
	assert.Equal(t, uint64(0), msg.GetHeight())
}

func TestMessage_GetHash(t *testing.T) {
	msg := Message{Values: map[string]interface{}{"hash": "0xabc"}}
	assert.Equal(t, "0xabc", msg.GetHash())

	msg = Message{Values: map[string]interface{}{}}
	assert.Empty(t, msg.GetHash())
}

func TestNewStreamConsumer_Validation(t *testing.T) {
	client := &Client{logger: zap.NewNop()}

	_, err := NewStreamConsumer(nil, StreamConsumerConfig{Stream: "s", Group: "g", Consumer: "c"})
	require.Error(t, err)

	_, err = NewStreamConsumer(client, StreamConsumerConfig{Group: "g", Consumer: "c"})
	require.Error(t, err)

	_, err = NewStreamConsumer(client, StreamConsumerConfig{Stream: "s"})
	require.Error(t, err)

	sc, err := NewStreamConsumer(client, StreamConsumerConfig{Stream: "s", Group: "g", Consumer: "c"})
	require.NoError(t, err)

	// Defaults fill in.
	assert.Equal(t, int64(100), sc.config.Count)
	assert.NotZero(t, sc.config.Block)
	assert.NotZero(t, sc.config.RetryInterval)
}
