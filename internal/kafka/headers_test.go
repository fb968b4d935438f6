package kafka

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventHeaders(t *testing.T) {
	hs := EventHeaders(context.Background(), "OrderFinalized", 1)
	assert.Equal(t, "OrderFinalized", HeaderValue(hs, HeaderEventType))
	assert.Equal(t, "1", HeaderValue(hs, HeaderEventVersion))
	assert.Empty(t, HeaderValue(hs, "missing"))
}

func TestUnwrapPayload(t *testing.T) {
	type payload struct {
		OrderID string `json:"order_id"`
	}
	got, err := UnwrapPayload[payload](json.RawMessage(`{"order_id":"o1"}`))
	require.NoError(t, err)
	assert.Equal(t, "o1", got.OrderID)

	_, err = UnwrapPayload[payload](json.RawMessage(`[`))
	assert.Error(t, err)
}
