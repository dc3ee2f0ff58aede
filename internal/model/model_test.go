package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountJSONRoundTrip(t *testing.T) {
	// Exact integers, beyond float64 precision.
	a, err := ParseAmount("123456789012345678901234567890")
	require.NoError(t, err)

	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, `"123456789012345678901234567890"`, string(data))

	var b Amount
	require.NoError(t, json.Unmarshal(data, &b))
	assert.Zero(t, a.Cmp(&b))
}

func TestAmountRejectsGarbage(t *testing.T) {
	var a Amount
	assert.Error(t, json.Unmarshal([]byte(`"1.5"`), &a))
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &a))
	_, err := ParseAmount("")
	assert.Error(t, err)
}

func TestConversationIDUnordered(t *testing.T) {
	assert.Equal(t, ConversationID("0xAlice", "0xBob"), ConversationID("0xBOB", "0xalice"))
	assert.NotEqual(t, ConversationID("0xAlice", "0xBob"), ConversationID("0xAlice", "0xCarol"))
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusEncrypting.CanAdvanceTo(StatusSending))
	assert.True(t, StatusSending.CanAdvanceTo(StatusConfirmed)) // skipping is forward
	assert.True(t, StatusPending.CanAdvanceTo(StatusFailed))
	assert.False(t, StatusConfirmed.CanAdvanceTo(StatusPending))
	assert.False(t, StatusFailed.CanAdvanceTo(StatusSending))
	assert.False(t, StatusDelivered.CanAdvanceTo(StatusFailed))
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusDelivered.Terminal())
	assert.False(t, StatusConfirmed.Terminal())
}

func TestKeyPairJSONRoundTrip(t *testing.T) {
	var kp KeyPair
	for i := range kp.PublicKey {
		kp.PublicKey[i] = byte(i)
		kp.SecretKey[i] = byte(255 - i)
	}

	data, err := json.Marshal(kp)
	require.NoError(t, err)

	var got KeyPair
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, kp, got)
}

func TestEnvelopeJSONRoundTrip(t *testing.T) {
	env := Envelope{Ciphertext: []byte{1, 2, 3}}
	for i := range env.Nonce {
		env.Nonce[i] = byte(i * 7)
	}

	data, err := json.Marshal(env)
	require.NoError(t, err)

	var got Envelope
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, env, got)
}
