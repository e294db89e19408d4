package gateway

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_unit"

func TestVerifySignature_Valid(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)

	header := SignatureHeader(testSecret, payload, time.Now())
	assert.NoError(t, VerifySignature(testSecret, payload, header, DefaultTolerance))
}

func TestVerifySignature_Rejections(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Now()
	valid := SignatureHeader(testSecret, payload, now)

	tests := []struct {
		name    string
		secret  string
		payload []byte
		header  string
	}{
		{"empty secret", "", payload, valid},
		{"missing header", testSecret, payload, ""},
		{"malformed header", testSecret, payload, "garbage"},
		{"no v1", testSecret, payload, "t=" + strconv.FormatInt(now.Unix(), 10)},
		{"wrong secret", "other", payload, valid},
		{"tampered payload", testSecret, []byte(`{"id":"evt_2"}`), valid},
		{"stale timestamp", testSecret, payload, SignatureHeader(testSecret, payload, now.Add(-301*time.Second))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySignature(tt.secret, tt.payload, tt.header, DefaultTolerance)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSignatureInvalid)
		})
	}
}

func TestVerifySignature_AnyOfSeveralSignatures(t *testing.T) {
	payload := []byte(`{"id":"evt_rot"}`)

	header := SignatureHeader(testSecret, payload, time.Now()) + ",v1=deadbeef"
	assert.NoError(t, VerifySignature(testSecret, payload, header, DefaultTolerance))
}

func TestVerifySignature_WithinTolerance(t *testing.T) {
	payload := []byte(`{}`)
	header := SignatureHeader(testSecret, payload, time.Now().Add(-290*time.Second))

	assert.NoError(t, VerifySignature(testSecret, payload, header, DefaultTolerance))
}
