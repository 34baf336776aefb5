package partner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/travel-desk/internal/application/port"
)

func TestClient_Finalize(t *testing.T) {
	var got port.FinalizeRequest
	var auth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bookings/finalize", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	cost := int64(125000)
	client := NewClient(Config{BaseURL: server.URL + "/", APIKey: "k-1"}, zap.NewNop())

	err := client.Finalize(context.Background(), port.FinalizeRequest{
		TripID:           7,
		ReferenceCode:    "TRV-0A1B2C3D",
		PartnerBookingID: "PB-9",
		OptionText:       "LH 123, economy",
		TotalCost:        &cost,
		Payload:          map[string]interface{}{"partnerBookingId": "PB-9"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer k-1", auth)
	assert.Equal(t, "TRV-0A1B2C3D", got.ReferenceCode)
	assert.Equal(t, "PB-9", got.PartnerBookingID)
	assert.Equal(t, "LH 123, economy", got.OptionText)
	require.NotNil(t, got.TotalCost)
	assert.Equal(t, cost, *got.TotalCost)
	assert.Equal(t, "PB-9", got.Payload["partnerBookingId"])
}

func TestClient_FinalizeErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown booking", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, zap.NewNop())
	err := client.Finalize(context.Background(), port.FinalizeRequest{ReferenceCode: "TRV-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}

func TestClient_FinalizeHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClient(Config{BaseURL: server.URL, Timeout: 5 * time.Second}, zap.NewNop())
	assert.Error(t, client.Finalize(ctx, port.FinalizeRequest{ReferenceCode: "TRV-1"}))
}

func TestNoopPartner(t *testing.T) {
	assert.NoError(t, NewNoopPartner(zap.NewNop()).Finalize(context.Background(), port.FinalizeRequest{}))
}

func TestVerifier(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	v := NewVerifier("s3cret", 5*time.Minute)
	v.now = func() time.Time { return now }

	body := []byte(`{"referenceCode":"TRV-1"}`)
	ts := strconv.FormatInt(now.Unix(), 10)
	sig := v.Sign(ts, body)

	t.Run("valid signature", func(t *testing.T) {
		assert.NoError(t, v.Verify(ts, sig, body))
	})

	t.Run("tampered body", func(t *testing.T) {
		assert.ErrorIs(t, v.Verify(ts, sig, []byte(`{"referenceCode":"TRV-2"}`)), ErrBadSignature)
	})

	t.Run("missing headers", func(t *testing.T) {
		assert.ErrorIs(t, v.Verify("", sig, body), ErrMissingSignature)
		assert.ErrorIs(t, v.Verify(ts, "", body), ErrMissingSignature)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		old := strconv.FormatInt(now.Add(-10*time.Minute).Unix(), 10)
		assert.ErrorIs(t, v.Verify(old, v.Sign(old, body), body), ErrStaleTimestamp)
		assert.ErrorIs(t, v.Verify("yesterday", sig, body), ErrStaleTimestamp)
	})

	t.Run("no secret configured", func(t *testing.T) {
		open := NewVerifier("", 0)
		assert.ErrorIs(t, open.Verify(ts, sig, body), ErrMissingSignature)
	})
}
