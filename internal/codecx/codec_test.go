package codecx

import (
	"encoding/base64"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecodeBytes_Base64(t *testing.T) {
	in := base64.StdEncoding.EncodeToString([]byte("ciphertext"))
	got, ok := DecodeBytes(in)
	require.True(t, ok)
	require.Equal(t, []byte("ciphertext"), got)
}

func TestDecodeBytes_HexFallback(t *testing.T) {
	// valid hex that is not valid base64
	in := hex.EncodeToString([]byte{0xde, 0xad, 0xbe})
	got, ok := DecodeBytes(in)
	require.True(t, ok)
	require.Equal(t, []byte{0xde, 0xad, 0xbe}, got)
}

func TestDecodeBytes_GarbageYieldsEmpty(t *testing.T) {
	got, ok := DecodeBytes("!!not-encodable!!")
	require.False(t, ok)
	require.Equal(t, []byte{}, got)
}

func TestDecodeBytes_Empty(t *testing.T) {
	got, ok := DecodeBytes("")
	require.True(t, ok)
	require.Empty(t, got)
}

func TestEncodeBytes_RoundTrip(t *testing.T) {
	in := "bm9uY2UtYnl0ZXM="
	raw, ok := DecodeBytes(in)
	require.True(t, ok)
	require.Equal(t, in, EncodeBytes(raw))
	require.Equal(t, "", EncodeBytes(nil))
}

func TestEnvelopesJSON_Defaults(t *testing.T) {
	require.JSONEq(t, `{}`, string(EnvelopesJSON(nil)))
	require.JSONEq(t, `{"k1":"wrapped"}`, string(EnvelopesJSON(map[string]any{"k1": "wrapped"})))
}

func TestParseObject_Lenient(t *testing.T) {
	require.Equal(t, map[string]any{}, ParseObject(nil))
	require.Equal(t, map[string]any{}, ParseObject([]byte("{broken")))
	require.Equal(t, map[string]any{}, ParseObject([]byte("null")))
	require.Equal(t, map[string]any{"a": "b"}, ParseObject([]byte(`{"a":"b"}`)))
}

func TestNormalizeTimestamp_FullStamp(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	got, ok := NormalizeTimestamp("2024-04-30T23:59:59Z", now)
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 4, 30, 23, 59, 59, 0, time.UTC), got.UTC())
}

func TestNormalizeTimestamp_BareTimeOfDayIsToday(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	got, ok := NormalizeTimestamp("08:15:30", now)
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 5, 1, 8, 15, 30, 0, time.UTC), got)
}

func TestNormalizeTimestamp_GarbageFallsBackToNow(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	got, ok := NormalizeTimestamp("yesterday-ish", now)
	require.False(t, ok)
	require.Equal(t, now, got)
}

func TestNormalizeTimestamp_Empty(t *testing.T) {
	now := time.Now()
	got, ok := NormalizeTimestamp("", now)
	require.False(t, ok)
	require.Equal(t, now, got)
}
