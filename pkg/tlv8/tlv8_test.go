package tlv8

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	items := []Item{
		{Type: 0x00, Value: []byte{0x01}}, // method
		{Type: 0x06, Value: []byte{0x01}}, // state
	}
	encoded := Encode(items...)
	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, len(items))
	for i, item := range items {
		require.Equal(t, item.Type, decoded[i].Type)
		require.True(t, bytes.Equal(item.Value, decoded[i].Value))
	}
}

func TestFragmentationOverLongValue(t *testing.T) {
	value := make([]byte, 600)
	for i := range value {
		value[i] = byte(i)
	}
	encoded := Encode(Item{Type: 0x03, Value: value})

	// 600 bytes fragments into 255 + 255 + 90 => three chunks of 2-byte
	// headers plus value bytes.
	require.Equal(t, 3*2+600, len(encoded))

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	require.True(t, bytes.Equal(value, decoded[0].Value))
}

func TestGetMissingType(t *testing.T) {
	_, ok := Get(nil, 0x01)
	require.False(t, ok)
}

func TestDecodeTruncatedHeader(t *testing.T) {
	_, err := Decode([]byte{0x01})
	require.Error(t, err)
}
