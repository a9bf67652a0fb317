package plist

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTripScalars(t *testing.T) {
	cases := []*Value{
		Null(),
		Bool(true),
		Bool(false),
		Int(0),
		Int(-1),
		Int(127),
		Int(-128),
		Int(32767),
		Int(1 << 40),
		Uint(1 << 63),
		Real(180.5),
		Real(-0.5),
		String(""),
		String("hello world"),
		String("héllo wörld"), // forces UTF-16BE encoding
		Data([]byte{0x01, 0x02, 0x03}),
		Date(0),
		Date(123456.789),
		UID(42),
	}
	for _, v := range cases {
		enc, err := Encode(v)
		require.NoError(t, err)
		require.True(t, len(enc) >= headerSize+trailerSize)
		require.Equal(t, magic, string(enc[:headerSize]))
		require.Equal(t, trailerSize, len(enc[len(enc)-trailerSize:]))

		dec, err := Decode(enc)
		require.NoError(t, err)
		require.True(t, v.Equal(dec), "kind=%s expected=%v got=%v", v.Kind, v, dec)
	}
}

func TestRoundTripContainers(t *testing.T) {
	v := Dict(
		Entry("Content-Location", String("http://h/x.mp3")),
		Entry("Start-Position", Real(0.0)),
		Entry("trackInfo", Dict(
			Entry("title", String("T")),
			Entry("artist", String("A")),
			Entry("album", String("B")),
			Entry("duration", Real(180.5)),
		)),
		Entry("tags", Array(String("a"), String("b"), Int(3))),
	)

	enc, err := Encode(v)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(enc), 100)

	dec, err := Decode(enc)
	require.NoError(t, err)
	require.True(t, v.Equal(dec))

	trackInfo := dec.Get("trackInfo")
	require.NotNil(t, trackInfo)
	duration := trackInfo.Get("duration")
	require.NotNil(t, duration)
	require.Equal(t, KindReal, duration.Kind)
	require.Equal(t, 180.5, duration.Real)
}

func TestDedupSharesObjects(t *testing.T) {
	repeated := String("same-value")
	v := Array(repeated, repeated, repeated)
	enc, err := Encode(v)
	require.NoError(t, err)
	dec, err := Decode(enc)
	require.NoError(t, err)
	require.True(t, v.Equal(dec))
}

func TestDecodeInvalidMagic(t *testing.T) {
	buf := make([]byte, headerSize+trailerSize)
	copy(buf, "notaplst")
	_, err := Decode(buf)
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	require.Equal(t, InvalidMagic, de.Kind)
}

func TestDecodeBufferTooSmall(t *testing.T) {
	_, err := Decode([]byte("bplist00"))
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	require.Equal(t, BufferTooSmall, de.Kind)
}

// TestDecodeCircularReference hand-builds a minimal bplist whose single
// array object references itself, exercising the decoder's
// cycle-rejection path.
func TestDecodeCircularReference(t *testing.T) {
	var buf []byte
	buf = append(buf, []byte(magic)...)
	objStart := len(buf)
	// object 0: array of length 1 referencing object 0 (itself).
	buf = append(buf, 0xA1, 0x00)
	offsetTableStart := len(buf)
	buf = append(buf, byte(objStart))

	trailer := make([]byte, trailerSize)
	trailer[6] = 1 // offsetSize
	trailer[7] = 1 // objectRefSize
	trailer[15] = 1 // numObjects
	trailer[23] = 0 // rootObjectIndex
	trailer[31] = byte(offsetTableStart)
	buf = append(buf, trailer...)

	_, err := Decode(buf)
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	require.Equal(t, CircularReference, de.Kind)
}

func TestEncodeNilChildFails(t *testing.T) {
	v := Array(nil)
	_, err := Encode(v)
	require.Error(t, err)
}
