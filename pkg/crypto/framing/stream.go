package framing

import (
	"github.com/openairplay/airplay/pkg/crypto"
)

// EncryptMessage splits message into MaxSegmentSize chunks and encrypts
// each under key, advancing the session's send-nonce counter once per
// segment.
func EncryptMessage(keys *crypto.SessionKeys, message []byte) ([]byte, error) {
	var out []byte
	off := 0
	for {
		end := off + MaxSegmentSize
		if end > len(message) {
			end = len(message)
		}
		counter, err := keys.NextSendNonce()
		if err != nil {
			return nil, err
		}
		frame, err := EncryptSegment(keys.SendKey, counter, message[off:end])
		if err != nil {
			return nil, err
		}
		out = append(out, frame...)
		off = end
		if off >= len(message) {
			break
		}
	}
	return out, nil
}

// Reader incrementally decrypts a stream of encoded segments fed via Feed,
// mirroring the sans-I/O codec shape used by pkg/rtsp/conn: bytes arrive in
// arbitrary chunks and complete plaintext messages are drained with Next.
type Reader struct {
	keys *crypto.SessionKeys
	buf  []byte
}

// NewReader builds a Reader that decrypts under keys.RecvKey.
func NewReader(keys *crypto.SessionKeys) *Reader {
	return &Reader{keys: keys}
}

// Feed appends newly received ciphertext bytes.
func (r *Reader) Feed(b []byte) {
	r.buf = append(r.buf, b...)
}

// Next returns the next fully-decrypted segment's plaintext, if a complete
// frame is buffered. ok is false when more bytes are needed. The nonce
// counter only advances once a full frame is actually consumed, so a
// short-buffer probe never desynchronizes sender/receiver nonces.
func (r *Reader) Next() (plaintext []byte, ok bool, err error) {
	if len(r.buf) < 2 {
		return nil, false, nil
	}
	plainLen := int(r.buf[0])<<8 | int(r.buf[1])
	frameLen := 2 + plainLen + TagSize
	if len(r.buf) < frameLen {
		return nil, false, nil
	}

	counter, cerr := r.keys.NextRecvNonce()
	if cerr != nil {
		return nil, false, cerr
	}
	plain, consumed, derr := DecryptSegment(r.keys.RecvKey, counter, r.buf)
	if derr != nil {
		return nil, false, derr
	}
	r.buf = r.buf[consumed:]
	return plain, true, nil
}
