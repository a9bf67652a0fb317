// Package conn implements the sans-I/O RTSP codec: an input buffer that
// decodes framed requests/responses, with an encrypted-framing wrapper
// that interposes ChaCha20-Poly1305 segments once pair-verify completes.
package conn

import (
	"bufio"
	"bytes"
	"fmt"
	"sync"

	"github.com/openairplay/airplay/pkg/crypto"
	"github.com/openairplay/airplay/pkg/crypto/framing"
	"github.com/openairplay/airplay/pkg/rtsp/base"
)

// Codec owns an input buffer and exposes Feed/Decode/Encode, keeping all
// I/O out of this package: callers push bytes in and pull messages out.
type Codec struct {
	mu  sync.Mutex
	buf bytes.Buffer

	keys   *crypto.SessionKeys
	reader *framing.Reader

	// plaintext pending decode, either fed directly (pre-pairing) or
	// drained from the encrypted reader.
	plain bytes.Buffer
}

// New creates an unencrypted Codec. Call Encrypt once pair-verify
// completes to switch the channel to ChaCha20-Poly1305 framing.
func New() *Codec {
	return &Codec{}
}

// Encrypt installs session keys, switching all subsequent Feed/Encode
// calls to the encrypted segment framing. It is
// irreversible for the lifetime of the session.
func (c *Codec) Encrypt(keys *crypto.SessionKeys) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = keys
	c.reader = framing.NewReader(keys)
}

// Feed appends newly received bytes from the transport.
func (c *Codec) Feed(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.keys == nil {
		c.plain.Write(b)
		return nil
	}
	c.reader.Feed(b)
	for {
		plain, ok, err := c.reader.Next()
		if err != nil {
			return fmt.Errorf("rtsp: encrypted frame: %w", err)
		}
		if !ok {
			return nil
		}
		c.plain.Write(plain)
	}
}

// DecodeRequest attempts to decode one request from buffered plaintext.
// It returns (nil, false, nil) when more bytes are needed.
func (c *Codec) DecodeRequest() (*base.Request, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return decodeOne(&c.plain, base.ReadRequest)
}

// DecodeResponse attempts to decode one response from buffered plaintext.
func (c *Codec) DecodeResponse() (*base.Response, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return decodeOne(&c.plain, base.ReadResponse)
}

func decodeOne[T any](buf *bytes.Buffer, read func(*bufio.Reader) (*T, error)) (*T, bool, error) {
	if buf.Len() == 0 {
		return nil, false, nil
	}
	snapshot := buf.Bytes()
	rb := bufio.NewReader(bytes.NewReader(snapshot))
	msg, err := read(rb)
	if err != nil {
		// Not enough data yet looks the same as a real parse error from a
		// bufio.Reader backed by a fixed slice (io.EOF mid-parse); treat
		// any error here as "need more bytes" and let the transport's own
		// timeout catch a truly malformed peer.
		return nil, false, nil
	}
	consumed := len(snapshot) - rb.Buffered()
	buf.Next(consumed)
	return msg, true, nil
}

// Encode renders a request to wire bytes, encrypting it
// once a session key is installed.
func (c *Codec) Encode(req *base.Request) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out bytes.Buffer
	bw := bufio.NewWriter(&out)
	if err := req.Write(bw); err != nil {
		return nil, err
	}
	return c.maybeEncrypt(out.Bytes())
}

// EncodeResponse renders a response to wire bytes, encrypting it as above.
func (c *Codec) EncodeResponse(resp *base.Response) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out bytes.Buffer
	bw := bufio.NewWriter(&out)
	if err := resp.Write(bw); err != nil {
		return nil, err
	}
	return c.maybeEncrypt(out.Bytes())
}

func (c *Codec) maybeEncrypt(plain []byte) ([]byte, error) {
	if c.keys == nil {
		return plain, nil
	}
	return framing.EncryptMessage(c.keys, plain)
}

// Encrypted reports whether the channel has switched to AEAD framing.
func (c *Codec) Encrypted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keys != nil
}
