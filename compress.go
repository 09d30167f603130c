package skein

import (
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Compressor is the opaque transform applied to the whole post-header payload
// when the Compress setting is on. Decompress must invert Compress.
type Compressor interface {
	Compress(dst, src []byte) ([]byte, error)
	Decompress(dst, src []byte) ([]byte, error)
}

// ZstdCompressor compresses payloads with zstd.
// EncodeAll and DecodeAll are safe for concurrent use, so one instance may serve many calls.
type ZstdCompressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

var _ Compressor = (*ZstdCompressor)(nil)

// NewZstdCompressor creates a zstd transform at the given level.
func NewZstdCompressor(level zstd.EncoderLevel) (*ZstdCompressor, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithZeroFrames(true),
		zstd.WithEncoderLevel(level),
	)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &ZstdCompressor{enc: enc, dec: dec}, nil
}

// Compress implements Compressor.
func (c *ZstdCompressor) Compress(dst, src []byte) ([]byte, error) {
	if c == nil || c.enc == nil {
		return nil, zstd.ErrEncoderClosed
	}
	return c.enc.EncodeAll(src, dst[:0]), nil
}

// Decompress implements Compressor.
func (c *ZstdCompressor) Decompress(dst, src []byte) ([]byte, error) {
	if c == nil || c.dec == nil {
		return nil, zstd.ErrDecoderClosed
	}
	return c.dec.DecodeAll(src, dst[:0])
}

// Close releases the encoder and decoder.
func (c *ZstdCompressor) Close() {
	if c == nil {
		return
	}
	if c.enc != nil {
		_ = c.enc.Close()
		c.enc = nil
	}
	if c.dec != nil {
		c.dec.Close()
		c.dec = nil
	}
}

var (
	sharedMu   sync.Mutex
	sharedZstd = make(map[zstd.EncoderLevel]*ZstdCompressor)
)

// sharedCompressor returns the process-wide zstd transform for level,
// creating it on first use. Shared instances are never closed.
func sharedCompressor(level zstd.EncoderLevel) (*ZstdCompressor, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if c, ok := sharedZstd[level]; ok {
		return c, nil
	}
	c, err := NewZstdCompressor(level)
	if err != nil {
		return nil, err
	}
	sharedZstd[level] = c
	return c, nil
}

// defaultCompressor returns the shared zstd transform used when Compress is set
// without an explicit Compressor.
func defaultCompressor() Compressor {
	c, err := sharedCompressor(zstd.SpeedDefault)
	if err != nil {
		return failingCompressor{err: err}
	}
	return c
}

type failingCompressor struct{ err error }

func (f failingCompressor) Compress(_, _ []byte) ([]byte, error)   { return nil, f.err }
func (f failingCompressor) Decompress(_, _ []byte) ([]byte, error) { return nil, f.err }
