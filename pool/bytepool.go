// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>

package pool

// DefaultChunkSize is the read chunk size used by connections.
const DefaultChunkSize = 4096

// BytePool hands out fixed-size chunks. Pointers to slices are pooled so
// that Put does not allocate.
type BytePool struct {
	chunks *SyncPool[*[]byte]
	size   int
}

// NewBytePool creates a pool of size-byte chunks. A non-positive size falls
// back to DefaultChunkSize.
func NewBytePool(size int) *BytePool {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &BytePool{
		size: size,
		chunks: NewSyncPool(func() *[]byte {
			b := make([]byte, size)
			return &b
		}).WithReset(func(b *[]byte) *[]byte {
			*b = (*b)[:cap(*b)]
			return b
		}),
	}
}

// Size returns the chunk size.
func (b *BytePool) Size() int { return b.size }

// GetBuffer returns a chunk of exactly Size bytes.
func (b *BytePool) GetBuffer() *[]byte {
	return b.chunks.Get()
}

// PutBuffer returns a chunk to the pool. Foreign chunks of the wrong
// capacity are dropped.
func (b *BytePool) PutBuffer(buf *[]byte) {
	if buf == nil || cap(*buf) != b.size {
		return
	}
	b.chunks.Put(buf)
}
