package retrieval

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"time"
)

// embedWithCache fetches an embedding for text from the cache if
// present, otherwise calls the embedder and stores the result keyed by
// text (spec.md §4.6 step 4).
func (r *Retriever) embedWithCache(ctx context.Context, text string) ([]float32, error) {
	key := r.embedCacheKey(text)

	if r.cache != nil {
		if raw, ok := r.cache.Get(ctx, key); ok {
			if vec, err := decodeFloat32s(raw); err == nil {
				return vec, nil
			}
		}
	}

	vec, err := r.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		r.cache.Set(ctx, key, encodeFloat32s(vec), ttlSeconds(r.opts.EmbedCacheTTL))
	}

	return vec, nil
}

func ttlSeconds(seconds int64) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// encodeFloat32s/decodeFloat32s give the embedding cache a compact
// binary representation instead of JSON, since these values are pure
// float vectors with no structure worth naming.
func encodeFloat32s(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeFloat32s(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, errInvalidEncoding
	}
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out, nil
}

var errInvalidEncoding = errors.New("retrieval: invalid cached embedding encoding")
