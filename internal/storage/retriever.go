package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"epubinspect/internal/workpool"
)

var (
	// ErrNotFound indicates the remote store has no such object.
	ErrNotFound = errors.New("storage: object not found")

	// ErrDenied indicates the remote store rejected access to the object.
	// Never retried.
	ErrDenied = errors.New("storage: access denied")

	// ErrRetrieval indicates a network or service failure that persisted
	// through the retry budget.
	ErrRetrieval = errors.New("storage: retrieval failed")

	// ErrLengthMismatch indicates the collected bytes do not add up to the
	// size the probe reported. The download is discarded, never truncated
	// or padded.
	ErrLengthMismatch = errors.New("storage: downloaded length mismatch")
)

// ObjectSource is the retrieval collaborator boundary: a metadata probe and
// a ranged fetch. Implementations must surface not-found as ErrNotFound and
// permission failures as ErrDenied so the retriever can skip retrying them.
type ObjectSource interface {
	Probe(ctx context.Context, bucket, key string) (size int64, err error)
	FetchRange(ctx context.Context, bucket, key string, start, end int64) ([]byte, error)
}

const (
	defaultChunkSize   = 8 * 1024 * 1024
	defaultMaxAttempts = 5
	defaultBaseDelay   = 200 * time.Millisecond
	defaultMaxDelay    = 10 * time.Second
)

// Retriever downloads remote objects in fixed-size ranges with bounded
// retry, verifying the final byte count against the probed size. The whole
// download runs under a process-wide admission gate.
type Retriever struct {
	src  ObjectSource
	gate *workpool.Gate

	chunkSize   int64
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	sleep       func(time.Duration)
}

// NewRetriever builds a retriever with the production chunk size and retry
// budget.
func NewRetriever(src ObjectSource, gate *workpool.Gate) *Retriever {
	return &Retriever{
		src:         src,
		gate:        gate,
		chunkSize:   defaultChunkSize,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		maxDelay:    defaultMaxDelay,
		sleep:       time.Sleep,
	}
}

// Fetch downloads the full object. The probe itself is not retried: a
// not-found answer is terminal and anything else is surfaced as a dependency
// failure for the caller's policy to handle. Ranges are fetched and appended
// strictly in offset order.
func (r *Retriever) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := r.gate.Acquire(ctx); err != nil {
		return nil, err
	}
	defer r.gate.Release()

	total, err := r.src.Probe(ctx, bucket, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: probe %s/%s: %v", ErrRetrieval, bucket, key, err)
	}

	log.Printf("storage fetch start: bucket=%s key=%s size=%d", bucket, key, total)

	var buf bytes.Buffer
	buf.Grow(int(total))
	for pos := int64(0); pos < total; pos += r.chunkSize {
		end := pos + r.chunkSize - 1
		if end > total-1 {
			end = total - 1
		}
		part, err := r.fetchRangeWithRetry(ctx, bucket, key, pos, end)
		if err != nil {
			return nil, err
		}
		buf.Write(part)
	}

	if int64(buf.Len()) != total {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrLengthMismatch, total, buf.Len())
	}
	log.Printf("storage fetch done: bucket=%s key=%s bytes=%d", bucket, key, buf.Len())
	return buf.Bytes(), nil
}

// fetchRangeWithRetry attempts one byte range up to the retry budget with
// exponential backoff plus jitter. Not-found and permission errors abort
// immediately.
func (r *Retriever) fetchRangeWithRetry(ctx context.Context, bucket, key string, start, end int64) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if attempt > 0 {
			r.sleep(r.backoff(attempt))
		}
		part, err := r.src.FetchRange(ctx, bucket, key, start, end)
		if err == nil {
			return part, nil
		}
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDenied) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		log.Printf("storage range retry: bucket=%s key=%s range=%d-%d attempt=%d err=%v", bucket, key, start, end, attempt+1, err)
	}
	return nil, fmt.Errorf("%w: range %d-%d after %d attempts: %v", ErrRetrieval, start, end, r.maxAttempts, lastErr)
}

// backoff computes min(maxDelay, baseDelay·2^attempt + jitter).
func (r *Retriever) backoff(attempt int) time.Duration {
	d := r.baseDelay * time.Duration(1<<uint(attempt))
	d += time.Duration(rand.Int63n(int64(time.Second)))
	if d > r.maxDelay {
		d = r.maxDelay
	}
	return d
}
