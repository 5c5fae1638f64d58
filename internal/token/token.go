// Package token implements reference-counted payload carriers, pooled via
// sync.Pool size buckets generalized from the teacher's raw []byte buffer
// pool to whole *Token structs keyed by ElementSize.
package token

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/behrlich/reactor-rt/internal/logging"
)

// OkToFree controls what DecRef releases when a token's refcount reaches zero.
type OkToFree int

const (
	// No means the caller retains ownership of Value; only the Token struct
	// itself is recycled.
	No OkToFree = iota
	// ValueOnly drops the value (Value is cleared without running
	// Destructor) but keeps the Token struct.
	ValueOnly
	// TokenAndValue frees both the value and the Token struct.
	TokenAndValue
)

// Token is a reference-counted payload carrier, the unit of zero-copy fan-out
// between a scheduled event and the ports/reactions that read its value.
type Token struct {
	Value       any
	Length      int
	ElementSize int
	Destructor  func(any)
	CopyCtor    func(any) any
	OkToFree    OkToFree

	refCount atomic.Int32
}

// Hook lets a caller observe pool allocations, recycles, and fatal leaks
// without this package importing the metrics package (which would cycle
// back through the root package).
type Hook interface {
	RecordTokenAllocated()
	RecordTokenRecycled()
	RecordTokenLeaked()
}

type noOpHook struct{}

func (noOpHook) RecordTokenAllocated() {}
func (noOpHook) RecordTokenRecycled()  {}
func (noOpHook) RecordTokenLeaked()    {}

var hook atomic.Value // Hook

func init() {
	hook.Store(Hook(noOpHook{}))
}

// SetHook installs a metrics hook; pass nil to restore the no-op default.
func SetHook(h Hook) {
	if h == nil {
		h = noOpHook{}
	}
	hook.Store(h)
}

func currentHook() Hook {
	return hook.Load().(Hook)
}

// Size bucket thresholds, mirroring the teacher's power-of-2 buffer pool.
const (
	bucketSmall  = 64
	bucketMedium = 4 * 1024
	bucketLarge  = 64 * 1024
)

func newPooledToken() any {
	currentHook().RecordTokenAllocated()
	return &Token{}
}

var globalPool = struct {
	small  sync.Pool
	medium sync.Pool
	large  sync.Pool
	huge   sync.Pool
}{
	small:  sync.Pool{New: newPooledToken},
	medium: sync.Pool{New: newPooledToken},
	large:  sync.Pool{New: newPooledToken},
	huge:   sync.Pool{New: newPooledToken},
}

func bucketFor(elementSize int) *sync.Pool {
	switch {
	case elementSize <= bucketSmall:
		return &globalPool.small
	case elementSize <= bucketMedium:
		return &globalPool.medium
	case elementSize <= bucketLarge:
		return &globalPool.large
	default:
		return &globalPool.huge
	}
}

// NewToken allocates a fresh token sized for elementSize, bypassing the pool.
// Most callers should use InitializeWithValue instead.
func NewToken(elementSize int) *Token {
	currentHook().RecordTokenAllocated()
	tok := &Token{ElementSize: elementSize}
	tok.refCount.Store(1)
	return tok
}

// InitializeWithValue prepares a token carrying value, reusing tok in place
// if it is non-nil and uniquely held (refCount <= 1), otherwise drawing a
// recycled token from the size-bucketed pool (or allocating fresh on a pool
// miss).
func InitializeWithValue(tok *Token, value any, length int) *Token {
	if tok != nil && tok.refCount.Load() <= 1 {
		tok.Value = value
		tok.Length = length
		tok.refCount.Store(1)
		return tok
	}

	pool := bucketFor(length)
	pooled := pool.Get().(*Token)
	pooled.Value = value
	pooled.Length = length
	pooled.ElementSize = length
	pooled.Destructor = nil
	pooled.CopyCtor = nil
	pooled.OkToFree = No
	pooled.refCount.Store(1)
	return pooled
}

// IncRef increments the token's reference count. Called by port fan-out
// when a value is read by multiple reactions; ScheduleToken does not call
// it, the event adopts the reference the caller hands over.
func IncRef(tok *Token) {
	if tok == nil {
		return
	}
	tok.refCount.Add(1)
}

// DecRef decrements the token's reference count. When it reaches zero the
// token is recycled; if OkToFree == TokenAndValue the Destructor runs on
// Value first. Decrementing below zero is a fatal invariant violation:
// it means a holder released a reference it never held, so the shared
// payload state can no longer be trusted — logged and the process exits,
// mirroring the teacher's treatment of unrecoverable kernel protocol
// violations.
func DecRef(tok *Token) {
	if tok == nil {
		return
	}
	remaining := tok.refCount.Add(-1)
	switch {
	case remaining > 0:
		return
	case remaining == 0:
		recycle(tok)
	default:
		currentHook().RecordTokenLeaked()
		logging.Default().Error("token refcount underflow", "element_size", tok.ElementSize)
		os.Exit(1)
	}
}

func recycle(tok *Token) {
	if tok.OkToFree == TokenAndValue && tok.Destructor != nil {
		tok.Destructor(tok.Value)
	}
	if tok.OkToFree != No {
		tok.Value = nil
	}
	currentHook().RecordTokenRecycled()
	pool := bucketFor(tok.ElementSize)
	pool.Put(tok)
}

// RefCount returns the token's current reference count, for tests and
// invariant assertions.
func (t *Token) RefCount() int32 {
	return t.refCount.Load()
}
