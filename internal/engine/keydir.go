package engine

import "sync"

// LogPointer locates one record on disk: which segment, which state that
// segment is in, its byte offset, and its framed size. The keydir holds
// one of these per live key; GET is a keydir lookup followed by a
// positional read through the reader pool.
type LogPointer struct {
	SegmentID uint64
	State     segState
	Offset    uint64
	Size      uint64
}

// keyEntry holds the current LogPointer for one key behind a per-entry
// mutex, so readers never observe a torn (half-updated) pointer and the
// compactor can migrate a key with a compare-and-swap on the whole pointer.
type keyEntry struct {
	mu  sync.Mutex
	ptr *LogPointer
}

func (e *keyEntry) load() *LogPointer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ptr
}

func (e *keyEntry) store(p *LogPointer) *LogPointer {
	e.mu.Lock()
	defer e.mu.Unlock()
	old := e.ptr
	e.ptr = p
	return old
}

// compareAndSwap replaces the pointer only if it is still exactly old
// (compared by identity, since every store/compareAndSwap installs a
// fresh *LogPointer). This is the CAS discipline spec §4.4 requires for
// safe compaction migration: if a concurrent SET already replaced the
// pointer, the compactor's swap is rejected instead of clobbering it.
func (e *keyEntry) compareAndSwap(old, new *LogPointer) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ptr != old {
		return false
	}
	e.ptr = new
	return true
}

// keydir is the concurrent key -> LogPointer directory described in
// spec §4.5. It tolerates concurrent readers and writers; iteration may
// interleave with mutation but every key present throughout a traversal
// is yielded at least once.
type keydir struct {
	m sync.Map // string -> *keyEntry
}

func newKeydir() *keydir {
	return &keydir{}
}

func (k *keydir) get(key string) (LogPointer, bool) {
	v, ok := k.m.Load(key)
	if !ok {
		return LogPointer{}, false
	}
	p := v.(*keyEntry).load()
	if p == nil {
		return LogPointer{}, false
	}
	return *p, true
}

// insert sets the pointer for key, returning the prior pointer if any.
func (k *keydir) insert(key string, ptr LogPointer) (LogPointer, bool) {
	v, _ := k.m.LoadOrStore(key, &keyEntry{})
	old := v.(*keyEntry).store(&ptr)
	if old == nil {
		return LogPointer{}, false
	}
	return *old, true
}

// remove clears the pointer for key, returning the prior pointer if any.
//
// It deliberately never calls k.m.Delete: a concurrent insert(key, ...)
// (a racing Engine.Set on the same key) holds the same *keyEntry by
// identity via LoadOrStore, so if it stores its new pointer between this
// remove's load and a Delete, a Delete would drop the key's live entry
// out of the map entirely while claiming to the caller that the key was
// merely removed — orphaning the just-written SET. Leaving the (now nil)
// keyEntry in place is always safe: get/iter already treat a nil pointer
// as "key absent", and a later insert for the same key reuses the same
// entry rather than resurrecting a stale one.
func (k *keydir) remove(key string) (LogPointer, bool) {
	v, ok := k.m.Load(key)
	if !ok {
		return LogPointer{}, false
	}
	old := v.(*keyEntry).store(nil)
	if old == nil {
		return LogPointer{}, false
	}
	return *old, true
}

// iter calls fn for every (key, *keyEntry) live at some point during the
// traversal. fn may observe a keyEntry whose pointer has since gone nil
// (a concurrent remove) and must treat that as "no longer live".
func (k *keydir) iter(fn func(key string, e *keyEntry)) {
	k.m.Range(func(key, value any) bool {
		fn(key.(string), value.(*keyEntry))
		return true
	})
}
