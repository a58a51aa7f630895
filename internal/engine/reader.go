package engine

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/tysonmote/gommap"
	"go.uber.org/zap"
)

// mappedSegment is a read-only memory-mapped view of one segment file.
// GETs read directly out of the mapping rather than issuing a pread per
// request, satisfying spec §4.3's requirement that positional reads not
// share or mutate a file cursor: there is no cursor at all.
//
// refs counts readers currently copying out of mmap. A segment is only
// ever actually unmapped once refs drops to zero, so a reader that
// acquired the segment before cleanUp() ran can safely finish its copy
// even though the compactor has already deleted the pool's map entry for
// it; unmapping while a copy is in flight would be undefined behavior.
type mappedSegment struct {
	file *os.File
	mmap gommap.MMap

	refs           atomic.Int64
	cleanupPending atomic.Bool
	finalizeOnce   sync.Once
}

// readerPool caches one mappedSegment per segment id. GET operations
// never touch the writer; the compactor marks segments for cleanup once
// it has migrated every live record out of them, and clean_up() drops
// those entries so the underlying files can be unlinked.
type readerPool struct {
	dir string
	log *zap.SugaredLogger

	mu      sync.RWMutex
	byID    map[uint64]*mappedSegment
	toClean map[uint64]struct{}
}

func newReaderPool(dir string, log *zap.SugaredLogger) *readerPool {
	return &readerPool{
		dir:     dir,
		log:     log,
		byID:    make(map[uint64]*mappedSegment),
		toClean: make(map[uint64]struct{}),
	}
}

// acquire returns the mappedSegment for id, opening and mapping it on
// first use, with refs incremented to account for the caller. The caller
// must call release once it is done reading from seg.mmap.
func (p *readerPool) acquire(id uint64, state segState) (*mappedSegment, error) {
	p.mu.RLock()
	if seg, ok := p.byID[id]; ok {
		seg.refs.Add(1)
		p.mu.RUnlock()
		return seg, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if seg, ok := p.byID[id]; ok {
		seg.refs.Add(1)
		return seg, nil
	}

	path := segmentPath(p.dir, id, state)
	f, err := os.Open(path)
	if err != nil {
		return nil, ioError("readerPool.open", err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ioError("readerPool.stat", err)
	}
	if fi.Size() == 0 {
		f.Close()
		return nil, ioError("readerPool.open", fmt.Errorf("segment %d is empty", id))
	}

	m, err := gommap.Map(f.Fd(), gommap.PROT_READ, gommap.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, ioError("readerPool.mmap", err)
	}

	seg := &mappedSegment{file: f, mmap: m}
	seg.refs.Add(1)
	p.byID[id] = seg
	return seg, nil
}

// release drops the caller's reference to seg. If cleanUp already marked
// seg for cleanup and this was the last outstanding reference, the
// segment is unmapped and closed here.
func (p *readerPool) release(seg *mappedSegment) {
	if seg.refs.Add(-1) == 0 && seg.cleanupPending.Load() {
		p.finalize(seg)
	}
}

func (p *readerPool) finalize(seg *mappedSegment) {
	seg.finalizeOnce.Do(func() {
		if err := seg.mmap.UnsafeUnmap(); err != nil {
			p.log.Warnw("failed to unmap segment during cleanup", "error", err)
		}
		if err := seg.file.Close(); err != nil {
			p.log.Warnw("failed to close segment during cleanup", "error", err)
		}
	})
}

// readAt returns the raw framed-record bytes (length prefix included) at
// ptr's location, without decoding them. The segment cannot be unmapped
// out from under the copy below: acquire holds a reference for the
// duration of this call, and cleanUp defers the actual unmap until every
// such reference has been released (see mappedSegment.refs).
func (p *readerPool) readAt(ptr LogPointer) ([]byte, error) {
	seg, err := p.acquire(ptr.SegmentID, ptr.State)
	if err != nil {
		return nil, err
	}
	defer p.release(seg)

	end := ptr.Offset + ptr.Size
	if end > uint64(len(seg.mmap)) {
		return nil, ioError("readAt", fmt.Errorf("record at offset %d size %d exceeds mapped segment %d", ptr.Offset, ptr.Size, ptr.SegmentID))
	}
	out := make([]byte, ptr.Size)
	copy(out, seg.mmap[ptr.Offset:end])
	return out, nil
}

// decodeAt reads and decodes the Set/Remove command at ptr.
func (p *readerPool) decodeAt(ptr LogPointer) (command, error) {
	raw, err := p.readAt(ptr)
	if err != nil {
		return command{}, err
	}
	if uint64(len(raw)) < lenWidth {
		return command{}, ErrUnexpectedCommandKind
	}
	payloadLen := enc.Uint64(raw[:lenWidth])
	if uint64(len(raw))-lenWidth < payloadLen {
		return command{}, ErrUnexpectedCommandKind
	}
	return decodePayload(raw[lenWidth : lenWidth+payloadLen])
}

// markForCleanup flags a segment as a compaction source so a subsequent
// cleanUp() drops the reader pool's handle to it, letting the compactor
// unlink the file.
func (p *readerPool) markForCleanup(id uint64) {
	p.mu.Lock()
	p.toClean[id] = struct{}{}
	p.mu.Unlock()
}

// cleanUp drops the pool's handle to every segment marked via
// markForCleanup, unmapping and closing it immediately if no reader is
// currently using it, or deferring the unmap to whichever release() call
// observes the last outstanding reference drop to zero. Either way, the
// map entry is removed here so no new reader can acquire the segment
// again — only in-flight readers that already acquired it before this
// call keep it alive a little longer.
func (p *readerPool) cleanUp() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id := range p.toClean {
		seg, ok := p.byID[id]
		if !ok {
			continue
		}
		delete(p.byID, id)

		seg.cleanupPending.Store(true)
		if seg.refs.Load() == 0 {
			p.finalize(seg)
		}
	}
	p.toClean = make(map[uint64]struct{})
	return nil
}

func (p *readerPool) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, seg := range p.byID {
		p.finalize(seg)
		delete(p.byID, id)
	}
	return nil
}
