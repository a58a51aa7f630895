package engine

import (
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Engine is the log-structured storage engine: the shared state behind
// the three-operation (set/get/remove) contract in spec §4.6. It is
// shared by pointer: every holder of the same *Engine (its Clone in spec
// terms) uses the same writer, keydir, reader pool and counters. An
// Engine value must not be copied, since it holds its mutexes and atomic
// counters by value.
type Engine struct {
	dir string
	cfg Config
	log *zap.SugaredLogger

	writerMu sync.Mutex
	writer   *logWriter

	keydir *keydir
	reader *readerPool

	nextSegmentID atomic.Uint64
	uncompacted   atomic.Uint64
	compactMu     sync.Mutex
}

// Open opens (or creates) a store directory, performing the recovery
// described in spec §4.7: discover segments, rebuild the keydir by
// sequentially replaying every segment in id order, and resume appending
// to the active write segment where the last valid record left off.
func Open(dir string, cfg Config, log *zap.SugaredLogger) (*Engine, error) {
	cfg.setDefaults()
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, ioError("Open", err)
	}

	segs, err := listSegments(dir)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		dir:    dir,
		cfg:    cfg,
		log:    log,
		keydir: newKeydir(),
	}

	var maxID uint64
	var activeID uint64
	haveActive := false
	for _, s := range segs {
		if s.id > maxID {
			maxID = s.id
		}
		if s.state == stateWrite && (!haveActive || s.id > activeID) {
			activeID = s.id
			haveActive = true
		}
	}

	var uncompacted uint64
	var activeStopOffset uint64

	for _, s := range segs {
		records, stop, err := scanSegment(s.path)
		if err != nil {
			return nil, err
		}
		if s.state == stateWrite && s.id == activeID {
			activeStopOffset = stop
		}
		for _, rec := range records {
			switch rec.cmd.kind {
			case cmdSet:
				if old, existed := e.keydir.insert(rec.cmd.key, LogPointer{
					SegmentID: s.id,
					State:     s.state,
					Offset:    rec.offset,
					Size:      rec.size,
				}); existed {
					uncompacted += old.Size
				}
			case cmdRemove:
				if old, existed := e.keydir.remove(rec.cmd.key); existed {
					uncompacted += old.Size
				}
			}
		}
	}
	e.uncompacted.Store(uncompacted)

	if !haveActive {
		activeID = maxID
		if len(segs) > 0 {
			activeID = maxID + 1
		}
		activeStopOffset = 0
		if activeID > maxID {
			maxID = activeID
		}
	}

	writer, err := openLogWriter(dir, activeID, stateWrite, cfg.Segment.MaxBytes, activeStopOffset)
	if err != nil {
		return nil, err
	}
	e.writer = writer
	e.nextSegmentID.Store(maxID + 1)
	e.reader = newReaderPool(dir, log)

	log.Infow("engine opened", "dir", dir, "activeSegment", activeID, "segments", len(segs), "uncompactedBytes", uncompacted)
	return e, nil
}

// Close flushes and seals the active segment and releases reader pool
// handles. It does not delete anything.
func (e *Engine) Close() error {
	e.writerMu.Lock()
	defer e.writerMu.Unlock()
	if err := e.writer.seal(); err != nil {
		return err
	}
	return e.reader.close()
}
