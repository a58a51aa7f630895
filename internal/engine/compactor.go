package engine

import "os"

func (e *Engine) nextID() uint64 {
	return e.nextSegmentID.Add(1) - 1
}

// compact implements the compaction protocol from spec §4.4. The caller
// must already hold compactMu (via the non-blocking TryLock in
// maybeCompact); compact itself only briefly holds writerMu, to roll the
// active segment, so writes serialize only for that short swap and
// otherwise proceed concurrently with the rest of compaction.
func (e *Engine) compact() error {
	victims, err := listSegments(e.dir)
	if err != nil {
		return err
	}

	e.writerMu.Lock()
	oldWriter := e.writer
	newWriter, err := openLogWriter(e.dir, e.nextID(), stateWrite, e.cfg.Segment.MaxBytes, 0)
	if err != nil {
		e.writerMu.Unlock()
		return err
	}
	if err := oldWriter.seal(); err != nil {
		e.writerMu.Unlock()
		return err
	}
	e.writer = newWriter
	e.writerMu.Unlock()

	comp, err := openLogWriter(e.dir, e.nextID(), stateComp, e.cfg.Segment.MaxBytes, 0)
	if err != nil {
		return err
	}

	migrated := 0
	e.keydir.iter(func(key string, entry *keyEntry) {
		old := entry.load()
		if old == nil {
			return
		}

		raw, err := e.reader.readAt(*old)
		if err != nil {
			e.log.Warnw("compaction: failed to read live record, leaving pointer in place", "key", key, "error", err)
			return
		}
		e.reader.markForCleanup(old.SegmentID)

		if comp.pos+uint64(len(raw)) > e.cfg.Segment.MaxBytes {
			if err := comp.seal(); err != nil {
				e.log.Warnw("compaction: failed to seal full compacted segment", "error", err)
				return
			}
			comp, err = openLogWriter(e.dir, e.nextID(), stateComp, e.cfg.Segment.MaxBytes, 0)
			if err != nil {
				e.log.Warnw("compaction: failed to open next compacted segment", "error", err)
				return
			}
		}

		newPos, newSize, err := comp.appendBytes(raw)
		if err != nil {
			e.log.Warnw("compaction: failed to append migrated record", "key", key, "error", err)
			return
		}

		newPtr := &LogPointer{SegmentID: comp.id, State: stateComp, Offset: newPos, Size: newSize}
		if entry.compareAndSwap(old, newPtr) {
			migrated++
		}
		// A failed CAS means a concurrent SET already replaced the
		// pointer (case (a)/(b) in spec §4.4): the bytes we just wrote
		// to the compacted segment are garbage but harmless, since
		// nothing will ever point at them.
	})
	if err := comp.seal(); err != nil {
		return err
	}

	if err := e.reader.cleanUp(); err != nil {
		return err
	}

	for _, v := range victims {
		if err := os.Remove(v.path); err != nil && !os.IsNotExist(err) {
			e.log.Warnw("compaction: failed to remove victim segment", "path", v.path, "error", err)
		}
	}

	e.log.Infow("compaction complete", "victims", len(victims), "recordsMigrated", migrated)
	return nil
}
