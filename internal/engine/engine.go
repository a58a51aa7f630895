package engine

// Set inserts or overwrites the value for key. It never fails for
// duplicate keys.
func (e *Engine) Set(key, value string) error {
	e.writerMu.Lock()
	pos, size, err := e.writer.appendCommand(setCommand(key, value))
	segID, state := e.writer.id, e.writer.state
	e.writerMu.Unlock()
	if err != nil {
		return err
	}

	old, existed := e.keydir.insert(key, LogPointer{SegmentID: segID, State: state, Offset: pos, Size: size})
	if existed {
		e.addUncompacted(old.Size)
	}

	e.maybeCompact()
	return nil
}

// Get returns the current value for key, or ok=false if it is absent.
func (e *Engine) Get(key string) (string, bool, error) {
	ptr, ok := e.keydir.get(key)
	if !ok {
		return "", false, nil
	}

	cmd, err := e.reader.decodeAt(ptr)
	if err != nil {
		return "", false, err
	}
	if cmd.kind != cmdSet {
		return "", false, ErrUnexpectedCommandKind
	}
	return cmd.value, true, nil
}

// Remove deletes key. It returns ErrKeyNotFound if key is absent.
func (e *Engine) Remove(key string) error {
	old, existed := e.keydir.get(key)
	if !existed {
		return ErrKeyNotFound
	}

	e.writerMu.Lock()
	_, cmdSize, err := e.writer.appendCommand(removeCommand(key))
	e.writerMu.Unlock()
	if err != nil {
		return err
	}

	e.keydir.remove(key)
	e.addUncompacted(old.Size + cmdSize)

	e.maybeCompact()
	return nil
}

func (e *Engine) addUncompacted(n uint64) {
	e.uncompacted.Add(n)
}

// maybeCompact triggers compaction inline if the uncompacted-bytes
// counter has crossed the configured threshold and the compaction lock
// is free. A failed (non-blocking) lock acquisition means someone else is
// already compacting, so this call is a no-op — the next write will try
// again (spec §4.4).
func (e *Engine) maybeCompact() {
	if e.uncompacted.Load() < e.cfg.CompactionThresholdBytes {
		return
	}
	if !e.compactMu.TryLock() {
		return
	}
	defer e.compactMu.Unlock()

	if err := e.compact(); err != nil {
		e.log.Errorw("compaction failed", "error", err)
		return
	}
	e.uncompacted.Store(0)
}

// Stats is a snapshot of operational counters, exposed for diagnostics
// (internal/diag) and tests.
type Stats struct {
	UncompactedBytes uint64
	CompactionActive bool
}

func (e *Engine) Stats() Stats {
	active := !e.compactMu.TryLock()
	if !active {
		e.compactMu.Unlock()
	}
	return Stats{
		UncompactedBytes: e.uncompacted.Load(),
		CompactionActive: active,
	}
}
