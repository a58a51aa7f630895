package engine

import (
	"bufio"
	"os"
)

// logWriter owns one active segment file. It is not itself safe for
// concurrent use; callers serialize access through Engine.writerMu, the
// single mutex spec §4.2 calls for. This mirrors the teacher's store.go,
// generalized from a single persistent file to one that gets rolled to a
// fresh segment on demand.
//
// The file is pre-sized to maxBytes (a sparse truncate) as soon as it is
// created. This lets the reader pool memory-map it once, at full
// capacity, the moment any key is pointed into it — writes that land
// later, while this writer is still active, are ordinary page-cache
// writes and so are visible through that same mapping without a remap.
// seal() truncates the file back down to the bytes actually written once
// the segment is rolled away or the engine closes.
type logWriter struct {
	dir      string
	id       uint64
	state    segState
	maxBytes uint64

	file *os.File
	buf  *bufio.Writer
	pos  uint64
}

// openLogWriter creates or reopens a segment file for appending. startPos
// is the offset to resume writing from — 0 for a brand new segment, or
// the position recovery determined was the true end of valid data for a
// segment being reopened as the active segment after a restart.
func openLogWriter(dir string, id uint64, state segState, maxBytes, startPos uint64) (*logWriter, error) {
	path := segmentPath(dir, id, state)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, ioError("openLogWriter", err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ioError("openLogWriter", err)
	}
	if uint64(fi.Size()) < maxBytes {
		if err := f.Truncate(int64(maxBytes)); err != nil {
			f.Close()
			return nil, ioError("openLogWriter", err)
		}
	}
	if _, err := f.Seek(int64(startPos), 0); err != nil {
		f.Close()
		return nil, ioError("openLogWriter", err)
	}

	return &logWriter{
		dir:      dir,
		id:       id,
		state:    state,
		maxBytes: maxBytes,
		file:     f,
		buf:      bufio.NewWriter(f),
		pos:      startPos,
	}, nil
}

// appendCommand serializes and appends cmd, flushing before it returns so
// any crash after return preserves the byte range. It returns the
// record's starting offset and the total number of bytes written (length
// prefix included).
func (w *logWriter) appendCommand(cmd command) (pos uint64, size uint64, err error) {
	return w.appendBytes(frame(encodePayload(cmd)))
}

// appendBytes writes an already-framed record byte-for-byte; the
// compactor uses this to copy records without re-encoding them.
func (w *logWriter) appendBytes(framed []byte) (pos uint64, size uint64, err error) {
	pos = w.pos

	if _, err := w.file.Seek(int64(pos), 0); err != nil {
		return 0, 0, ioError("append", err)
	}
	n, err := w.buf.Write(framed)
	if err != nil {
		return 0, 0, ioError("append", err)
	}
	if err := w.buf.Flush(); err != nil {
		return 0, 0, ioError("append", err)
	}

	w.pos += uint64(n)
	return pos, uint64(n), nil
}

// seal truncates the file down to the bytes actually written and closes
// it. Called when the writer rolls away from this segment, or when the
// engine shuts down.
func (w *logWriter) seal() error {
	if err := w.buf.Flush(); err != nil {
		return ioError("seal", err)
	}
	if err := w.file.Truncate(int64(w.pos)); err != nil {
		return ioError("seal", err)
	}
	return ioError("seal", w.file.Close())
}
