package engine

import (
	"bufio"
	"io"
	"os"
)

type scannedRecord struct {
	offset uint64
	size   uint64
	cmd    command
}

// scanSegment sequentially decodes every complete record in the file at
// path, starting at offset 0. It stops at the first record it cannot
// fully decode — a torn tail from a crash mid-append, or in this engine's
// case also the zero-padding left by a segment file pre-sized for
// memory-mapping (see writer.go) — and returns the offset at which
// scanning stopped, which is the true end of valid data in the segment.
// A genuine I/O failure (as opposed to running out of valid records to
// read) is not swallowed as a torn tail; it is reported to the caller.
func scanSegment(path string) (records []scannedRecord, stopOffset uint64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, ioError("scanSegment", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, 0, ioError("scanSegment", err)
	}
	remaining := uint64(fi.Size())

	r := bufio.NewReader(f)
	var offset uint64

	for {
		lenBuf := make([]byte, lenWidth)
		if _, err := io.ReadFull(r, lenBuf); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, 0, ioError("scanSegment", err)
		}
		remaining -= lenWidth
		payloadLen := enc.Uint64(lenBuf)

		// A corrupted or torn length prefix can claim a payload larger
		// than what is left in the file; treat that as a torn tail
		// rather than attempting a huge allocation.
		if payloadLen > remaining {
			break
		}

		payload := make([]byte, payloadLen)
		if _, err := io.ReadFull(r, payload); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, 0, ioError("scanSegment", err)
		}
		remaining -= payloadLen

		cmd, err := decodePayload(payload)
		if err != nil {
			break
		}

		size := lenWidth + payloadLen
		records = append(records, scannedRecord{offset: offset, size: size, cmd: cmd})
		offset += size
	}

	return records, offset, nil
}
