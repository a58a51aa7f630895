package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// segState is the single leading character in a segment's filename: '?'
// for the active write segment, '#' for a compacted segment. Both
// representations are kept (see SPEC_FULL.md §7 open questions) so the
// compactor-vs-writer races in spec §4.4 stay distinguishable on disk.
type segState byte

const (
	stateWrite segState = '?'
	stateComp  segState = '#'
)

const logExt = ".log"

func (s segState) String() string {
	if s == stateWrite {
		return "write"
	}
	return "compacted"
}

func segmentFileName(id uint64, state segState) string {
	return fmt.Sprintf("%c%d%s", byte(state), id, logExt)
}

func segmentPath(dir string, id uint64, state segState) string {
	return filepath.Join(dir, segmentFileName(id, state))
}

// segmentFile is one *.log file discovered in the store directory, parsed
// from its filename. Segment id is the canonical order; filename order
// only coincides with it within a single state.
type segmentFile struct {
	id    uint64
	state segState
	path  string
}

func parseSegmentFileName(name string) (id uint64, state segState, ok bool) {
	if !strings.HasSuffix(name, logExt) {
		return 0, 0, false
	}
	if len(name) < 2 {
		return 0, 0, false
	}
	switch name[0] {
	case byte(stateWrite):
		state = stateWrite
	case byte(stateComp):
		state = stateComp
	default:
		return 0, 0, false
	}
	idStr := strings.TrimSuffix(name[1:], logExt)
	n, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return n, state, true
}

// listSegments returns every *.log file in dir, sorted by segment id
// (not by filename — filenames only sort correctly within one state).
func listSegments(dir string) ([]segmentFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, ioError("listSegments", err)
	}

	var segs []segmentFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id, state, ok := parseSegmentFileName(entry.Name())
		if !ok {
			continue
		}
		segs = append(segs, segmentFile{id: id, state: state, path: filepath.Join(dir, entry.Name())})
	}

	sort.Slice(segs, func(i, j int) bool { return segs[i].id < segs[j].id })
	return segs, nil
}
