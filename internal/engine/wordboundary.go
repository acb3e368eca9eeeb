package engine

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// WordBoundaryInfo carries word-boundary metadata used to align final
// lattices: one line per phone, "<phone-id> <position>", where position is
// one of begin, end, internal, singleton, nonword.
type WordBoundaryInfo struct {
	Phones map[int]string
}

// LoadWordBoundaryInfo parses a word-boundary file. An empty path returns
// nil info, which disables alignment.
func LoadWordBoundaryInfo(path string) (*WordBoundaryInfo, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("engine: open word boundary file: %w", err)
	}
	defer f.Close()

	info := &WordBoundaryInfo{Phones: make(map[int]string)}
	sc := bufio.NewScanner(f)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, fmt.Errorf("engine: word boundary file %s:%d: expected 2 fields, got %d",
				path, line, len(fields))
		}
		phone, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("engine: word boundary file %s:%d: bad phone id %q", path, line, fields[0])
		}
		switch fields[1] {
		case "begin", "end", "internal", "singleton", "nonword":
		default:
			return nil, fmt.Errorf("engine: word boundary file %s:%d: bad position %q", path, line, fields[1])
		}
		info.Phones[phone] = fields[1]
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("engine: read word boundary file: %w", err)
	}
	return info, nil
}
