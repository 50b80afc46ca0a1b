// Package tracker parses the solver's pipe record stream (spec.md
// §4.6): a named pipe carrying one comma-separated constraint record
// per line, with an inline data blob continuation line whenever a
// record's isgep field equals 2.
//
// Grounded on original_source/.../fuzzer/src/fifo.rs.
package tracker

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DataBlobLen is the fixed size of a decoded inline data blob, per
// spec.md §4.6: shorter payloads are zero-padded to it, longer ones are
// truncated to it.
const DataBlobLen = 1024

// Pipe names map to the two tracker-to-solver channels spec.md §6
// describes (pipeid 2 and 3); any other id falls back to the first.
const (
	DefaultPipePath = "/tmp/wp2"
	AltPipePath     = "/tmp/wp3"
)

// PipePathFor resolves a pipeid to its named pipe path.
func PipePathFor(pipeid int) string {
	switch pipeid {
	case 3:
		return AltPipePath
	default:
		return DefaultPipePath
	}
}

// Record is one parsed constraint line the tracker writes into the
// pipe for the solver to consume.
type Record struct {
	Tid       uint32
	Label     uint32
	Direction uint64
	Addr      uint64
	Ctx       uint64
	Order     uint32
	IsGEP     uint32
	InputID   uint32
	Blob      []byte // only populated when IsGEP == 2
}

// ReadAll drains r to EOF, returning every parsed record. A record
// with IsGEP == 2 consumes one additional line as its inline data
// blob, sized by the record's own Label field (per the original's
// reuse of that field as a byte count in the continuation case).
func ReadAll(r io.Reader) ([]Record, error) {
	reader := bufio.NewReader(r)
	var records []Record

	for {
		line, err := reader.ReadString('\n')
		if len(line) == 0 {
			if err == io.EOF {
				break
			}
			if err != nil {
				return records, fmt.Errorf("tracker: reading pipe: %w", err)
			}
		}

		rec, parseErr := parseRecordLine(line)
		if parseErr != nil {
			return records, parseErr
		}

		if rec.IsGEP == 2 {
			blobLine, blobErr := reader.ReadString('\n')
			if len(blobLine) == 0 {
				if blobErr != nil && blobErr != io.EOF {
					return records, fmt.Errorf("tracker: reading pipe: %w", blobErr)
				}
				break
			}
			blob, err := parseBlobLine(blobLine, int(rec.Label))
			if err != nil {
				return records, err
			}
			rec.Blob = blob
		}

		records = append(records, rec)

		if err == io.EOF {
			break
		}
	}

	return records, nil
}

func parseRecordLine(line string) (Record, error) {
	tokens := strings.Split(strings.TrimSpace(line), ",")
	if len(tokens) < 8 {
		return Record{}, fmt.Errorf("tracker: malformed record line %q: expected 8 fields, got %d", line, len(tokens))
	}

	u32 := func(s string) (uint32, error) {
		v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
		return uint32(v), err
	}
	u64 := func(s string) (uint64, error) {
		v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
		return v, err
	}

	var rec Record
	var err error
	if rec.Tid, err = u32(tokens[0]); err != nil {
		return Record{}, fmt.Errorf("tracker: parsing tid: %w", err)
	}
	if rec.Label, err = u32(tokens[1]); err != nil {
		return Record{}, fmt.Errorf("tracker: parsing label: %w", err)
	}
	if rec.Direction, err = u64(tokens[2]); err != nil {
		return Record{}, fmt.Errorf("tracker: parsing direction: %w", err)
	}
	if rec.Addr, err = u64(tokens[3]); err != nil {
		return Record{}, fmt.Errorf("tracker: parsing addr: %w", err)
	}
	if rec.Ctx, err = u64(tokens[4]); err != nil {
		return Record{}, fmt.Errorf("tracker: parsing ctx: %w", err)
	}
	if rec.Order, err = u32(tokens[5]); err != nil {
		return Record{}, fmt.Errorf("tracker: parsing order: %w", err)
	}
	if rec.IsGEP, err = u32(tokens[6]); err != nil {
		return Record{}, fmt.Errorf("tracker: parsing isgep: %w", err)
	}
	if rec.InputID, err = u32(tokens[7]); err != nil {
		return Record{}, fmt.Errorf("tracker: parsing inputid: %w", err)
	}
	return rec, nil
}

func parseBlobLine(line string, size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("tracker: negative blob size %d", size)
	}
	if size > DataBlobLen {
		size = DataBlobLen
	}
	tokens := strings.Split(strings.TrimSpace(line), ",")
	if len(tokens) < size {
		return nil, fmt.Errorf("tracker: blob line has %d fields, want at least %d", len(tokens), size)
	}

	blob := make([]byte, DataBlobLen)
	for i := 0; i < size; i++ {
		v, err := strconv.ParseUint(strings.TrimSpace(tokens[i]), 10, 8)
		if err != nil {
			return nil, fmt.Errorf("tracker: parsing blob byte %d: %w", i, err)
		}
		blob[i] = byte(v)
	}
	return blob, nil
}
