package trace

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
)

// ErrNonFinite is returned when a record carries a NaN or infinite field.
var ErrNonFinite = errors.New("record has non-finite numeric field")

// RegionLog collects finalized region records in append order and optionally
// streams each one as a JSON line to a sink.
//
// Thread-safety: NOT thread-safe. The region controller appends under its lock.
type RegionLog struct {
	records []RegionRecord
	enc     *json.Encoder
}

// NewRegionLog creates a RegionLog. A nil sink keeps records in memory only.
func NewRegionLog(sink io.Writer) *RegionLog {
	l := &RegionLog{
		records: make([]RegionRecord, 0),
	}
	if sink != nil {
		l.enc = json.NewEncoder(sink)
	}
	return l
}

// Append validates and records a finalized region. The record is copied; later
// mutation by the caller does not affect the log.
func (l *RegionLog) Append(record RegionRecord) error {
	if !finite(record.EstimatedTime) || !finite(record.IPC) || !finite(record.Error) {
		return fmt.Errorf("region %d: %w", record.RegionID, ErrNonFinite)
	}
	record = record.Clone()
	l.records = append(l.records, record)
	if l.enc != nil {
		if err := l.enc.Encode(&record); err != nil {
			return fmt.Errorf("writing region %d: %w", record.RegionID, err)
		}
	}
	return nil
}

// Len returns the number of finalized records.
func (l *RegionLog) Len() int {
	return len(l.records)
}

// Records returns a copy of all finalized records in append order.
func (l *RegionLog) Records() []RegionRecord {
	out := make([]RegionRecord, len(l.records))
	for i := range l.records {
		out[i] = l.records[i].Clone()
	}
	return out
}

// ReadRegionLog decodes a JSON-lines region log.
func ReadRegionLog(r io.Reader) ([]RegionRecord, error) {
	dec := json.NewDecoder(bufio.NewReader(r))
	var records []RegionRecord
	for {
		var rec RegionRecord
		err := dec.Decode(&rec)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decoding region %d: %w", len(records), err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
