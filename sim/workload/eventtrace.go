package workload

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	// TraceVersion is the event-trace format version written by ExportEventTrace.
	TraceVersion = 1
	// TimeUnitFemtoseconds is the only supported sim_time unit.
	TimeUnitFemtoseconds = "femtoseconds"
)

// EventKind is the type of one instrumentation event.
type EventKind int

const (
	EventThreadStart EventKind = iota + 1
	EventBasicBlock
	EventBarrierStart
	EventBarrierEnd
	EventProgramEnd
)

var eventKindNames = map[EventKind]string{
	EventThreadStart:  "thread_start",
	EventBasicBlock:   "basic_block",
	EventBarrierStart: "barrier_start",
	EventBarrierEnd:   "barrier_end",
	EventProgramEnd:   "program_end",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// ParseEventKind returns the EventKind with the given CSV name.
func ParseEventKind(name string) (EventKind, error) {
	for k, n := range eventKindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event kind %q", name)
}

// Event is one row of an event trace.
type Event struct {
	Kind         EventKind
	Thread       int
	PC           uint64 // block or barrier address; unused for thread_start and program_end
	Instructions uint32 // basic_block only
	SimTimeFs    uint64 // host simulated time when the event fired
}

// TraceHeader captures metadata for an event trace.
type TraceHeader struct {
	Version      int    `yaml:"trace_version"`
	TimeUnit     string `yaml:"time_unit"`
	CreatedAt    string `yaml:"created_at,omitempty"`
	Mode         string `yaml:"mode"` // "captured" or "generated"
	Threads      int    `yaml:"threads"`
	Seed         int64  `yaml:"seed,omitempty"`
	WorkloadSpec string `yaml:"workload_spec,omitempty"`
}

// EventTrace combines header and events for a complete trace.
type EventTrace struct {
	Header TraceHeader
	Events []Event
}

// CSV column headers for the event trace format.
var eventColumns = []string{"kind", "thread", "pc", "instructions", "sim_time_fs"}

// ExportEventTrace writes the trace header (YAML) and events (CSV) to separate files.
func ExportEventTrace(header *TraceHeader, events []Event, headerPath, dataPath string) error {
	headerData, err := yaml.Marshal(header)
	if err != nil {
		return fmt.Errorf("marshaling trace header: %w", err)
	}
	if err := os.WriteFile(headerPath, headerData, 0644); err != nil {
		return fmt.Errorf("writing trace header: %w", err)
	}

	file, err := os.Create(dataPath)
	if err != nil {
		return fmt.Errorf("creating trace data file: %w", err)
	}
	if err := WriteEvents(file, events); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing trace data file: %w", err)
	}
	return nil
}

// WriteEvents writes events as CSV with a header row. PCs are hex.
func WriteEvents(w io.Writer, events []Event) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(eventColumns); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for i, e := range events {
		row := []string{
			e.Kind.String(),
			strconv.Itoa(e.Thread),
			"0x" + strconv.FormatUint(e.PC, 16),
			strconv.FormatUint(uint64(e.Instructions), 10),
			strconv.FormatUint(e.SimTimeFs, 10),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing CSV row %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flushing CSV: %w", err)
	}
	return nil
}

// LoadEventTrace reads an event trace header (YAML) and data (CSV).
func LoadEventTrace(headerPath, dataPath string) (*EventTrace, error) {
	headerData, err := os.ReadFile(headerPath)
	if err != nil {
		return nil, fmt.Errorf("reading trace header: %w", err)
	}
	header, err := parseTraceHeader(headerData)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(dataPath)
	if err != nil {
		return nil, fmt.Errorf("opening trace data: %w", err)
	}
	defer func() { _ = file.Close() }()

	events, err := ReadEvents(file)
	if err != nil {
		return nil, err
	}
	return &EventTrace{Header: *header, Events: events}, nil
}

func parseTraceHeader(data []byte) (*TraceHeader, error) {
	var header TraceHeader
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&header); err != nil {
		return nil, fmt.Errorf("parsing trace header: %w", err)
	}
	if header.Version != TraceVersion {
		return nil, fmt.Errorf("unsupported trace_version %d, want %d", header.Version, TraceVersion)
	}
	if header.TimeUnit != TimeUnitFemtoseconds {
		return nil, fmt.Errorf("unsupported time_unit %q, want %q", header.TimeUnit, TimeUnitFemtoseconds)
	}
	return &header, nil
}

// ReadEvents parses CSV event rows, skipping the header row.
func ReadEvents(r io.Reader) ([]Event, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(eventColumns)

	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	var events []Event
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row: %w", err)
		}
		e, err := parseEvent(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		events = append(events, e)
	}
	return events, nil
}

func parseEvent(row []string) (Event, error) {
	kind, err := ParseEventKind(row[0])
	if err != nil {
		return Event{}, err
	}
	thread, err := strconv.Atoi(row[1])
	if err != nil {
		return Event{}, fmt.Errorf("thread: %w", err)
	}
	pc, err := strconv.ParseUint(row[2], 0, 64)
	if err != nil {
		return Event{}, fmt.Errorf("pc: %w", err)
	}
	instructions, err := strconv.ParseUint(row[3], 10, 32)
	if err != nil {
		return Event{}, fmt.Errorf("instructions: %w", err)
	}
	simTime, err := strconv.ParseUint(row[4], 10, 64)
	if err != nil {
		return Event{}, fmt.Errorf("sim_time_fs: %w", err)
	}
	return Event{
		Kind:         kind,
		Thread:       thread,
		PC:           pc,
		Instructions: uint32(instructions),
		SimTimeFs:    simTime,
	}, nil
}
