package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

var requiredColumns = []string{
	"direction", "frame_id", "frame_name", "cycle_ms", "dlc",
	"signal_name", "start_bit", "bit_length",
	"signed", "factor", "offset", "min", "max", "default", "unit", "comment",
}

// LoadCANMap reads a CAN map CSV from disk.
func LoadCANMap(csvPath string) (*CANMap, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := ParseCANMap(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", csvPath, err)
	}
	return m, nil
}

// ParseCANMap builds a CANMap from CSV rows, one row per signal.
// An optional "endianness" column is accepted but only "little" is supported.
func ParseCANMap(src io.Reader) (*CANMap, error) {
	r := csv.NewReader(src)
	r.TrimLeadingSpace = true
	r.Comment = '#'

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, k := range requiredColumns {
		if _, ok := idx[k]; !ok {
			return nil, fmt.Errorf("can map missing required column: %q", k)
		}
	}

	m := &CANMap{
		ByID:   map[uint32]*FrameDef{},
		ByName: map[string]*FrameDef{},
	}

	for row := 1; ; row++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		cr := csvRow{rec: rec, idx: idx}
		if err := m.addRow(&cr); err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
	}

	for _, fd := range m.ByID {
		sort.Slice(fd.Signals, func(i, j int) bool { return fd.Signals[i].StartBit < fd.Signals[j].StartBit })
	}

	return m, nil
}

func (m *CANMap) addRow(row *csvRow) error {
	frameID, err := parseHexOrDecUint32(row.str("frame_id"))
	if err != nil {
		return fmt.Errorf("invalid frame_id %q: %w", row.str("frame_id"), err)
	}
	frameName := row.str("frame_name")
	direction := strings.ToLower(row.str("direction"))
	cycleMS := row.int("cycle_ms")
	dlc := row.int("dlc")

	sig := SignalDef{
		Name:      row.str("signal_name"),
		StartBit:  row.int("start_bit"),
		BitLength: row.int("bit_length"),
		Signed:    row.bool("signed"),
		Factor:    row.float("factor"),
		Offset:    row.float("offset"),
		Min:       row.float("min"),
		Max:       row.float("max"),
		Default:   row.float("default"),
		Unit:      row.str("unit"),
		Comment:   row.str("comment"),
	}
	if row.err != nil {
		return fmt.Errorf("frame %s signal %s: %w", frameName, sig.Name, row.err)
	}

	if e := row.str("endianness"); e != "" && e != "little" {
		return fmt.Errorf("frame %s signal %s: unsupported endianness %q (only little supported)",
			frameName, sig.Name, e)
	}
	if direction != FrameRX && direction != FrameTX {
		return fmt.Errorf("frame %s: direction must be %q or %q, got %q", frameName, FrameRX, FrameTX, direction)
	}
	if sig.BitLength <= 0 || sig.BitLength > 64 {
		return fmt.Errorf("frame %s signal %s: invalid bit_length %d", frameName, sig.Name, sig.BitLength)
	}
	if sig.StartBit < 0 || sig.StartBit+sig.BitLength > 64 {
		return fmt.Errorf("frame %s signal %s: bits %d..%d exceed payload", frameName, sig.Name,
			sig.StartBit, sig.StartBit+sig.BitLength-1)
	}
	if sig.Factor == 0 {
		return fmt.Errorf("frame %s signal %s: factor must be non-zero", frameName, sig.Name)
	}
	if dlc <= 0 || dlc > 8 {
		return fmt.Errorf("frame %s (0x%X): invalid dlc %d", frameName, frameID, dlc)
	}

	fd, ok := m.ByID[frameID]
	if !ok {
		fd = &FrameDef{
			ID:        frameID,
			Name:      frameName,
			DLC:       dlc,
			Direction: direction,
			CycleMS:   cycleMS,
		}
		m.ByID[frameID] = fd
		m.ByName[frameName] = fd
	}
	if fd.DLC != dlc {
		return fmt.Errorf("frame %s (0x%X) has inconsistent DLC (%d vs %d)", frameName, frameID, fd.DLC, dlc)
	}
	if sig.StartBit+sig.BitLength > 8*dlc {
		return fmt.Errorf("frame %s signal %s: does not fit in %d bytes", frameName, sig.Name, dlc)
	}

	fd.Signals = append(fd.Signals, sig)
	return nil
}

func (m *CANMap) FrameByName(name string) (*FrameDef, error) {
	fd, ok := m.ByName[name]
	if !ok {
		return nil, fmt.Errorf("unknown frame %q (available: %v)", name, m.FrameNames())
	}
	return fd, nil
}

func (m *CANMap) FrameByID(id uint32) (*FrameDef, error) {
	fd, ok := m.ByID[id]
	if !ok {
		return nil, fmt.Errorf("unknown frame id 0x%X", id)
	}
	return fd, nil
}

// csvRow reads typed columns and keeps the first conversion error.
type csvRow struct {
	rec []string
	idx map[string]int
	err error
}

func (r *csvRow) str(col string) string {
	i, ok := r.idx[col]
	if !ok || i >= len(r.rec) {
		return ""
	}
	return strings.TrimSpace(r.rec[i])
}

func (r *csvRow) int(col string) int {
	v, err := strconv.Atoi(r.str(col))
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("column %s: %w", col, err)
	}
	return v
}

func (r *csvRow) float(col string) float64 {
	v, err := strconv.ParseFloat(r.str(col), 64)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("column %s: %w", col, err)
	}
	return v
}

func (r *csvRow) bool(col string) bool {
	switch strings.ToLower(r.str(col)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

func parseHexOrDecUint32(s string) (uint32, error) {
	ss := strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(ss, "0x") || strings.HasPrefix(ss, "0X") {
		base = 16
		ss = ss[2:]
	}
	u, err := strconv.ParseUint(ss, base, 32)
	if err != nil {
		return 0, err
	}
	return uint32(u), nil
}
