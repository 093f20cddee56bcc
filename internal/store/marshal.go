package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/roach88/loadmix/internal/request"
)

// encodeValues packs state values as little-endian float64 bits. Every
// float, including NaN and -0, survives the round trip exactly.
func encodeValues(vals []float64) []byte {
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return buf
}

// decodeValues unpacks a BLOB written by encodeValues. want is the number
// of state columns of the table.
func decodeValues(buf []byte, want int) ([]float64, error) {
	if len(buf) != 8*want {
		return nil, fmt.Errorf("decode values: %d bytes for %d columns", len(buf), want)
	}
	vals := make([]float64, want)
	for i := range vals {
		vals[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	return vals, nil
}

// marshalStrings converts a column name or attribute list to JSON TEXT.
// A nil slice is stored as "[]".
func marshalStrings(ss []string) (string, error) {
	if ss == nil {
		ss = []string{}
	}
	data, err := json.Marshal(ss)
	if err != nil {
		return "", fmt.Errorf("marshal strings: %w", err)
	}
	return string(data), nil
}

func unmarshalStrings(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var ss []string
	if err := json.Unmarshal([]byte(data), &ss); err != nil {
		return nil, fmt.Errorf("unmarshal strings: %w", err)
	}
	return ss, nil
}

func marshalDiagnostics(ds request.Diagnostics) (string, error) {
	if len(ds) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(ds)
	if err != nil {
		return "", fmt.Errorf("marshal diagnostics: %w", err)
	}
	return string(data), nil
}

func unmarshalDiagnostics(data string) (request.Diagnostics, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var ds request.Diagnostics
	if err := json.Unmarshal([]byte(data), &ds); err != nil {
		return nil, fmt.Errorf("unmarshal diagnostics: %w", err)
	}
	return ds, nil
}

// timeLayout stores run times as sortable UTC text.
const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time: %w", err)
	}
	return t, nil
}
