// Package decode converts loosely-typed spreadsheet cells into structured values.
//
// Cells holding JSON are edited by hand (and by AI tooling) in a spreadsheet,
// so "smart" quotes and truncated literals are normal input. Parse and Into
// report failures as errors; Or substitutes a fallback at the call site and
// logs a warning.
package decode

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cuemby/sheetsite/pkg/log"
	"github.com/cuemby/sheetsite/pkg/metrics"
)

// ErrNotString is returned when the input is neither structured nor a string
var ErrNotString = errors.New("decode: input is not a string")

// DecodeError reports a string that could not be parsed as a structured literal
type DecodeError struct {
	Input string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode: invalid structured literal %q: %v", truncate(e.Input, 64), e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var quoteReplacer = strings.NewReplacer(
	"“", `"`,
	"”", `"`,
	"‘", "'",
	"’", "'",
)

// Sanitize replaces typographic quotation marks with their ASCII equivalents
func Sanitize(s string) string {
	return quoteReplacer.Replace(s)
}

// isStructured reports whether v is already a decoded value (not a string, not nil)
func isStructured(v any) bool {
	if v == nil {
		return false
	}
	_, isString := v.(string)
	return !isString
}

// Parse decodes input into a generic structured value.
// Structured input is returned unchanged.
func Parse(input any) (any, error) {
	if isStructured(input) {
		return input, nil
	}
	s, ok := input.(string)
	if !ok {
		return nil, ErrNotString
	}
	var out any
	if err := json.Unmarshal([]byte(Sanitize(s)), &out); err != nil {
		return nil, &DecodeError{Input: s, Err: err}
	}
	return out, nil
}

// Into decodes input into out, which must be a non-nil pointer.
// Structured input is bridged through JSON so a map can fill a struct.
func Into(input any, out any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decode: %v", r)
		}
	}()

	var data []byte
	switch v := input.(type) {
	case nil:
		return ErrNotString
	case string:
		data = []byte(Sanitize(v))
	case []byte:
		data = []byte(Sanitize(string(v)))
	default:
		data, err = json.Marshal(v)
		if err != nil {
			return fmt.Errorf("decode: re-encode structured input: %w", err)
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		if s, ok := input.(string); ok {
			return &DecodeError{Input: s, Err: err}
		}
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// Or decodes input into a T, returning fallback on any failure.
// A blank cell is absent rather than malformed: it is logged at debug and
// not counted as a fallback.
func Or[T any](input any, fallback T) T {
	if s, ok := input.(string); ok && strings.TrimSpace(s) == "" {
		logger := log.WithComponent("decode")
		logger.Debug().Str("reason", "blank").Msg("structured field absent, using default")
		return fallback
	}
	if input == nil {
		return fallback
	}
	if v, ok := input.(T); ok {
		return v
	}
	var out T
	if err := Into(input, &out); err != nil {
		logger := log.WithComponent("decode")
		logger.Warn().Err(err).Str("reason", "malformed").Msg("structured field fell back to default")
		metrics.DecodeFallbacksTotal.Inc()
		return fallback
	}
	return out
}

// Encode renders v as the string form stored in spreadsheet cells
func Encode(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("decode: encode: %w", err)
	}
	return string(data), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
