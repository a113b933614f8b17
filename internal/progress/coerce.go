package progress

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CoerceResponseMs converts an untyped response time, typically decoded
// from JSON, into milliseconds. nil stays nil. Integers, integral floats and
// numeric strings are accepted; negative values and everything else return
// ErrInvalidResponseTime.
func CoerceResponseMs(v any) (*int64, error) {
	var f float64
	switch x := v.(type) {
	case nil:
		return nil, nil
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		if x < 0 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidResponseTime, x)
		}
		return &x, nil
	case float32:
		f = float64(x)
	case float64:
		f = x
	case json.Number:
		parsed, err := strconv.ParseFloat(x.String(), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidResponseTime, x.String())
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidResponseTime, x)
		}
		f = parsed
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrInvalidResponseTime, v)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f != math.Trunc(f) || f > math.MaxInt64 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponseTime, v)
	}
	ms := int64(f)
	return &ms, nil
}
