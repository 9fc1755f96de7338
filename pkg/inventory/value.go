package inventory

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ValueError reports a value that cannot be coerced to an item's
// declared type or falls outside its declared range.
type ValueError struct {
	ItemID    string
	ItemName  string
	ValueType string
	Reason    string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("item %s (%s): %s", e.ItemName, e.ValueType, e.Reason)
}

// truthy matches the strings accepted as boolean true.
var truthy = regexp.MustCompile(`(?i)^\s*(1|y|yes|t|true|on)\s*$`)

// CoerceValue converts a caller-supplied value into the JSON value
// the hub expects for the item's declared type.
//
//   - int and float parse strings and check the declared range
//   - bool accepts bools directly, nonzero numbers, and the usual
//     truthy strings (anything else is false)
//   - string and token stringify scalars
//   - any other type passes strings through and JSON-encodes the rest
func CoerceValue(item Item, value any) (any, error) {
	switch item.ValueType {
	case ValueTypeInt:
		f, err := toFloat(value)
		if err != nil {
			return nil, valueErr(item, err.Error())
		}
		if f != math.Trunc(f) {
			return nil, valueErr(item, fmt.Sprintf("%v is not an integer", value))
		}
		if err := checkRange(item, f); err != nil {
			return nil, err
		}
		return int64(f), nil

	case ValueTypeFloat:
		f, err := toFloat(value)
		if err != nil {
			return nil, valueErr(item, err.Error())
		}
		if err := checkRange(item, f); err != nil {
			return nil, err
		}
		return f, nil

	case ValueTypeBool:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			return truthy.MatchString(v), nil
		default:
			f, err := toFloat(value)
			if err != nil {
				return nil, valueErr(item, err.Error())
			}
			return f != 0, nil
		}

	case ValueTypeString, ValueTypeToken:
		return stringify(value)

	default:
		if s, ok := value.(string); ok {
			return s, nil
		}
		data, err := json.Marshal(value)
		if err != nil {
			return nil, valueErr(item, fmt.Sprintf("cannot encode %T", value))
		}
		return string(data), nil
	}
}

func valueErr(item Item, reason string) *ValueError {
	return &ValueError{
		ItemID:    item.ID,
		ItemName:  item.Name,
		ValueType: item.ValueType,
		Reason:    reason,
	}
}

func checkRange(item Item, f float64) error {
	if item.MinValue != nil && f < *item.MinValue {
		return valueErr(item, fmt.Sprintf("%v is below minimum %v", f, *item.MinValue))
	}
	if item.MaxValue != nil && f > *item.MaxValue {
		return valueErr(item, fmt.Sprintf("%v is above maximum %v", f, *item.MaxValue))
	}
	return nil
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", v)
		}
		return f, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to number", value)
	}
}

func stringify(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case json.Number:
		return v.String(), nil
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("cannot stringify %T", value)
		}
		return string(data), nil
	}
}
