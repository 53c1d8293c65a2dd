package parse

import (
	"fmt"
	"strings"

	ijson "github.com/richinex/firemaker/internal/json"
)

// listingEntry is one item in a JSON answer such as
// {"items":[{"name":"logs","slot":3}]} or {"name":"logs","x":12,"y":40}.
type listingEntry struct {
	Name  string   `json:"name"`
	Slot  *int     `json:"slot"`
	X     *float64 `json:"x"`
	Y     *float64 `json:"y"`
	Found *bool    `json:"found"`
}

type listing struct {
	listingEntry
	Items []listingEntry `json:"items"`
}

// fromListing decodes a JSON answer and picks the entry named like anchor.
// ok is false when the text carries no usable listing.
func fromListing(text string, shape Shape, anchor string) (Value, bool, error) {
	if !strings.Contains(text, "{") {
		return Value{}, false, nil
	}
	l, err := ijson.ExtractJSONFromResponse[listing](text)
	if err != nil {
		return Value{}, false, nil
	}

	if len(l.Items) > 0 {
		for _, e := range l.Items {
			if strings.Contains(strings.ToLower(e.Name), anchor) {
				v, decided, err := e.value(shape, anchor)
				if decided {
					return v, true, err
				}
			}
		}
		return Value{}, true, fmt.Errorf("%w: %q not in listing", ErrAbsent, anchor)
	}

	if l.Name != "" && !strings.Contains(strings.ToLower(l.Name), anchor) {
		return Value{}, false, nil
	}
	return l.listingEntry.value(shape, anchor)
}

func (e listingEntry) value(shape Shape, anchor string) (Value, bool, error) {
	if e.Found != nil && !*e.Found {
		return Value{}, true, fmt.Errorf("%w: %q marked not found", ErrAbsent, anchor)
	}
	switch shape {
	case SlotIndex:
		if e.Slot == nil {
			return Value{}, false, nil
		}
		v, err := slotValue(fmt.Sprint(*e.Slot))
		return v, true, err
	case Coordinate:
		if e.X == nil || e.Y == nil {
			return Value{}, false, nil
		}
		v, err := coordinateValue(formatNumber(*e.X), formatNumber(*e.Y))
		return v, true, err
	}
	return Value{}, false, nil
}

// formatNumber keeps the decimal point of fractional values so normalized
// coordinates are still detected as such.
func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
