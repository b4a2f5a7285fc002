package fixup

import (
	"fmt"
	"time"

	"github.com/Ashfaaq98/stixkit/internal/stix"
)

// TimestampLayout is the millisecond-precision UTC form written back.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// RepairRelationshipTimes makes stop_time strictly later than start_time on
// every relationship carrying both, by moving stop_time to start_time + 1ms.
// A time present with a non-string value is malformed, not absent.
func RepairRelationshipTimes(objects []stix.Object) (int, error) {
	repaired := 0
	for _, obj := range objects {
		switch obj.Kind() {
		case stix.KindRelationship:
			rawStart, hasStart := obj["start_time"]
			rawStop, hasStop := obj["stop_time"]
			if !hasStart || !hasStop {
				continue
			}
			startT, err := parseTimestamp(rawStart)
			if err != nil {
				return repaired, fmt.Errorf("%s start_time: %w", obj.ID(), err)
			}
			stopT, err := parseTimestamp(rawStop)
			if err != nil {
				return repaired, fmt.Errorf("%s stop_time: %w", obj.ID(), err)
			}
			if stopT.After(startT) {
				continue
			}
			obj["stop_time"] = startT.Truncate(time.Millisecond).Add(time.Millisecond).Format(TimestampLayout)
			repaired++
		}
	}
	return repaired, nil
}

// naiveLayout is an ISO-8601 instant without a zone, read as UTC.
const naiveLayout = "2006-01-02T15:04:05.999999999"

// parseTimestamp accepts RFC 3339 instants with any fractional precision, or
// zone-less instants taken as UTC. The result keeps full precision.
func parseTimestamp(v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %v is %T, not a string", ErrBadTimestamp, v, v)
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(naiveLayout, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w %q", ErrBadTimestamp, s)
}
