package api

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Calendar layouts accepted for the date parameter, tried in order. A value
// that is all digits is epoch milliseconds instead.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseDate resolves the date query parameter. An empty value means "now".
// The second result reports whether the value was a calendar date rather
// than epoch milliseconds; calendar dates carry no zone of their own and the
// book endpoint compensates for the server zone.
func parseDate(raw string) (time.Time, bool, error) {
	if raw == "" {
		return time.Now(), false, nil
	}

	if isMillis(raw) {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("failed to parse date: %s", raw)
		}
		return time.UnixMilli(ms), false, nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("failed to parse date: %s", raw)
}

func isMillis(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// zoneCorrected shifts a calendar-parsed instant by the server's zone offset,
// matching how dated book queries have always been interpreted.
func zoneCorrected(t time.Time) time.Time {
	_, offset := time.Now().Zone()
	return t.Add(time.Duration(offset) * time.Second)
}

// parseIDList splits a repeated or comma-separated id parameter.
func parseIDList(values []string) ([]int64, error) {
	var ids []int64
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("failed to parse id: %s", part)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
