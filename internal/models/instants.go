package models

import "time"

// NormalizeInstant converts a raw Firestore field value to a time.Time.
// Document timestamps may arrive either as server-side timestamp objects
// (decoded to time.Time) or as epoch milliseconds written by older clients;
// both must resolve to the same instant. Returns the zero time and false for
// anything else.
func NormalizeInstant(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case int64:
		return time.UnixMilli(t), true
	case float64:
		return time.UnixMilli(int64(t)), true
	case int:
		return time.UnixMilli(int64(t)), true
	default:
		return time.Time{}, false
	}
}
