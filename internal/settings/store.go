package settings

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nyanpass/panel/internal/models"
)

type snapshot struct {
	updatedAt time.Time
	values    map[string]json.RawMessage
}

var dbConfig atomic.Value

func init() {
	dbConfig.Store(snapshot{values: map[string]json.RawMessage{}})
}

// StoreDBConfig replaces the in-memory settings snapshot.
func StoreDBConfig(updatedAt time.Time, values map[string]json.RawMessage) {
	next := make(map[string]json.RawMessage, len(values))
	for key, value := range values {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		next[key] = append(json.RawMessage(nil), value...)
	}
	dbConfig.Store(snapshot{updatedAt: updatedAt.UTC(), values: next})
}

// StoreRows builds the snapshot from setting rows.
func StoreRows(rows []models.Setting) time.Time {
	values := make(map[string]json.RawMessage, len(rows))
	latest := time.Time{}
	for _, row := range rows {
		values[row.Key] = json.RawMessage(row.Value)
		if row.UpdatedAt.After(latest) {
			latest = row.UpdatedAt
		}
	}
	StoreDBConfig(latest, values)
	return latest.UTC()
}

// DBConfigValue returns the raw JSON value stored for key.
func DBConfigValue(key string) (json.RawMessage, bool) {
	snap, _ := dbConfig.Load().(snapshot)
	value, ok := snap.values[strings.TrimSpace(key)]
	if !ok || len(bytes.TrimSpace(value)) == 0 {
		return nil, false
	}
	return value, true
}

// UpdatedAt returns the newest setting timestamp seen by the snapshot.
func UpdatedAt() time.Time {
	snap, _ := dbConfig.Load().(snapshot)
	return snap.updatedAt
}

// Int returns the integer setting for key or fallback.
func Int(key string, fallback int) int {
	raw, ok := DBConfigValue(key)
	if !ok {
		return fallback
	}
	if v, okParse := ParseInt(raw); okParse {
		return v
	}
	return fallback
}

// Bool returns the boolean setting for key or fallback.
func Bool(key string, fallback bool) bool {
	raw, ok := DBConfigValue(key)
	if !ok {
		return fallback
	}
	if v, okParse := ParseBool(raw); okParse {
		return v
	}
	return fallback
}

// String returns the string setting for key or fallback.
func String(key, fallback string) string {
	raw, ok := DBConfigValue(key)
	if !ok {
		return fallback
	}
	if v, okParse := ParseString(raw); okParse && v != "" {
		return v
	}
	return fallback
}

// Money returns a decimal amount setting for key or fallback.
func Money(key string, fallback models.Money) models.Money {
	raw, ok := DBConfigValue(key)
	if !ok {
		return fallback
	}
	var m models.Money
	if errUnmarshal := json.Unmarshal(raw, &m); errUnmarshal != nil || m < 0 {
		return fallback
	}
	return m
}

// ParseBool accepts JSON booleans, 0/1 and common string spellings.
func ParseBool(raw json.RawMessage) (bool, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false, false
	}
	var parsedBool bool
	if errUnmarshalBool := json.Unmarshal(raw, &parsedBool); errUnmarshalBool == nil {
		return parsedBool, true
	}
	var parsedString string
	if errUnmarshalString := json.Unmarshal(raw, &parsedString); errUnmarshalString == nil {
		switch strings.ToLower(strings.TrimSpace(parsedString)) {
		case "1", "true", "yes", "y", "on":
			return true, true
		case "0", "false", "no", "n", "off":
			return false, true
		default:
			return false, false
		}
	}
	var parsedFloat float64
	if errUnmarshalFloat := json.Unmarshal(raw, &parsedFloat); errUnmarshalFloat == nil {
		if parsedFloat == 1 {
			return true, true
		}
		if parsedFloat == 0 {
			return false, true
		}
	}
	return false, false
}

// ParseString accepts a JSON string.
func ParseString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	var parsedString string
	if errUnmarshal := json.Unmarshal(raw, &parsedString); errUnmarshal == nil {
		return strings.TrimSpace(parsedString), true
	}
	return "", false
}

// ParseInt accepts non-negative JSON integers, integral floats and numeric strings.
func ParseInt(raw json.RawMessage) (int, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}
	var parsedInt int
	if errUnmarshalInt := json.Unmarshal(raw, &parsedInt); errUnmarshalInt == nil {
		return parsedInt, parsedInt >= 0
	}
	var parsedString string
	if errUnmarshalString := json.Unmarshal(raw, &parsedString); errUnmarshalString == nil {
		parsed, errParse := strconv.Atoi(strings.TrimSpace(parsedString))
		if errParse != nil {
			return 0, false
		}
		return parsed, parsed >= 0
	}
	var parsedFloat float64
	if errUnmarshalFloat := json.Unmarshal(raw, &parsedFloat); errUnmarshalFloat == nil {
		if math.IsNaN(parsedFloat) || math.IsInf(parsedFloat, 0) {
			return 0, false
		}
		if parsedFloat < 0 || parsedFloat != math.Trunc(parsedFloat) {
			return 0, false
		}
		return int(parsedFloat), true
	}
	return 0, false
}
