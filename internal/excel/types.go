package excel

import (
	"strconv"
	"strings"
	"time"
)

// Type tags form a small closed vocabulary. A column gets a tag when at least
// 80% of its non-empty cells classify to it; mixed columns degrade to string,
// columns with no observations are unknown.
const (
	TypeInteger  = "integer"
	TypeFloat    = "float"
	TypeBoolean  = "boolean"
	TypeDatetime = "datetime"
	TypeString   = "string"
	TypeUnknown  = "unknown"
)

const typeMajorityThreshold = 0.8

var datetimeLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006-01-02 15:04:05",
	"01-02-06",
	"1/2/06 15:04",
	time.RFC3339,
}

func inferColumnType(rows [][]string, col int) string {
	counts := map[string]int{}
	total := 0

	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		val := strings.TrimSpace(row[col])
		if val == "" {
			continue
		}
		total++
		counts[classifyCell(val)]++
	}

	if total == 0 {
		return TypeUnknown
	}

	for _, tag := range []string{TypeBoolean, TypeInteger, TypeDatetime} {
		if float64(counts[tag])/float64(total) >= typeMajorityThreshold {
			return tag
		}
	}
	// integers count toward float columns: a column of 1, 2, 3.5 is float
	if float64(counts[TypeFloat]+counts[TypeInteger])/float64(total) >= typeMajorityThreshold &&
		counts[TypeFloat] > 0 {
		return TypeFloat
	}
	return TypeString
}

func classifyCell(val string) string {
	switch strings.ToLower(val) {
	case "true", "false":
		return TypeBoolean
	}
	if _, err := strconv.ParseInt(val, 10, 64); err == nil {
		return TypeInteger
	}
	if _, err := strconv.ParseFloat(val, 64); err == nil {
		return TypeFloat
	}
	for _, layout := range datetimeLayouts {
		if _, err := time.Parse(layout, val); err == nil {
			return TypeDatetime
		}
	}
	return TypeString
}
