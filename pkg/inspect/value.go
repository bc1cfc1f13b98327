package inspect

import (
	"strconv"
	"strings"
)

// ParseValue converts console input to a document value. It tries int64,
// then float64, then bool; anything else is a string with surrounding
// quotes removed.
func ParseValue(input string) any {
	input = strings.TrimSpace(input)
	if v, err := strconv.ParseInt(input, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(input, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseBool(input); err == nil {
		return v
	}
	return strings.Trim(input, "\"'")
}
