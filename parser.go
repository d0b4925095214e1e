package w1

import (
	"regexp"
	"strconv"
	"strings"
)

// The driver prefixes each line of a read cycle with a raw hex dump of
// the scratchpad, e.g. "50 05 4b 46 7f ff 0c 10 1c : crc=1c YES".
var hexPrefixPattern = regexp.MustCompile(`^(?:[0-9a-f]{2} )+`)

var valuePattern = regexp.MustCompile(`t=(-?[0-9]+)`)

func cleanLine(line string) string {
	return strings.TrimSpace(hexPrefixPattern.ReplaceAllString(strings.TrimSpace(line), ""))
}

// statusOK reports whether the status line signals a passed CRC check.
func statusOK(line string) bool {
	return strings.Contains(cleanLine(line), "YES")
}

// parseValueLine extracts the millidegree reading from the value line of
// a read cycle. Any structural deviation yields ErrorValue.
func parseValueLine(line string) Temperature {
	match := valuePattern.FindStringSubmatch(cleanLine(line))
	if match == nil {
		return ErrorValue
	}

	milli, err := strconv.Atoi(match[1])
	if err != nil {
		return ErrorValue
	}

	return FromMillidegrees(milli)
}

// ParseReading interprets the two lines of one driver read cycle. The
// value line is only consulted when the status line passes validation.
func ParseReading(status, value string) Temperature {
	if !statusOK(status) {
		return ErrorValue
	}

	return parseValueLine(value)
}
