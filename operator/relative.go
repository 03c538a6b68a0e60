package operator

import (
	"regexp"
	"strconv"
	"time"
)

var relativeToken = regexp.MustCompile(`^last_(\d+)_(day|week|month|year)s?$`)

// CheckRelativeDate is true when actual falls within [threshold, now], where
// the threshold is now less the span named by a token like "last_3_months".
// Malformed tokens and unparseable dates are false.
func CheckRelativeDate(actual any, token string, now time.Time) bool {

	threshold, ok := RelativeThreshold(token, now)
	if !ok {
		return false
	}

	tm, ok := ParseTime(actual)
	if !ok {
		return false
	}

	return !tm.Before(threshold) && !tm.After(now)
}

// RelativeThreshold resolves a relative token against now.
func RelativeThreshold(token string, now time.Time) (threshold time.Time, ok bool) {

	match := relativeToken.FindStringSubmatch(token)
	if match == nil {
		return
	}

	n, err := strconv.Atoi(match[1])
	if err != nil {
		return
	}

	switch match[2] {
	case "day":
		threshold = now.AddDate(0, 0, -n)
	case "week":
		threshold = now.AddDate(0, 0, -7*n)
	case "month":
		threshold = now.AddDate(0, -n, 0)
	case "year":
		threshold = now.AddDate(-n, 0, 0)
	}

	return threshold, true
}
