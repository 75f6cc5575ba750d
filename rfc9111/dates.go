package rfc9111

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// §  1.2.2. Delta Seconds
// §
// §  The delta-seconds rule specifies a non-negative integer, representing time
// §  in seconds.
// §
// §  A recipient parsing a delta-seconds value and converting it to binary form
// §  ought to use an arithmetic type of at least 31 bits of non-negative integer
// §  range. If a cache receives a delta-seconds value greater than the greatest
// §  integer it can represent, or if any of its subsequent calculations overflows,
// §  the cache MUST consider the value to be 2147483648 (2^31) or the greatest
// §  positive integer it can conveniently represent.
// deltaSeconds parses a delta-seconds value, reporting false for negative or
// non-numeric input - such values are treated as absent by the caller, not
// as zero.
func deltaSeconds(secondsStr string) (time.Duration, bool) {
	seconds, err := strconv.ParseUint(secondsStr, 10, 64)
	if err != nil {
		return 0, false
	}
	return time.Second * time.Duration(seconds), true
}

func toDeltaSeconds(duration time.Duration) string {
	return fmt.Sprintf("%.f", duration.Seconds())
}

// §  5.6.7.  Date/Time Formats
// §
// §  The preferred format is a fixed-length and single-zone subset of the date
// §  and time specification used by the Internet Message Format [RFC5322].
// §  HTTP-date is case sensitive. Section 4.2 of [CACHING] relaxes this for
// §  cache recipients.
const imfDateLayout = "Mon, 02 Jan 2006 15:04:05 MST"

// HttpDate parses an HTTP-date value, accepting the preferred IMF-fixdate
// format as well as the two obsolete formats (RFC 850 and asctime).
func HttpDate(dateStr string) (time.Time, error) {
	if date, err := imfDate(dateStr); err == nil {
		return date, err
	} else if date, err := obsDate(dateStr); err == nil {
		return date, err
	} else {
		return date, err
	}
}

func imfDate(dateStr string) (time.Time, error) {
	date, err := time.Parse(imfDateLayout, normalizeDateStr(dateStr))
	if err != nil {
		return date, err
	}
	if date.Location().String() != "GMT" {
		return date, fmt.Errorf("date %s is not in GMT time, but %s", date, date.Location())
	}
	return date, err
}

func obsDate(dateStr string) (time.Time, error) {
	str := normalizeDateStr(dateStr)
	if date, err := time.Parse(time.RFC850, str); err == nil {
		return date, err
	}
	return time.Parse(time.ANSIC, str)
}

func normalizeDateStr(dateStr string) string {
	return strings.ToUpper(dateStr)
}

func durationMax(d1, d2 time.Duration) time.Duration {
	if d1 > d2 {
		return d1
	}
	return d2
}
