package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Format is one recognizable timestamp layout. When re has a capture group,
// only the group is parsed.
type Format struct {
	Name  string
	re    *regexp.Regexp
	parse func(s string) (time.Time, bool)
}

// Formats are tried in order; the first that both matches and parses wins.
var Formats = []Format{
	{
		Name:  "iso8601",
		re:    regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:[.,]\d{1,9})?(?:Z|[+-]\d{2}:?\d{2}| ?UTC)?`),
		parse: parseISO,
	},
	{
		Name:  "slash",
		re:    regexp.MustCompile(`\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}(?:\.\d{1,9})?`),
		parse: layouts("2006/01/02 15:04:05.999999999"),
	},
	{
		Name:  "syslog",
		re:    regexp.MustCompile(`(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec) [ \d]\d \d{2}:\d{2}:\d{2}`),
		parse: layouts(time.Stamp),
	},
	{
		Name:  "epoch",
		// Epoch seconds only at line start, after a time field name or '@'.
		re:    regexp.MustCompile(`(?i)(?:^\s*|\b(?:ts|time|timestamp|epoch)"?\s*[=:]\s*"?|@)(1\d{9}(?:\.\d{1,9})?)\b`),
		parse: parseEpoch,
	},
}

// Timestamp returns the first timestamp found in line and the name of the
// format that produced it. Syslog stamps carry no year and parse as year 0.
func Timestamp(line string) (time.Time, string, bool) {
	for _, f := range Formats {
		loc := f.re.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}
		if len(loc) >= 4 && loc[2] >= 0 {
			loc = loc[2:4]
		}
		if ts, ok := f.parse(line[loc[0]:loc[1]]); ok {
			return ts, f.Name, true
		}
	}
	return time.Time{}, "", false
}

// FormatOf returns the name of the first format that parses a timestamp in
// any of the given lines.
func FormatOf(lines []string) string {
	for _, l := range lines {
		if _, name, ok := Timestamp(l); ok {
			return name
		}
	}
	return ""
}

func parseISO(s string) (time.Time, bool) {
	s = strings.Replace(s, " UTC", "Z", 1)
	s = strings.Replace(s, "UTC", "Z", 1)
	s = strings.Replace(s, ",", ".", 1)
	if len(s) > 10 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999Z0700",
		"2006-01-02T15:04:05.999999999",
	} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func layouts(layout string) func(string) (time.Time, bool) {
	return func(s string) (time.Time, bool) {
		ts, err := time.Parse(layout, s)
		if err != nil {
			return time.Time{}, false
		}
		return ts.UTC(), true
	}
}

func parseEpoch(s string) (time.Time, bool) {
	sec, frac, _ := strings.Cut(s, ".")
	n, err := strconv.ParseInt(sec, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	var nanos int64
	if frac != "" {
		frac = (frac + "000000000")[:9]
		nanos, _ = strconv.ParseInt(frac, 10, 64)
	}
	return time.Unix(n, nanos).UTC(), true
}
