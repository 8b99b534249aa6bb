package extract

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	uuidRe = regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`)

	// keyed IDs: req=abc123, trace_id: 4bf92f, "session-id"="x9f…"
	keyedRe = regexp.MustCompile(`(?i)\b(?:req(?:uest)?|trace|span|session|correlation|corr|txn|transaction|job|task|x-request)(?:[_.-]?id)?"?\s*[=:]\s*["']?([A-Za-z0-9][A-Za-z0-9._:-]{2,63})`)

	// bare hex IDs long enough to be trace or span identifiers
	hexRe = regexp.MustCompile(`\b(?:0x)?([0-9a-fA-F]{16,64})\b`)

	// numeric request IDs written as "request #123456" or "req 123456"
	numericRe = regexp.MustCompile(`(?i)\b(?:request|req|rid)\s*#\s*(\d{3,})\b`)
)

// Keys returns every correlation token found in text, lower-cased and
// de-duplicated in discovery order. Keyed values without a digit are
// ignored; "request: invalid token" names no request.
func Keys(text string) []string {
	var keys []string
	seen := make(map[string]struct{})
	add := func(k string) {
		k = strings.ToLower(strings.Trim(k, `"'.,:;`))
		if len(k) < 3 {
			return
		}
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	for _, m := range uuidRe.FindAllString(text, -1) {
		if u, err := uuid.Parse(m); err == nil {
			add(u.String())
		}
	}
	for _, m := range keyedRe.FindAllStringSubmatch(text, -1) {
		// uuid.Parse also takes 32-hex IDs; those stay raw for hexRe.
		if isDashedUUID(m[1]) {
			if u, err := uuid.Parse(m[1]); err == nil {
				add(u.String())
				continue
			}
		}
		if hasDigit(m[1]) {
			add(m[1])
		}
	}
	for _, m := range hexRe.FindAllStringSubmatch(text, -1) {
		if isDigits(m[1]) {
			continue
		}
		add(m[1])
	}
	for _, m := range numericRe.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	return keys
}

func isDashedUUID(s string) bool {
	return len(s) == 36 && uuidRe.MatchString(s)
}

func hasDigit(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
