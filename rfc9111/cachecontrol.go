package rfc9111

import (
	"strings"
	"time"
)

// §  5.2. Cache-Control
// §
// §  The "Cache-Control" header field is used to list directives for caches
// §  along the request/response chain. Cache directives are unidirectional, in
// §  that the presence of a directive in a request does not imply that the
// §  same directive is present or copied in the response. Cache directives are
// §  identified by a token, to be compared case-insensitively, and have an
// §  optional argument that can use both token and quoted-string syntax.
// §
// §    Cache-Control   = #cache-directive
// §    cache-directive = token [ "=" ( token / quoted-string ) ]
type CacheControl struct {
	directives map[string]string
}

// Get returns the value (argument) of the specified directive, along with
// a boolean indicating whether the directive is present.
func (c CacheControl) Get(directive string) (string, bool) {
	val, ok := c.directives[directive]
	return val, ok
}

// HasDirective returns whether the specified directive is present.
func (c CacheControl) HasDirective(directive string) bool {
	_, ok := c.Get(directive)
	return ok
}

// ParseCacheControl takes Cache-Control header field values as a slice of
// strings and returns a CacheControl. Later occurrences of a directive
// overwrite earlier ones.
func ParseCacheControl(headers []string) CacheControl {
	m := make(map[string]string)
	for _, header := range headers {
		for _, directive := range strings.Split(header, ", ") {
			parts := strings.SplitN(directive, "=", 2)
			name := getCacheControlDirectiveName(parts[0])
			if name == "" {
				continue
			}
			var arg string
			if len(parts) > 1 {
				arg = getCacheControlDirectiveArgument(parts[1])
			}
			m[name] = arg
		}
	}
	return CacheControl{m}
}

func getCacheControlDirectiveName(token string) string {
	return strings.ToLower(strings.TrimSpace(token))
}

func getCacheControlDirectiveArgument(arg string) string {
	return strings.Trim(arg, "\"")
}

// MaxAge returns the "max-age" directive's value, §5.2.2.1.
func (c CacheControl) MaxAge() (time.Duration, bool) {
	return c.getDeltaSeconds("max-age")
}

// SMaxAge returns the "s-maxage" directive's value, §5.2.2.10.
func (c CacheControl) SMaxAge() (time.Duration, bool) {
	return c.getDeltaSeconds("s-maxage")
}

// getDeltaSeconds returns the "delta-seconds" as time.Duration, along with
// a boolean indicating whether the directive was set to a valid value.
// A negative or non-numeric value is treated as absent, not as zero.
func (c CacheControl) getDeltaSeconds(directive string) (time.Duration, bool) {
	secondsStr, ok := c.Get(directive)
	if !ok || secondsStr == "" {
		return 0, false
	}
	return deltaSeconds(secondsStr)
}

// StaleWhileRevalidate returns the "stale-while-revalidate" extension
// directive's value (RFC 5861 §3).
func (c CacheControl) StaleWhileRevalidate() (time.Duration, bool) {
	return c.getDeltaSeconds("stale-while-revalidate")
}

// StaleIfError returns the "stale-if-error" extension directive's value
// (RFC 5861 §4).
func (c CacheControl) StaleIfError() (time.Duration, bool) {
	return c.getDeltaSeconds("stale-if-error")
}

// NoCacheFields returns the field names listed by a qualified no-cache
// directive, §5.2.2.4. An empty, present no-cache is reported by
// HasDirective("no-cache") with an empty argument.
func (c CacheControl) NoCacheFields() []string {
	return c.fieldNameList("no-cache")
}

// PrivateFields returns the field names listed by a qualified private
// directive, §5.2.2.7.
func (c CacheControl) PrivateFields() []string {
	return c.fieldNameList("private")
}

func (c CacheControl) fieldNameList(directive string) []string {
	val, ok := c.Get(directive)
	if !ok || val == "" {
		return nil
	}
	fields := make([]string, 0)
	for _, f := range strings.Split(val, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}
