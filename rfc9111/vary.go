package rfc9111

import (
	"net/http"
	"sort"
	"strings"
)

// §  4.1.  Calculating Cache Keys with the Vary Header Field
// §
// §     When a cache receives a request that can be satisfied by a stored
// §     response and that stored response contains a Vary header field, the
// §     cache MUST NOT use that stored response without revalidation unless
// §     all the presented request header fields nominated by that Vary field
// §     value match those fields in the original request.
// §
// §     A stored response with a Vary header field value containing a member
// §     "*" always fails to match.
func headerFieldsMatch(req, originalReq *http.Request, res *http.Response) bool {
	for _, field := range res.Header.Values("Vary") {
		for _, name := range strings.Split(field, ",") {
			name = strings.TrimSpace(name)
			if name == "*" {
				return false
			}
			if name == "" {
				continue
			}
			if !strings.EqualFold(req.Header.Get(name), originalReq.Header.Get(name)) {
				return false
			}
		}
	}
	return true
}

// VaryKeys returns the sorted "name:value" pairs of the request header
// fields nominated by the response's Vary header field, used to build the
// secondary portion of a cache key.
func VaryKeys(req *http.Request, varyHeader []string) []string {
	names := make(map[string]struct{})
	for _, field := range varyHeader {
		for _, name := range strings.Split(field, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names[strings.ToLower(name)] = struct{}{}
			}
		}
	}
	pairs := make([]string, 0, len(names))
	for name := range names {
		pairs = append(pairs, name+":"+req.Header.Get(name))
	}
	sort.Strings(pairs)
	return pairs
}
