package domain

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// DefaultDedupKeys identify a test case's tenant inside its query parameters.
// Two params lines with the same dedup value hit the same backing store, so
// fetching both would waste a run slot on an identical feed.
func DefaultDedupKeys() []string {
	return []string{"connection_info[store_hash]"}
}

// ShopNameParam is the query parameter carrying the human-readable shop name.
const ShopNameParam = "connection_info[shop_name]"

// queryPair is one decoded key/value from a query string, order preserved.
type queryPair struct {
	key   string
	value string
}

// parseQueryPairs decodes a query string into ordered pairs, keeping blank
// values. A leading "?" is tolerated. Undecodable segments pass through raw.
func parseQueryPairs(query string) []queryPair {
	query = strings.TrimPrefix(query, "?")
	var pairs []queryPair
	for _, part := range strings.Split(query, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		if dk, err := url.QueryUnescape(k); err == nil {
			k = dk
		}
		if dv, err := url.QueryUnescape(v); err == nil {
			v = dv
		}
		pairs = append(pairs, queryPair{key: k, value: v})
	}
	return pairs
}

// ParseQueryParams expands a query string with PHP-style bracket keys into a
// nested structure suitable for JSON output:
//
//	connection_info[shop_name]=test&connection_info[filters][0][field]=status
//
// becomes
//
//	{"connection_info": {"shop_name": "test",
//	                     "filters": [{"field": "status"}]}}
//
// Numeric bracket segments create arrays; string segments create objects.
func ParseQueryParams(query string) map[string]any {
	result := map[string]any{}
	for _, pair := range parseQueryPairs(query) {
		parts := splitBracketKey(pair.key)
		if len(parts) == 0 {
			continue
		}
		result[parts[0]] = assignParam(result[parts[0]], parts[1:], pair.value)
	}
	return result
}

// splitBracketKey turns "a[b][0][c]" into ["a", "b", "0", "c"].
func splitBracketKey(key string) []string {
	var parts []string
	base, rest, found := strings.Cut(key, "[")
	if base != "" {
		parts = append(parts, base)
	}
	if !found {
		return parts
	}
	for {
		seg, tail, ok := strings.Cut(rest, "]")
		if !ok {
			return parts
		}
		parts = append(parts, seg)
		rest = strings.TrimPrefix(tail, "[")
		if tail == rest {
			return parts
		}
	}
}

// assignParam sets value at the path described by parts, creating arrays for
// numeric segments and objects otherwise. An existing node of the wrong shape
// is replaced, matching how PHP-style parsers resolve the conflict.
func assignParam(existing any, parts []string, value string) any {
	if len(parts) == 0 {
		return value
	}
	part := parts[0]
	if isDigits(part) {
		idx, _ := strconv.Atoi(part)
		list, _ := existing.([]any)
		for len(list) <= idx {
			list = append(list, nil)
		}
		list[idx] = assignParam(list[idx], parts[1:], value)
		return list
	}
	m, ok := existing.(map[string]any)
	if !ok {
		m = map[string]any{}
	}
	m[part] = assignParam(m[part], parts[1:], value)
	return m
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ExtractDedupKey returns a "key=value" identity string for the first dedup
// key present with a non-empty value, or "" when the params carry none.
// Cases without a dedup identity are never deduplicated.
func ExtractDedupKey(params string, dedupKeys []string) string {
	values := map[string]string{}
	for _, pair := range parseQueryPairs(params) {
		values[pair.key] = pair.value
	}
	for _, key := range dedupKeys {
		if v := values[key]; v != "" {
			return key + "=" + v
		}
	}
	return ""
}

// ShopName extracts the shop name parameter from a query string, or "".
func ShopName(query string) string {
	for _, pair := range parseQueryPairs(query) {
		if pair.key == ShopNameParam {
			return pair.value
		}
	}
	return ""
}

// ParamHash derives a stable fingerprint of a query string: pairs are
// decoded, sorted by key, rejoined and hashed. The hash names the response
// files of a test case, so it must not depend on parameter order or encoding.
func ParamHash(query string) string {
	pairs := parseQueryPairs(query)
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	joined := make([]string, len(pairs))
	for i, p := range pairs {
		joined[i] = p.key + "=" + p.value
	}
	sum := md5.Sum([]byte(strings.Join(joined, "&")))
	return hex.EncodeToString(sum[:])
}
