package mediahost

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strings"
)

// unsignedParams never take part in the request signature.
var unsignedParams = map[string]bool{
	"file":          true,
	"cloud_name":    true,
	"resource_type": true,
	"api_key":       true,
	"signature":     true,
}

// Sign computes the request signature: the sha1 of the non-empty parameters
// sorted by name, joined as k=v pairs with '&', followed by the API secret.
func Sign(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" || unsignedParams[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + secret))
	return hex.EncodeToString(sum[:])
}

var contextEscaper = strings.NewReplacer(`|`, `\|`, `=`, `\=`)

// encodeContext renders key=value metadata in the pipe separated form the
// upload API expects. Keys are emitted in sorted order.
func encodeContext(ctx map[string]string) string {
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+contextEscaper.Replace(ctx[k]))
	}

	return strings.Join(parts, "|")
}
