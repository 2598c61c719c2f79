package protein

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// canonicalKey renders a flat object as sorted-key JSON. Strings are NFC
// normalized and HTML escaping is disabled so that equal values always
// produce equal bytes.
func canonicalKey(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(canonicalString(k))
		buf.WriteByte(':')
		buf.Write(canonicalValue(fields[k]))
	}
	buf.WriteByte('}')
	return buf.String()
}

func canonicalValue(v any) []byte {
	switch val := v.(type) {
	case string:
		return canonicalString(val)
	case int:
		return []byte(strconv.Itoa(val))
	case float64:
		// -0 and 0 compare equal, so render them identically.
		if val == 0 {
			return []byte("0")
		}
		return []byte(strconv.FormatFloat(val, 'g', -1, 64))
	case bool:
		return []byte(strconv.FormatBool(val))
	default:
		return []byte("null")
	}
}

func canonicalString(s string) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding a string cannot fail.
	_ = enc.Encode(norm.NFC.String(s))
	return bytes.TrimRight(buf.Bytes(), "\n")
}
