package revision

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// MaxDepth bounds how deeply nested a body may be before hashing gives up.
const MaxDepth = 512

// ErrTooDeep is returned when a body nests deeper than MaxDepth.
var ErrTooDeep = errors.New("document nesting exceeds maximum depth")

// hashedReservedKeys are top-level "_" keys that still count as content.
var hashedReservedKeys = map[string]bool{
	"_attachments": true,
}

// Canonical returns the deterministic serialization of a document body that
// the content hash is computed over. Top-level keys starting with "_" are
// omitted unless allow-listed; nested objects are serialized in full. Object
// keys are sorted at every level, arrays keep their order.
func Canonical(body map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeObject(&buf, body, true, 0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CanonicalValue serializes any JSON-compatible value without the top-level
// key exclusion applied by Canonical.
func CanonicalValue(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v, 0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Digest returns the hex MD5 of the canonical form of body.
func Digest(body map[string]any) (string, error) {
	canonical, err := Canonical(body)
	if err != nil {
		return "", err
	}
	sum := md5.Sum(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Compute hashes body and assigns the resulting revision to body["_rev"],
// advancing the existing revision when the content changed. replaced holds the
// superseded revision, or the zero ID when nothing was replaced.
func Compute(body map[string]any) (rev ID, replaced ID, err error) {
	digest, err := Digest(body)
	if err != nil {
		return ID{}, ID{}, err
	}
	prev := FromValue(body["_rev"])
	rev, replaced, _ = prev.Advance(digest)
	body["_rev"] = rev.String()
	return rev, replaced, nil
}

func writeObject(buf *bytes.Buffer, obj map[string]any, outer bool, depth int) error {
	if depth > MaxDepth {
		return ErrTooDeep
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		if outer && strings.HasPrefix(k, "_") && !hashedReservedKeys[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writePrimitive(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := writeValue(buf, obj[k], depth+1); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeValue(buf *bytes.Buffer, v any, depth int) error {
	if depth > MaxDepth {
		return ErrTooDeep
	}
	switch val := v.(type) {
	case map[string]any:
		return writeObject(buf, val, false, depth)
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, elem, depth+1); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case []map[string]any:
		elems := make([]any, len(val))
		for i := range val {
			elems[i] = val[i]
		}
		return writeValue(buf, elems, depth)
	case []string:
		elems := make([]any, len(val))
		for i := range val {
			elems[i] = val[i]
		}
		return writeValue(buf, elems, depth)
	default:
		return writePrimitive(buf, val)
	}
}

// writePrimitive emits the JSON text of a scalar. HTML escaping is disabled so
// strings hash the same as their plain JSON form.
func writePrimitive(buf *bytes.Buffer, v any) error {
	var out bytes.Buffer
	enc := json.NewEncoder(&out)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %T: %w", v, err)
	}
	writeUnescapedSeparators(buf, bytes.TrimSuffix(out.Bytes(), []byte{'\n'}))
	return nil
}

// writeUnescapedSeparators copies encoded JSON to buf, turning the \u2028 and
// \u2029 escapes encoding/json always emits back into raw characters. Other
// escape sequences are copied whole so an escaped backslash followed by
// "u2028" stays as it is.
func writeUnescapedSeparators(buf *bytes.Buffer, encoded []byte) {
	for i := 0; i < len(encoded); i++ {
		c := encoded[i]
		if c != '\\' || i+1 >= len(encoded) {
			buf.WriteByte(c)
			continue
		}
		if rest := encoded[i:]; len(rest) >= 6 && rest[1] == 'u' {
			switch string(rest[2:6]) {
			case "2028":
				buf.WriteRune('\u2028')
				i += 5
				continue
			case "2029":
				buf.WriteRune('\u2029')
				i += 5
				continue
			}
		}
		buf.Write(encoded[i : i+2])
		i++
	}
}
