package connector

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"
)

const backendIDSeparator = "-"

// EncodeBackendID joins the natural key parts and encodes them reversibly.
// The same parts always produce the same id.
func EncodeBackendID(parts ...string) string {
	return base64.URLEncoding.EncodeToString([]byte(strings.Join(parts, backendIDSeparator)))
}

// DecodeBackendID reverses EncodeBackendID.
func DecodeBackendID(id string) (string, error) {
	raw, err := base64.URLEncoding.DecodeString(id)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ContentHash digests v after pruning empty values. The value is first
// rendered as JSON, so struct tags decide field names; map keys are emitted
// sorted, giving a canonical serialization. Absent and empty fields hash the
// same.
func ContentHash(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return ""
	}

	canonical, err := json.Marshal(prune(generic))
	if err != nil {
		return ""
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// prune drops nulls, empty strings, empty arrays and empty objects,
// recursively. false and 0 are kept since they carry meaning.
func prune(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if p := prune(val); !isEmpty(p) {
				out[k] = p
			}
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, val := range t {
			if p := prune(val); !isEmpty(p) {
				out = append(out, p)
			}
		}
		return out
	default:
		return v
	}
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}
