// Package masking scrubs activity-log metadata before it is persisted.
package masking

import "strings"

const maskToken = "****"

// dropped keys never reach storage; masked keys keep only their last four characters.
var (
	droppedKeys = map[string]struct{}{
		"password":      {},
		"password_hash": {},
		"access_token":  {},
		"refresh_token": {},
	}
	maskedKeys = map[string]struct{}{
		"payment_reference":  {},
		"phone":              {},
		"email":              {},
		"customer_signature": {},
	}
)

// Mask hides all but the trailing four characters of value.
func Mask(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 4 {
		return maskToken
	}
	return maskToken + trimmed[len(trimmed)-4:]
}

// Redact returns a copy of metadata with credentials removed and personal or
// payment identifiers masked. Nested maps are handled recursively.
func Redact(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return nil
	}

	out := make(map[string]any, len(metadata))
	for key, value := range metadata {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		lower := strings.ToLower(key)
		if _, drop := droppedKeys[lower]; drop {
			continue
		}
		if _, mask := maskedKeys[lower]; mask {
			out[key] = maskValue(value)
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			out[key] = Redact(nested)
			continue
		}
		out[key] = value
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

func maskValue(value any) any {
	switch v := value.(type) {
	case string:
		return Mask(v)
	case *string:
		if v == nil {
			return nil
		}
		return Mask(*v)
	default:
		return maskToken
	}
}
