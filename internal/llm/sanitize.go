package llm

import (
	"encoding/json"
	"strings"
)

// ExtractJSONPayload trims a model response down to the JSON object it
// contains. Vision models occasionally wrap the payload in markdown
// code fences or add a leading sentence despite the json_object
// response format.
func ExtractJSONPayload(content string) []byte {
	s := strings.TrimSpace(content)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	// Fall back to the outermost braces.
	if !strings.HasPrefix(s, "{") {
		start := strings.Index(s, "{")
		end := strings.LastIndex(s, "}")
		if start >= 0 && end > start {
			s = s[start : end+1]
		}
	}
	return []byte(s)
}

// SanitizeResponse removes offenders that would fail schema validation
// without losing the rest of the document: null-valued fields anywhere,
// non-string scalars coerced via their JSON form, and entity objects
// that are not objects at all. Returns the cleaned JSON and the paths
// that were dropped.
func SanitizeResponse(doc []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, err
	}

	var dropped []string
	cleaned := sanitizeObject(m, "", &dropped)

	b, err := json.Marshal(cleaned)
	if err != nil {
		return nil, nil, err
	}
	return b, dropped, nil
}

func sanitizeObject(m map[string]any, path string, dropped *[]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		p := k
		if path != "" {
			p = path + "." + k
		}
		switch t := v.(type) {
		case nil:
			*dropped = append(*dropped, p)
		case map[string]any:
			out[k] = sanitizeObject(t, p, dropped)
		case []any:
			out[k] = sanitizeArray(t, p, dropped)
		case string:
			out[k] = t
		case bool:
			if t {
				out[k] = "true"
			} else {
				out[k] = "false"
			}
		case json.Number:
			out[k] = t.String()
		case float64:
			// encoding/json default for numbers; keep a stable string form
			out[k] = numberString(t)
		default:
			*dropped = append(*dropped, p)
		}
	}
	return out
}

func sanitizeArray(a []any, path string, dropped *[]string) []any {
	out := make([]any, 0, len(a))
	for _, v := range a {
		switch t := v.(type) {
		case nil:
			*dropped = append(*dropped, path+"[]")
		case map[string]any:
			out = append(out, sanitizeObject(t, path+"[]", dropped))
		case string:
			out = append(out, t)
		case float64:
			out = append(out, numberString(t))
		default:
			*dropped = append(*dropped, path+"[]")
		}
	}
	return out
}

func numberString(f float64) string {
	b, _ := json.Marshal(f)
	s := string(b)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}
