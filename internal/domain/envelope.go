package domain

// Envelope is the {status, ...} JSON wrapper used by every data-bearing
// tool response. Accessors substitute safe defaults so display-oriented
// callers can read partial results without nil checks.
type Envelope map[string]any

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ErrorEnvelope builds a failure envelope with the given message.
func ErrorEnvelope(message string) Envelope {
	return Envelope{"status": StatusError, "message": message}
}

func (e Envelope) Status() string {
	s, _ := e["status"].(string)
	return s
}

// OK reports whether the remote call succeeded.
func (e Envelope) OK() bool { return e.Status() == StatusSuccess }

// Message returns the remote-supplied error message, if any.
func (e Envelope) Message() string { return e.String("message") }

// String returns the string value at key, or "" when absent or mistyped.
func (e Envelope) String(key string) string {
	s, _ := e[key].(string)
	return s
}

// Strings returns a string slice at key, tolerating the []any shape
// produced by JSON decoding.
func (e Envelope) Strings(key string) []string {
	raw, ok := e[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Maps returns a slice of objects at key, tolerating the []any shape
// produced by JSON decoding.
func (e Envelope) Maps(key string) []map[string]any {
	raw, ok := e[key].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, v := range raw {
		if m, ok := v.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
