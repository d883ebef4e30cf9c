package tools

import "context"

// Kind identifies which backing system an adapter talks to.
type Kind string

const (
	KindCRM      Kind = "crm"
	KindCalendar Kind = "calendar"
	KindEmail    Kind = "email"
)

// Params carries the action arguments. Values come from run state, so the
// accessors tolerate missing or mistyped entries.
type Params map[string]any

func (p Params) String(key string) string {
	v, _ := p[key].(string)
	return v
}

func (p Params) Float(key string) (float64, bool) {
	switch v := p[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func (p Params) Int(key string, fallback int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return fallback
	}
}

// Result is the structured outcome of one tool action. RetryAllowed marks
// transient failures worth another attempt.
type Result struct {
	Success      bool           `json:"success"`
	Data         map[string]any `json:"data,omitempty"`
	Error        string         `json:"error,omitempty"`
	RetryAllowed bool           `json:"retry_allowed"`
}

// Failure builds a non-retryable failed result.
func Failure(msg string) Result {
	return Result{Success: false, Error: msg}
}

// TransientFailure builds a failed result worth retrying.
func TransientFailure(msg string) Result {
	return Result{Success: false, Error: msg, RetryAllowed: true}
}

// Adapter is one external integration (CRM, calendar, email). Execute never
// returns an error: failures are reported through the result so the caller
// can decide between retrying and moving on.
type Adapter interface {
	Name() string
	Kind() Kind
	Execute(ctx context.Context, action string, params Params) Result
}
