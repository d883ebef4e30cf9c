package tools

import (
	"context"
	"strings"
)

// actionKinds routes action names to the adapter kind that owns them.
// Unknown actions fail without touching any adapter.
var actionKinds = map[string]Kind{
	"upsert":             KindCRM,
	"qualify":            KindCRM,
	"update_status":      KindCRM,
	"get_lead":           KindCRM,
	"schedule_followup":  KindCRM,
	"book_meeting":       KindCalendar,
	"check_availability": KindCalendar,
	"cancel_meeting":     KindCalendar,
	"send":               KindEmail,
	"send_followup":      KindEmail,
}

// toolAliases maps the tool names the decision model emits to adapter kinds.
var toolAliases = map[string]Kind{
	"crm":           KindCRM,
	"crm_tool":      KindCRM,
	"crm_update":    KindCRM,
	"calendar":      KindCalendar,
	"calendar_tool": KindCalendar,
	"booking":       KindCalendar,
	"email":         KindEmail,
	"email_tool":    KindEmail,
	"send_email":    KindEmail,
}

// Registry holds the wired adapters and resolves action and tool names.
type Registry struct {
	adapters map[Kind]Adapter
	executor *Executor
}

func NewRegistry(executor *Executor, adapters ...Adapter) *Registry {
	byKind := make(map[Kind]Adapter, len(adapters))
	for _, a := range adapters {
		byKind[a.Kind()] = a
	}
	return &Registry{adapters: byKind, executor: executor}
}

// Adapter returns the adapter registered for the given kind.
func (r *Registry) Adapter(kind Kind) (Adapter, bool) {
	a, ok := r.adapters[kind]
	return a, ok
}

// ResolveTool maps a decision-model tool name to its adapter kind.
func (r *Registry) ResolveTool(name string) (Kind, bool) {
	kind, ok := toolAliases[strings.ToLower(strings.TrimSpace(name))]
	return kind, ok
}

// Execute routes one action to its adapter and runs it with retries.
func (r *Registry) Execute(ctx context.Context, action string, params Params) Result {
	kind, ok := actionKinds[action]
	if !ok {
		return Failure("unknown action: " + action)
	}
	adapter, ok := r.adapters[kind]
	if !ok {
		return Failure("no adapter registered for kind: " + string(kind))
	}
	return r.executor.ExecuteWithRetry(ctx, adapter, action, params)
}

// ActionKind reports which adapter kind owns an action.
func ActionKind(action string) (Kind, bool) {
	kind, ok := actionKinds[action]
	return kind, ok
}
