package redact

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/V4T54L/logbeacon/internal/domain"
)

const RedactedPlaceholder = "[REDACTED]"

// Redactor replaces the values of configured keys in entry payloads.
type Redactor struct {
	fieldsToRedact map[string]struct{} // Use a map for O(1) lookups
	logger         *slog.Logger
}

// NewRedactor creates a new Redactor instance with a given set of fields to redact.
func NewRedactor(fields []string, logger *slog.Logger) *Redactor {
	fieldSet := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		fieldSet[field] = struct{}{}
	}
	return &Redactor{
		fieldsToRedact: fieldSet,
		logger:         logger.With("component", "redactor"),
	}
}

// Redact rewrites entry.Data and breadcrumb data in place, at any depth of
// nested objects and arrays. It reports whether anything was replaced.
// Payloads that are not JSON objects are left alone.
func (r *Redactor) Redact(entry *domain.LogEntry) (bool, error) {
	if len(r.fieldsToRedact) == 0 {
		return false, nil
	}

	redacted := false
	data, changed, err := r.redactValue(entry.Data)
	if err != nil {
		r.logger.Debug("failed to redact entry data", "error", err, "event_id", entry.EventID)
		return false, err
	}
	if changed {
		entry.Data = data
		redacted = true
	}

	if len(entry.Breadcrumbs) > 0 {
		crumbs := make([]domain.Breadcrumb, len(entry.Breadcrumbs))
		copy(crumbs, entry.Breadcrumbs)
		for i := range crumbs {
			data, changed, err := r.redactValue(crumbs[i].Data)
			if err != nil {
				return false, err
			}
			if changed {
				crumbs[i].Data = data
				redacted = true
			}
		}
		entry.Breadcrumbs = crumbs
	}
	return redacted, nil
}

// redactValue round-trips v through JSON so typed payloads such as
// domain.ErrorData are handled like plain maps.
func (r *Redactor) redactValue(v any) (any, bool, error) {
	if v == nil {
		return nil, false, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, false, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, false, err
	}
	if !r.walk(generic) {
		return v, false, nil
	}
	return generic, true, nil
}

func (r *Redactor) walk(v any) bool {
	redacted := false
	switch node := v.(type) {
	case map[string]any:
		for key, child := range node {
			if _, ok := r.fieldsToRedact[key]; ok {
				node[key] = RedactedPlaceholder
				redacted = true
				continue
			}
			if r.walk(child) {
				redacted = true
			}
		}
	case []any:
		for _, child := range node {
			if r.walk(child) {
				redacted = true
			}
		}
	}
	return redacted
}

// Hook returns a before-send hook applying r. A payload that cannot be
// processed drops the entry rather than risk sending it unredacted.
func (r *Redactor) Hook() domain.BeforeSendFunc {
	return func(ctx context.Context, entry domain.LogEntry) (domain.Verdict, error) {
		if _, err := r.Redact(&entry); err != nil {
			return domain.Drop(), err
		}
		return domain.Keep(entry), nil
	}
}

// NewHook is shorthand for NewRedactor(fields, logger).Hook().
func NewHook(fields []string, logger *slog.Logger) domain.BeforeSendFunc {
	return NewRedactor(fields, logger).Hook()
}
