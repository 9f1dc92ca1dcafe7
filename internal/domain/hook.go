package domain

import "context"

// Verdict is the outcome of a BeforeSendFunc: keep an entry (possibly
// modified) or drop it.
type Verdict struct {
	entry LogEntry
	keep  bool
}

// Keep accepts entry for delivery.
func Keep(entry LogEntry) Verdict {
	return Verdict{entry: entry, keep: true}
}

// Drop discards the entry.
func Drop() Verdict {
	return Verdict{}
}

// Entry returns the kept entry and true, or false for a drop.
func (v Verdict) Entry() (LogEntry, bool) {
	return v.entry, v.keep
}

// BeforeSendFunc transforms or filters an entry before it is queued. It may
// block; the pipeline bounds the wait with a timeout. A returned error, a
// panic, or an expired timeout all count as Drop.
type BeforeSendFunc func(ctx context.Context, entry LogEntry) (Verdict, error)

// Chain runs hooks in order, feeding each kept entry to the next. The first
// drop or error ends the chain.
func Chain(hooks ...BeforeSendFunc) BeforeSendFunc {
	return func(ctx context.Context, entry LogEntry) (Verdict, error) {
		for _, hook := range hooks {
			if hook == nil {
				continue
			}
			v, err := hook(ctx, entry)
			if err != nil {
				return Drop(), err
			}
			next, keep := v.Entry()
			if !keep {
				return Drop(), nil
			}
			entry = next
		}
		return Keep(entry), nil
	}
}
