package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Rate is a sampling probability that remembers whether it was set. The
// zero value is unset and resolves to DefaultSampleRate, so a Config built
// as a struct literal keeps every entry; RateOf(0) drops every entry.
type Rate struct {
	value float64
	set   bool
}

// RateOf returns a Rate explicitly set to v.
func RateOf(v float64) Rate {
	return Rate{value: v, set: true}
}

// IsSet reports whether the rate was given explicitly.
func (r Rate) IsSet() bool { return r.set }

// Value returns the rate, or DefaultSampleRate when unset.
func (r Rate) Value() float64 {
	if !r.set {
		return DefaultSampleRate
	}
	return r.value
}

func (r Rate) String() string {
	return strconv.FormatFloat(r.Value(), 'g', -1, 64)
}

// UnmarshalText parses a decimal rate, e.g. from LOGBEACON_SAMPLE_RATE.
func (r *Rate) UnmarshalText(text []byte) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(text)), 64)
	if err != nil {
		return fmt.Errorf("parse sample rate %q: %w", text, err)
	}
	*r = RateOf(v)
	return nil
}

// Limit is a breadcrumb capacity that remembers whether it was set. The zero
// value is unset and resolves to DefaultMaxBreadcrumbs; LimitOf(0) disables
// breadcrumbs.
type Limit struct {
	value int
	set   bool
}

// LimitOf returns a Limit explicitly set to n.
func LimitOf(n int) Limit {
	return Limit{value: n, set: true}
}

func (l Limit) IsSet() bool { return l.set }

// Value returns the limit, or DefaultMaxBreadcrumbs when unset.
func (l Limit) Value() int {
	if !l.set {
		return DefaultMaxBreadcrumbs
	}
	return l.value
}

func (l Limit) String() string {
	return strconv.Itoa(l.Value())
}

// UnmarshalText parses a decimal count, e.g. from LOGBEACON_MAX_BREADCRUMBS.
func (l *Limit) UnmarshalText(text []byte) error {
	n, err := strconv.Atoi(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("parse breadcrumb limit %q: %w", text, err)
	}
	*l = LimitOf(n)
	return nil
}
