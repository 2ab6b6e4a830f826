// Package command maps chat phrases to handlers.
package command

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"caderneta_server/core/domain"
)

// Key is either a literal phrase or a regular expression.
type Key struct {
	literal string
	expr    string
	pattern *regexp.Regexp
}

// Literal builds a case-insensitive phrase key.
func Literal(phrase string) Key {
	return Key{literal: normalizePhrase(phrase)}
}

// Pattern builds a key matched as a case-insensitive regex anchored at the
// start of the text.
func Pattern(expr string) Key {
	return Key{expr: expr, pattern: regexp.MustCompile(`(?i)` + expr)}
}

// IsPattern reports whether k is a regular expression.
func (k Key) IsPattern() bool { return k.pattern != nil }

func (k Key) String() string {
	if k.pattern != nil {
		return k.expr
	}
	return k.literal
}

func (k Key) matches(text string) bool {
	loc := k.pattern.FindStringIndex(text)
	return loc != nil && loc[0] == 0
}

func normalizePhrase(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Context carries who sent the message being dispatched.
type Context struct {
	User      *domain.User
	Phone     string
	MessageID string
}

// Request is what a handler receives.
type Request struct {
	Context
	Name     string
	Args     []string
	Interval *domain.Interval
}

// Handler runs a command. Returned errors are reported to the user as a
// generic failure.
type Handler func(ctx context.Context, req Request) (domain.Reply, error)

// Descriptor is a registered command.
type Descriptor struct {
	Key         Key
	Aliases     []string
	Handler     Handler
	Description string
	Hidden      bool
}

// Name is the primary phrase shown in help.
func (d *Descriptor) Name() string {
	return d.Key.String()
}

type patternEntry struct {
	source string
	key    Key
	desc   *Descriptor
}

// Registry resolves names, aliases and patterns to descriptors.
//
// Registering a key that already exists replaces the previous descriptor.
// Patterns are tried in the order they were first registered; replacing a
// pattern keeps its position.
type Registry struct {
	mu       sync.RWMutex
	literals map[string]*Descriptor
	patterns []patternEntry
	order    []*Descriptor
}

// NewRegistry creates a new command registry
func NewRegistry() *Registry {
	return &Registry{literals: make(map[string]*Descriptor)}
}

// Register adds d under its key and every alias.
func (r *Registry) Register(d Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	desc := &d
	if d.Key.IsPattern() {
		src := d.Key.expr
		replaced := false
		for i := range r.patterns {
			if r.patterns[i].source == src {
				r.patterns[i].desc = desc
				replaced = true
				break
			}
		}
		if !replaced {
			r.patterns = append(r.patterns, patternEntry{source: src, key: d.Key, desc: desc})
		}
	} else {
		r.literals[d.Key.literal] = desc
	}
	for _, alias := range d.Aliases {
		r.literals[normalizePhrase(alias)] = desc
	}
	r.order = append(r.order, desc)
}

// RegisterAll registers several descriptors in order.
func (r *Registry) RegisterAll(ds ...Descriptor) {
	for _, d := range ds {
		r.Register(d)
	}
}

// Lookup finds a literal key or alias.
func (r *Registry) Lookup(phrase string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.literals[normalizePhrase(phrase)]
	return d, ok
}

// MatchPattern returns the first pattern key matching text.
func (r *Registry) MatchPattern(text string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.patterns {
		if p.key.matches(text) {
			return p.desc, true
		}
	}
	return nil, false
}

// Visible lists descriptors for help, in registration order, skipping hidden
// ones and ones whose primary key has since been taken over.
func (r *Registry) Visible() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Descriptor, 0, len(r.order))
	for _, d := range r.order {
		if d.Hidden || !r.owns(d) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func (r *Registry) owns(d *Descriptor) bool {
	if d.Key.IsPattern() {
		for _, p := range r.patterns {
			if p.desc == d {
				return true
			}
		}
		return false
	}
	return r.literals[d.Key.literal] == d
}
