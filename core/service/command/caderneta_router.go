package command

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"caderneta_server/core/domain"
	"caderneta_server/pkg/apperr"
	"caderneta_server/pkg/logger"
)

// ErrUnknownCommand means nothing in the registry matched. Callers use it
// to fall through to transaction parsing.
var ErrUnknownCommand = apperr.New(apperr.CodeUnknownCommand, "command does not exist", http.StatusNotFound)

// DefaultPrefix is stripped from the start of commands.
const DefaultPrefix = "!"

var monthShorthand = regexp.MustCompile(`^(0?[1-9]|1[0-2])/(\d{2}|\d{4})$`)

// Router dispatches chat text to registered commands.
type Router struct {
	registry *Registry
	prefix   string
	loc      *time.Location
	log      *logger.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithPrefix sets the optional command prefix.
func WithPrefix(p string) RouterOption {
	return func(r *Router) {
		if p != "" {
			r.prefix = p
		}
	}
}

// WithLocation sets the zone month shorthands are read in.
func WithLocation(loc *time.Location) RouterOption {
	return func(r *Router) { r.loc = loc }
}

// WithLogger overrides the router logger.
func WithLogger(l *logger.Logger) RouterOption {
	return func(r *Router) { r.log = l }
}

// NewRouter creates a new command router
func NewRouter(registry *Registry, opts ...RouterOption) *Router {
	r := &Router{
		registry: registry,
		prefix:   DefaultPrefix,
		loc:      time.Local,
		log:      logger.WithField("component", "router"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry returns the commands the router resolves against.
func (r *Router) Registry() *Registry { return r.registry }

// Dispatch resolves text to a command and runs it. Handler failures become
// a generic reply; only ErrUnknownCommand is returned as an error.
func (r *Router) Dispatch(ctx context.Context, text string, cc Context) (domain.Reply, error) {
	tokens := r.tokenize(text)
	if len(tokens) == 0 {
		return domain.Reply{}, ErrUnknownCommand
	}

	desc, name, args := r.resolve(tokens)
	if desc == nil {
		r.log.WithContext(ctx).Debug("command %q does not exist", strings.Join(tokens, " "))
		return domain.Reply{}, ErrUnknownCommand.WithDetail("words", len(tokens))
	}

	interval, args := r.monthInterval(args)
	req := Request{Context: cc, Name: name, Args: args, Interval: interval}
	return r.invoke(ctx, desc, req), nil
}

func (r *Router) tokenize(text string) []string {
	text = strings.TrimLeft(r.prefix+text, r.prefix)
	return strings.Fields(text)
}

// resolve tries the longest literal phrase first, then pattern keys. A
// channel message id is a reference only when it is the whole text.
func (r *Router) resolve(tokens []string) (*Descriptor, string, []string) {
	if domain.IsExternalMessageID(tokens[0]) {
		if len(tokens) > 1 {
			return nil, "", nil
		}
		if d, ok := r.registry.MatchPattern(tokens[0]); ok {
			return d, tokens[0], []string{tokens[0]}
		}
		return nil, "", nil
	}

	for i := len(tokens); i >= 1; i-- {
		candidate := strings.Join(tokens[:i], " ")
		if d, ok := r.registry.Lookup(candidate); ok {
			return d, normalizePhrase(candidate), tokens[i:]
		}
	}

	full := strings.Join(tokens, " ")
	if d, ok := r.registry.MatchPattern(full); ok {
		return d, full, tokens
	}
	return nil, "", nil
}

// monthInterval turns a trailing MM/YY or MM/YYYY argument into the
// interval covering that month.
func (r *Router) monthInterval(args []string) (*domain.Interval, []string) {
	if len(args) == 0 {
		return nil, args
	}
	iv, ok := ParseMonthShorthand(args[len(args)-1], r.loc)
	if !ok {
		return nil, args
	}
	return &iv, args[:len(args)-1]
}

// ParseMonthShorthand reads "05/24" or "5/2024" as May 2024.
func ParseMonthShorthand(s string, loc *time.Location) (domain.Interval, bool) {
	m := monthShorthand.FindStringSubmatch(s)
	if m == nil {
		return domain.Interval{}, false
	}
	month, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[2])
	if year < 100 {
		year += 2000
	}
	return domain.MonthInterval(year, time.Month(month), loc), true
}

func (r *Router) invoke(ctx context.Context, d *Descriptor, req Request) (reply domain.Reply) {
	failure := domain.TextReply(fmt.Sprintf("Erro ao executar comando %s. Tente novamente.", req.Name))
	log := r.log.WithContext(ctx).WithField("command", req.Name)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("command panicked: %v", rec)
			reply = failure
		}
	}()

	start := time.Now()
	out, err := d.Handler(ctx, req)
	if err != nil {
		log.WithError(err).Error("command failed")
		return failure
	}
	log.WithDuration(time.Since(start)).Debug("command executed")
	return out
}
