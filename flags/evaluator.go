// Package flags decides whether a capability flag is granted for a
// request. A check is evaluated against either the acting user or the
// entity's original creator, with an actor-scoped super-admin bypass
// that is independent of that choice.
package flags

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wanderlist/wanderlist-api/models"
)

// EvalContext selects whose grant an evaluation inspects.
type EvalContext string

const (
	// ContextEntityCreator checks the user who originally created the
	// entity, used when generated content is attributed to them.
	ContextEntityCreator EvalContext = "entity_creator"
	// ContextLoggedInUser checks the acting user themselves.
	ContextLoggedInUser EvalContext = "logged_in_user"
)

// ParseEvalContext normalizes a caller-supplied context string into
// one of the two closed contexts. Unrecognized strings resolve to
// ContextEntityCreator so a typo falls toward the explicitly scoped
// check instead of silently widening to the actor.
func ParseEvalContext(s string) EvalContext {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "logged_in_user", "loggedinuser", "actor", "user":
		return ContextLoggedInUser
	default:
		return ContextEntityCreator
	}
}

// Decision is the structured outcome of a flag evaluation. Denials
// carry a reason instead of an error so they can cross the API
// boundary without turning into a 500.
type Decision struct {
	Allowed bool        `json:"allowed"`
	Reason  string      `json:"reason"`
	Flag    string      `json:"flag"`
	Context EvalContext `json:"context"`
}

// Evaluation outcome reasons.
const (
	ReasonSuperAdmin   = "super_admin_bypass"
	ReasonGranted      = "flag_active"
	ReasonNoActor      = "no_acting_user"
	ReasonNoCreator    = "no_creator_user"
	ReasonFlagMissing  = "flag_not_granted"
	ReasonFlagDisabled = "flag_disabled"
	ReasonFlagExpired  = "flag_expired"
)

// Options tune a single evaluation. Pass nil to Evaluate for the
// defaults.
type Options struct {
	// AllowSuperAdmin lets a super-admin actor bypass the check
	// entirely. The bypass is always scoped to the acting user, never
	// to the entity creator.
	AllowSuperAdmin bool
}

// DefaultOptions enables the super-admin bypass.
func DefaultOptions() Options {
	return Options{AllowSuperAdmin: true}
}

// Evaluator holds no per-request state; one instance is shared by all
// handlers.
type Evaluator struct {
	cache *StatusCache
	now   func() time.Time
}

// NewEvaluator returns an evaluator that consults cache when non-nil.
func NewEvaluator(cache *StatusCache) *Evaluator {
	return NewEvaluatorWithClock(cache, time.Now)
}

// NewEvaluatorWithClock is NewEvaluator with an injected clock.
func NewEvaluatorWithClock(cache *StatusCache, now func() time.Time) *Evaluator {
	return &Evaluator{cache: cache, now: now}
}

// Evaluate decides whether flagKey is granted. The subject of the
// check is chosen by evalCtx: the acting user, or the creator of the
// entity being acted on. A missing subject fails closed. Both users
// are passed in already loaded; evaluation itself never touches
// storage.
func (e *Evaluator) Evaluate(acting, creator *models.User, flagKey string, evalCtx EvalContext, opts *Options) Decision {
	if opts == nil {
		def := DefaultOptions()
		opts = &def
	}

	if opts.AllowSuperAdmin && acting != nil && acting.SuperAdmin {
		return Decision{Allowed: true, Reason: ReasonSuperAdmin, Flag: flagKey, Context: evalCtx}
	}

	subject := creator
	missing := ReasonNoCreator
	if evalCtx == ContextLoggedInUser {
		subject = acting
		missing = ReasonNoActor
	}
	if subject == nil {
		zap.S().Debugw("flag evaluation denied, no subject", "flag", flagKey, "context", evalCtx)
		return Decision{Allowed: false, Reason: missing, Flag: flagKey, Context: evalCtx}
	}

	key := subject.ID.Hex() + "/" + flagKey + "/" + string(evalCtx)
	if e.cache != nil {
		if d, ok := e.cache.get(key); ok {
			return d
		}
	}

	d := e.decide(subject, flagKey, evalCtx)
	if e.cache != nil {
		e.cache.put(key, d)
	}
	return d
}

func (e *Evaluator) decide(subject *models.User, flagKey string, evalCtx EvalContext) Decision {
	d := Decision{Flag: flagKey, Context: evalCtx}
	flag := subject.Flag(flagKey)
	switch {
	case flag == nil:
		d.Reason = ReasonFlagMissing
	case !flag.Enabled:
		d.Reason = ReasonFlagDisabled
	case flag.ExpiresAt != nil && e.now().After(*flag.ExpiresAt):
		d.Reason = ReasonFlagExpired
	default:
		d.Allowed = true
		d.Reason = ReasonGranted
	}
	return d
}
