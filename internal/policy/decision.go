/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package policy

// Action classifies the kind of Decision returned by Evaluate/QuickCheck,
// used as a metric label and in trace spans.
type Action string

const (
	ActionAllow  Action = "allow"
	ActionDeny   Action = "deny"
	ActionIsolate Action = "isolate"
	ActionAsk    Action = "ask"
)

// Restriction is an additional constraint attached to an Allow decision
// (spec §4.4 "AllowWithRestrictions").
type Restriction string

const (
	// RestrictionIsolatedWorld requires the command run in an ephemeral
	// isolated world rather than the session world or host.
	RestrictionIsolatedWorld Restriction = "isolated_world"
)

// Decision is the outcome of evaluating a command against the active
// policy (spec §4.4).
type Decision struct {
	Action       Action
	Restrictions []Restriction
	Reason       string
	// WouldDeny is set when observe mode downgraded a Deny to an Allow;
	// callers must still emit a policy_violation span with this flag.
	WouldDeny bool
	// MatchedPattern is the pattern bucket entry that decided the
	// outcome, for trace spans and the approval prompt.
	MatchedPattern string
}

// Allow constructs a plain Allow decision.
func Allow() Decision {
	return Decision{Action: ActionAllow}
}

// Deny constructs a Deny decision with a reason.
func Deny(reason, pattern string) Decision {
	return Decision{Action: ActionDeny, Reason: reason, MatchedPattern: pattern}
}

// AllowIsolated constructs an Allow decision restricted to an isolated
// world.
func AllowIsolated(pattern string) Decision {
	return Decision{
		Action:         ActionAllow,
		Restrictions:   []Restriction{RestrictionIsolatedWorld},
		MatchedPattern: pattern,
	}
}

// Ask constructs a decision representing "prompt the user". Evaluate
// never returns it: its approval step yields an Allow or Deny directly.
func Ask(pattern string) Decision {
	return Decision{Action: ActionAsk, MatchedPattern: pattern}
}

// HasRestriction reports whether a decision carries the given
// restriction.
func (d Decision) HasRestriction(r Restriction) bool {
	for _, x := range d.Restrictions {
		if x == r {
			return true
		}
	}
	return false
}
