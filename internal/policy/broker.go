/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package policy

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/substrate-run/substrate/metrics"
)

// compiled holds a policy plus its precompiled pattern matchers, so the
// hot evaluation paths never call regexp.Compile. Rebuilt once per
// Load/Reload, never mutated afterwards — Evaluate/QuickCheck only ever
// read a *compiled snapshot obtained under the broker's read lock.
type compiled struct {
	policy       *Policy
	denied       []*pattern
	isolated     []*pattern
	allowed      []*pattern
	autoApprove  []*pattern
}

func compilePolicy(p *Policy) (*compiled, error) {
	c := &compiled{policy: p}
	for _, raw := range p.Commands.Denied {
		pp, err := compilePattern(raw)
		if err != nil {
			return nil, fmt.Errorf("commands.denied %q: %w", raw, err)
		}
		c.denied = append(c.denied, pp)
	}
	for _, raw := range p.Commands.Isolated {
		pp, err := compilePattern(raw)
		if err != nil {
			return nil, fmt.Errorf("commands.isolated %q: %w", raw, err)
		}
		c.isolated = append(c.isolated, pp)
	}
	for _, raw := range p.Commands.Allowed {
		pp, err := compilePattern(raw)
		if err != nil {
			return nil, fmt.Errorf("commands.allowed %q: %w", raw, err)
		}
		c.allowed = append(c.allowed, pp)
	}
	for _, raw := range p.Approval.AutoApprove {
		pp, err := compilePattern(raw)
		if err != nil {
			return nil, fmt.Errorf("approval.auto_approve %q: %w", raw, err)
		}
		c.autoApprove = append(c.autoApprove, pp)
	}
	return c, nil
}

func firstMatch(patterns []*pattern, s string) (bool, string) {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true, p.raw
		}
	}
	return false, ""
}

// Broker evaluates commands against the hot-reloadable active policy set
// (spec §4.4), grounded on the teacher's PolicyManager: directory-watched
// config, atomic in-memory swap on reload, JSON-persisted side state (here
// the approval cache instead of the teacher's allow-list).
type Broker struct {
	mu        sync.RWMutex
	logger    *zap.Logger
	policyDir string
	policies  map[string]*compiled // keyed by policy id / profile name
	prompter  Prompter
	cache     *ApprovalCache
	metrics   *metrics.BrokerMetrics

	watcher  *fsnotify.Watcher
	stopOnce sync.Once
	stopCh   chan struct{}
}

// New constructs a Broker, performing an initial load of policyDir.
// approvalCachePath may be empty for an in-memory-only cache (tests,
// QuickCheck-only callers).
func New(logger *zap.Logger, policyDir, approvalCachePath string) (*Broker, error) {
	b := &Broker{
		logger:    logger,
		policyDir: policyDir,
		policies:  make(map[string]*compiled),
		prompter:  NonInteractivePrompter{},
		cache:     NewApprovalCache(approvalCachePath),
	}
	if err := b.Reload(); err != nil {
		return nil, err
	}
	return b, nil
}

// SetPrompter overrides the approval prompter (default denies everything,
// suitable for non-interactive sessions).
func (b *Broker) SetPrompter(p Prompter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prompter = p
}

// SetMetrics wires a BrokerMetrics instance; nil disables instrumentation.
func (b *Broker) SetMetrics(m *metrics.BrokerMetrics) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.metrics = m
}

// Reload re-reads every policy file under policyDir, validates each, and
// atomically swaps the active set only if every file is valid — an
// invalid policy file never replaces a running one (spec §3.3). The
// approval cache is cleared after every successful reload (spec §3.4/§4.4),
// even one that changes nothing; a rejected reload leaves it untouched.
func (b *Broker) Reload() error {
	policies, errs := LoadDir(b.policyDir)
	if len(errs) > 0 {
		if b.metrics != nil {
			b.metrics.ReloadsTotal.WithLabelValues("invalid").Inc()
		}
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return fmt.Errorf("policy: reload rejected, %d invalid file(s): %s", len(errs), strings.Join(msgs, "; "))
	}

	compiledSet := make(map[string]*compiled, len(policies))
	for id, p := range policies {
		c, err := compilePolicy(p)
		if err != nil {
			if b.metrics != nil {
				b.metrics.ReloadsTotal.WithLabelValues("invalid").Inc()
			}
			return fmt.Errorf("policy: reload rejected, policy %q: %w", id, err)
		}
		compiledSet[id] = c
	}

	b.mu.Lock()
	b.policies = compiledSet
	b.mu.Unlock()

	b.cache.Clear()

	if b.metrics != nil {
		b.metrics.ReloadsTotal.WithLabelValues("ok").Inc()
		for _, c := range compiledSet {
			b.metrics.ActivePolicyInfo.WithLabelValues(c.policy.Name, string(c.policy.Mode)).Set(1)
		}
	}
	if b.logger != nil {
		b.logger.Info("policy reload applied", zap.Int("policy_count", len(compiledSet)))
	}
	return nil
}

// Watch starts an fsnotify watcher on the policy directory, calling
// Reload on every write/create/rename/remove event. It returns
// immediately; call Stop to shut the watcher down. Grounded on the
// teacher's fsnotify-based .env hot-reload (SPEC_FULL §10.3).
func (b *Broker) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("policy: create watcher: %w", err)
	}
	if err := w.Add(b.policyDir); err != nil {
		_ = w.Close()
		return fmt.Errorf("policy: watch %s: %w", b.policyDir, err)
	}

	b.watcher = w
	b.stopCh = make(chan struct{})

	go func() {
		debounce := time.NewTimer(0)
		if !debounce.Stop() {
			<-debounce.C
		}
		pending := false
		for {
			select {
			case <-b.stopCh:
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				if !pending {
					pending = true
					debounce.Reset(150 * time.Millisecond)
				}
			case <-debounce.C:
				pending = false
				if err := b.Reload(); err != nil && b.logger != nil {
					b.logger.Warn("policy reload failed", zap.Error(err))
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				if b.logger != nil {
					b.logger.Warn("policy watcher error", zap.Error(err))
				}
			}
		}
	}()
	return nil
}

// Stop shuts down the watcher goroutine, if running. Safe to call more
// than once and safe to call when Watch was never started.
func (b *Broker) Stop() {
	b.stopOnce.Do(func() {
		if b.stopCh != nil {
			close(b.stopCh)
		}
		if b.watcher != nil {
			_ = b.watcher.Close()
		}
	})
}

// resolve returns the compiled policy for cwd's active profile, applying
// the local override file if present. It never returns nil: a missing
// profile falls back to "default"; a missing "default" policy yields an
// empty, permissive-by-absence-of-rules policy rather than a panic.
func (b *Broker) resolve(cwd string) *compiled {
	profile := ActiveProfileName(cwd)

	b.mu.RLock()
	c, ok := b.policies[profile]
	if !ok {
		c, ok = b.policies["default"]
	}
	b.mu.RUnlock()

	if !ok || c == nil {
		return &compiled{policy: &Policy{ID: "unconfigured", Name: "unconfigured", Mode: ModeObserve}}
	}

	if overridePath := FindLocalOverride(cwd); overridePath != "" {
		if override, err := LoadFile(overridePath); err == nil {
			merged := MergeLocalOverride(c.policy, override)
			if mc, err := compilePolicy(merged); err == nil {
				return mc
			}
		} else if b.logger != nil {
			b.logger.Warn("ignoring invalid local policy override", zap.String("path", overridePath), zap.Error(err))
		}
	}
	return c
}

// Evaluate implements the ordered-bucket decision spec §4.4 describes:
// deny, then isolated, then allowed (if non-empty), then interactive
// approval, then allow. In observe mode a Deny is downgraded to Allow
// with WouldDeny set, so the caller can still emit the policy_violation
// span spec §4.4 requires.
func (b *Broker) Evaluate(cmd, cwd, worldID string) Decision {
	start := time.Now()
	c := b.resolve(cwd)

	decision := b.evaluateAgainst(c, cmd, cwd)

	if b.metrics != nil {
		b.metrics.DecisionsTotal.WithLabelValues(string(decision.Action)).Inc()
		b.metrics.EvalDuration.WithLabelValues(string(decision.Action)).Observe(time.Since(start).Seconds())
	}
	return decision
}

func (b *Broker) evaluateAgainst(c *compiled, cmd, cwd string) Decision {
	if matched, pat := firstMatch(c.denied, cmd); matched {
		d := Deny("matched denied pattern", pat)
		if c.policy.Mode == ModeObserve {
			d.Action = ActionAllow
			d.WouldDeny = true
		}
		return d
	}

	if matched, pat := firstMatch(c.isolated, cmd); matched {
		return AllowIsolated(pat)
	}

	if len(c.allowed) > 0 {
		if matched, pat := firstMatch(c.allowed, cmd); matched {
			return Decision{Action: ActionAllow, MatchedPattern: pat}
		}
		d := Deny("not allowed", "")
		if c.policy.Mode == ModeObserve {
			d.Action = ActionAllow
			d.WouldDeny = true
		}
		return d
	}

	if c.policy.Approval.Interactive {
		if matched, pat := firstMatch(c.autoApprove, cmd); matched {
			return Decision{Action: ActionAllow, MatchedPattern: pat}
		}
		return b.resolveApproval(c, cmd, cwd)
	}

	return Allow()
}

// EgressLimiter resolves the policy active for cwd and returns a limiter
// for its net.egress_budget, or nil when none is configured.
func (b *Broker) EgressLimiter(cwd string) *EgressLimiter {
	c := b.resolve(cwd)
	return NewEgressLimiter(c.policy.Net.EgressBudget)
}

// resolveApproval consults the approval cache, then the prompter,
// recording the answer at the chosen scope.
func (b *Broker) resolveApproval(c *compiled, cmd, cwd string) Decision {
	if b.cache.Lookup(c.policy.ID, cwd, cmd) {
		if b.metrics != nil {
			b.metrics.ApprovalsTotal.WithLabelValues("cached", "allow").Inc()
		}
		return Allow()
	}

	b.mu.RLock()
	prompter := b.prompter
	b.mu.RUnlock()

	answer, err := prompter.Prompt(ApprovalRequest{Command: cmd, Cwd: cwd})
	if err != nil {
		return Deny(fmt.Sprintf("approval prompt failed: %v", err), "")
	}

	if !answer.Allow {
		if b.metrics != nil {
			b.metrics.ApprovalsTotal.WithLabelValues(string(answer.Scope), "deny").Inc()
		}
		return Deny("denied by user", "")
	}

	if answer.Scope == ScopeSession || answer.Scope == ScopeAlways {
		b.cache.Record(c.policy.ID, cwd, cmd, answer.Scope)
	}
	if b.metrics != nil {
		b.metrics.ApprovalsTotal.WithLabelValues(string(answer.Scope), "allow").Inc()
	}
	return Allow()
}

// QuickCheck is the allocation-minimal, deny-only fast path the shim uses
// (spec §4.2, §4.4): it consults only the denied bucket of the resolved
// profile, with no approval prompt and no isolation reasoning.
func (b *Broker) QuickCheck(argv []string, cwd string) Decision {
	cmd := strings.Join(argv, " ")

	profile := ActiveProfileName(cwd)
	b.mu.RLock()
	c, ok := b.policies[profile]
	if !ok {
		c, ok = b.policies["default"]
	}
	b.mu.RUnlock()
	if !ok || c == nil {
		return Allow()
	}

	if matched, pat := firstMatch(c.denied, cmd); matched {
		if c.policy.Mode == ModeObserve {
			return Decision{Action: ActionAllow, WouldDeny: true, MatchedPattern: pat}
		}
		return Deny("matched denied pattern", pat)
	}
	return Allow()
}
