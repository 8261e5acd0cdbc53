/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */

// cmd/shim is the single binary installed under many names (git, npm,
// python, ...) in the shim directory prepended to PATH (spec §4.2). Every
// invocation resolves the real binary from a clean search path and either
// bypasses straight to it (self-replacing via syscall.Exec, argv[0]
// preserved) or emits command_start, spawns and waits for the real
// binary, and emits command_complete with its exit code and duration.
package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/substrate-run/substrate/internal/ids"
	"github.com/substrate-run/substrate/internal/policy"
	"github.com/substrate-run/substrate/internal/trace"
)

const maxDepth = 8

// pathSeparator is the OS search-path list separator: ':' on POSIX, ';'
// on Windows.
var pathSeparator = string(os.PathListSeparator)

// resolutionCache maps (command, normalized search path) to a resolved
// absolute path, scoped to this process's lifetime (spec §4.2).
var (
	resolutionCacheMu sync.Mutex
	resolutionCache   = map[string]string{}
)

func main() {
	cmdName := invocationName()
	env := readEnv()

	if env.bypass {
		execOriginal(cmdName, env)
		return
	}

	cmdID := ids.New()
	depth := env.depth
	if depth >= maxDepth {
		emitWarning(env, cmdName, cmdID, "shim recursion depth exceeded, bypassing")
		execOriginal(cmdName, env)
		return
	}

	resolved, err := resolve(cmdName, env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "substrate-shim: %s: %v\n", cmdName, err)
		os.Exit(127)
	}

	argv := os.Args[1:]
	if decision := quickCheck(env, cmdName, argv); decision.Action == policy.ActionDeny {
		fmt.Fprintf(os.Stderr, "substrate-shim: denied: %s (%s)\n", cmdName, decision.Reason)
		emitDenial(env, cmdName, cmdID, decision, resolved)
		os.Exit(126)
	}

	writer := openWriter(env)
	if writer != nil {
		defer writer.Close()
	}

	fingerprint := shimFingerprint()
	callStack := appendCallStack(env.callStack, cmdName)

	emitSpan(writer, trace.Span{
		TS:              trace.Now(),
		EventType:       trace.EventCommandStart,
		SessionID:       env.sessionID,
		CmdID:           cmdID.String(),
		ParentCmdID:     env.parentCmdID,
		Component:       trace.ComponentShim,
		Depth:           depth,
		Command:         redactedCommand(env, cmdName, argv),
		Argv:            redactedArgv(env, cmdName, argv),
		ResolvedPath:    resolvedPathForSpan(env, resolved),
		ShimFingerprint: fingerprint,
		CallStack:       callStack,
	})

	start := time.Now()
	exit, termSignal, spawnErr := runChild(resolved, cmdName, argv, env, callStack, cmdID.String(), depth+1)
	duration := time.Since(start)

	if spawnErr != nil {
		emitSpan(writer, trace.Span{
			TS:             trace.Now(),
			EventType:      trace.EventSpawnFailed,
			SessionID:      env.sessionID,
			CmdID:          cmdID.String(),
			Component:      trace.ComponentShim,
			Depth:          depth,
			Error:          spawnErr.Error(),
			SpawnErrorKind: spawnErrorKind(spawnErr),
			SpawnErrno:     spawnErrno(spawnErr),
		})
		if writer != nil {
			writer.Close()
		}
		fmt.Fprintf(os.Stderr, "substrate-shim: spawn failed: %v\n", spawnErr)
		os.Exit(1)
	}

	exitCode := exit
	emitSpan(writer, trace.Span{
		TS:         trace.Now(),
		EventType:  trace.EventCommandComplete,
		SessionID:  env.sessionID,
		CmdID:      cmdID.String(),
		Component:  trace.ComponentShim,
		Depth:      depth,
		ExitCode:   &exitCode,
		DurationMs: duration.Milliseconds(),
		TermSignal: termSignal,
	})

	if writer != nil {
		writer.Close()
	}
	if termSignal != nil {
		exit = 128 + *termSignal
	}
	os.Exit(exit)
}

// invocationName returns the filename the shim was invoked as, which on
// POSIX is how a multi-named hardlink/symlink binary tells which command
// it is standing in for.
func invocationName() string {
	return filepath.Base(os.Args[0])
}

type shimEnv struct {
	originalPath string
	traceLog     string
	sessionID    string
	parentCmdID  string
	depth        int
	bypass       bool
	rawLog       bool
	resolveLog   bool
	fsync        bool
	cacheBust    bool
	callStack    []string
}

func readEnv() shimEnv {
	depth, _ := strconv.Atoi(os.Getenv("SHIM_DEPTH"))
	sessionID := os.Getenv("SHIM_SESSION_ID")
	if sessionID == "" {
		sessionID = ids.New().String()
	}
	logOpts := os.Getenv("SHIM_LOG_OPTS")
	return shimEnv{
		originalPath: os.Getenv("SHIM_ORIGINAL_PATH"),
		traceLog:     os.Getenv("SHIM_TRACE_LOG"),
		sessionID:    sessionID,
		parentCmdID:  os.Getenv("SHIM_PARENT_CMD_ID"),
		depth:        depth,
		bypass:       os.Getenv("SHIM_BYPASS") == "1",
		rawLog:       logOpts == "raw",
		resolveLog:   logOpts == "resolve",
		fsync:        os.Getenv("SHIM_FSYNC") == "1",
		cacheBust:    os.Getenv("SHIM_CACHE_BUST") == "1",
		callStack:    splitCallStack(os.Getenv("SUBSTRATE_SHIM_CALL_STACK")),
	}
}

func splitCallStack(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func appendCallStack(stack []string, name string) []string {
	out := append(append([]string{}, stack...), name)
	const boundedLen = 16
	if len(out) > boundedLen {
		out = out[len(out)-boundedLen:]
	}
	return dedupeOrdered(out)
}

func dedupeOrdered(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// shimDirs returns this shim's own directory, so it can be excluded from
// the clean search path, preventing the shim from ever resolving to
// itself (the recursion/loop guard spec §4.2 requires).
func shimDirs() map[string]bool {
	dirs := map[string]bool{}
	if exe, err := os.Executable(); err == nil {
		dirs[filepath.Dir(exe)] = true
	}
	dirs[filepath.Dir(os.Args[0])] = true
	return dirs
}

// cleanSearchPath splits env.originalPath, drops the shim directory and
// duplicates, keeping order.
func cleanSearchPath(env shimEnv) []string {
	excluded := shimDirs()
	seen := map[string]bool{}
	var out []string
	for _, dir := range strings.Split(env.originalPath, pathSeparator) {
		if dir == "" || excluded[dir] || seen[dir] {
			continue
		}
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			continue
		}
		seen[dir] = true
		out = append(out, dir)
	}
	return out
}

func resolve(cmdName string, env shimEnv) (string, error) {
	if strings.ContainsRune(cmdName, filepath.Separator) {
		if isExecutable(cmdName) {
			return cmdName, nil
		}
		return "", fmt.Errorf("explicit path %q is not executable", cmdName)
	}

	searchPath := cleanSearchPath(env)
	cacheKey := cmdName + "\x00" + strings.Join(searchPath, pathSeparator)

	if !env.cacheBust {
		resolutionCacheMu.Lock()
		cached, ok := resolutionCache[cacheKey]
		resolutionCacheMu.Unlock()
		if ok {
			return cached, nil
		}
	}

	for _, dir := range searchPath {
		for _, candidate := range candidateNames(dir, cmdName) {
			if isExecutable(candidate) {
				if !env.cacheBust {
					resolutionCacheMu.Lock()
					resolutionCache[cacheKey] = candidate
					resolutionCacheMu.Unlock()
				}
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("%s: command not found on clean PATH", cmdName)
}

// candidateNames returns the paths to probe for cmdName within dir,
// honoring PATHEXT on Windows.
func candidateNames(dir, cmdName string) []string {
	full := filepath.Join(dir, cmdName)
	if runtime.GOOS != "windows" {
		return []string{full}
	}
	if filepath.Ext(cmdName) != "" {
		return []string{full}
	}
	pathext := os.Getenv("PATHEXT")
	if pathext == "" {
		pathext = ".COM;.EXE;.BAT;.CMD"
	}
	var out []string
	for _, ext := range strings.Split(pathext, ";") {
		out = append(out, full+ext)
	}
	return out
}

func isExecutable(path string) bool {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true // candidateNames already filtered by PATHEXT
	}
	return fi.Mode()&0o111 != 0
}

func quickCheck(env shimEnv, cmdName string, argv []string) policy.Decision {
	if env.bypass {
		return policy.Decision{Action: policy.ActionAllow}
	}
	broker, err := quickCheckBroker()
	if err != nil {
		return policy.Decision{Action: policy.ActionAllow}
	}
	cwd, _ := os.Getwd()
	full := append([]string{cmdName}, argv...)
	return broker.QuickCheck(full, cwd)
}

// quickCheckBroker constructs a read-only broker view scoped to the
// default policy directory; the shim never writes approvals or watches
// for reloads, it only needs QuickCheck's deny-bucket lookup.
func quickCheckBroker() (*policy.Broker, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return policy.New(nil, filepath.Join(home, ".substrate", "policies"), "")
}

func openWriter(env shimEnv) *trace.Writer {
	if env.traceLog == "" {
		return nil
	}
	w, err := trace.NewWriter(env.traceLog, 0, env.fsync, env.rawLog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "substrate-shim: trace log unavailable: %v\n", err)
		return nil
	}
	return w
}

func emitSpan(w *trace.Writer, span trace.Span) {
	if w == nil {
		return
	}
	if err := w.Emit(span); err != nil {
		fmt.Fprintf(os.Stderr, "substrate-shim: trace write failed: %v\n", err)
	}
}

func emitWarning(env shimEnv, cmdName string, cmdID ids.ID, reason string) {
	w := openWriter(env)
	if w == nil {
		return
	}
	defer w.Close()
	emitSpan(w, trace.Span{
		TS:        trace.Now(),
		EventType: trace.EventSpawnFailed,
		SessionID: env.sessionID,
		CmdID:     cmdID.String(),
		Component: trace.ComponentShim,
		Depth:     env.depth,
		Command:   cmdName,
		Error:     reason,
	})
}

func emitDenial(env shimEnv, cmdName string, cmdID ids.ID, decision policy.Decision, resolved string) {
	w := openWriter(env)
	if w == nil {
		return
	}
	defer w.Close()
	emitSpan(w, trace.Span{
		TS:           trace.Now(),
		EventType:    trace.EventPolicyViolation,
		SessionID:    env.sessionID,
		CmdID:        cmdID.String(),
		Component:    trace.ComponentShim,
		Depth:        env.depth,
		Command:      cmdName,
		ResolvedPath: resolved,
		Pattern:      decision.MatchedPattern,
		Reason:       decision.Reason,
	})
}

func redactedCommand(env shimEnv, cmdName string, argv []string) string {
	full := append([]string{cmdName}, argv...)
	if env.rawLog {
		return strings.Join(full, " ")
	}
	return strings.Join(trace.RedactArgv(full), " ")
}

// redactedArgv is command_start's argv field (spec §3.2): the real argv,
// redacted the same way as the command field unless SHIM_LOG_OPTS=raw.
func redactedArgv(env shimEnv, cmdName string, argv []string) []string {
	full := append([]string{cmdName}, argv...)
	if env.rawLog {
		return full
	}
	return trace.RedactArgv(full)
}

func resolvedPathForSpan(env shimEnv, resolved string) string {
	if !env.resolveLog {
		return ""
	}
	return resolved
}

// shimFingerprintOnce memoizes the shim binary's own SHA-256 digest,
// computed lazily on first use per spec §4.2.
var (
	shimFingerprintOnce sync.Once
	shimFingerprintVal  string
)

func shimFingerprint() string {
	shimFingerprintOnce.Do(func() {
		exe, err := os.Executable()
		if err != nil {
			return
		}
		data, err := os.ReadFile(exe)
		if err != nil {
			return
		}
		sum := sha256.Sum256(data)
		shimFingerprintVal = hex.EncodeToString(sum[:])
	})
	return shimFingerprintVal
}

// runChild spawns resolved with argv[0] preserved as cmdName and waits,
// since the traced path needs to emit command_complete with the child's
// exit code and duration afterward (spec §4.2 step 4) — unlike the
// bypass path, this one cannot simply replace the shim's own process
// image.
func runChild(resolved, cmdName string, argv []string, env shimEnv, callStack []string, cmdID string, nextDepth int) (exit int, termSignal *int, spawnErr error) {
	childEnv := buildChildEnv(env, callStack, cmdID, nextDepth)
	return runChildSubprocess(resolved, cmdName, argv, childEnv)
}

// buildChildEnv rewrites the SHIM_* contract for the process this shim
// invocation spawns: parentCmdID becomes that child's SHIM_PARENT_CMD_ID,
// correlating any shim invocation it makes in turn back to this command
// (spec §3.1/§3.2's causally-linked trace DAG). The traced path passes
// its own freshly generated cmdID here; the bypass path has none of its
// own to contribute and passes env.parentCmdID through unchanged.
func buildChildEnv(env shimEnv, callStack []string, parentCmdID string, nextDepth int) []string {
	out := make([]string, 0, len(os.Environ())+4)
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "SHIM_DEPTH=") || strings.HasPrefix(kv, "SHIM_PARENT_CMD_ID=") || strings.HasPrefix(kv, "SUBSTRATE_SHIM_CALL_STACK=") || strings.HasPrefix(kv, "SHIM_ORIGINAL_PATH=") {
			continue
		}
		out = append(out, kv)
	}
	out = append(out,
		"SHIM_DEPTH="+strconv.Itoa(nextDepth),
		"SHIM_SESSION_ID="+env.sessionID,
		"SUBSTRATE_SHIM_CALL_STACK="+strings.Join(callStack, ","),
		"SHIM_ORIGINAL_PATH="+strings.Join(cleanSearchPath(env), pathSeparator),
	)
	if parentCmdID != "" {
		out = append(out, "SHIM_PARENT_CMD_ID="+parentCmdID)
	}
	return out
}

func execOriginal(cmdName string, env shimEnv) {
	resolved, err := resolve(cmdName, env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "substrate-shim: %s: %v\n", cmdName, err)
		os.Exit(127)
	}
	childEnv := buildChildEnv(env, env.callStack, env.parentCmdID, env.depth+1)
	argv := os.Args[1:]
	if runtime.GOOS != "windows" {
		fullArgv := append([]string{cmdName}, argv...)
		if err := syscall.Exec(resolved, fullArgv, childEnv); err != nil {
			fmt.Fprintf(os.Stderr, "substrate-shim: exec failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	exit, _, spawnErr := runChildSubprocess(resolved, cmdName, argv, childEnv)
	if spawnErr != nil {
		fmt.Fprintf(os.Stderr, "substrate-shim: exec failed: %v\n", spawnErr)
		os.Exit(1)
	}
	os.Exit(exit)
}
