// Package tracelog provides the indexer's ambient diagnostic logging: a
// bitmask of named targets that can be toggled independently, each backed
// by a shared logger. Nothing is printed unless a target is explicitly
// enabled.
package tracelog

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

var (
	logger = newLogger()

	current atomic.Int32
)

func newLogger() *log.Logger {
	return log.New(os.Stderr, "", log.Ltime|log.Lmicroseconds|log.Lshortfile)
}

// Target is a tracing target.
type Target int32

const (
	// Scan traces the packfile.Scanner's structural decisions: object
	// boundaries, type/size headers, delta bases.
	Scan Target = 1 << iota

	// Resolve traces delta-chain resolution: one line per resolved delta
	// with its position, final type, size and identity.
	Resolve

	// Commit traces index-build and commit-time work: encoding, renaming,
	// the optional verification pass.
	Commit

	// Performance is the target for elapsed-time tracing, mirroring the
	// teacher's own performance target. No package in this module logs to
	// it; enabling it prints nothing.
	Performance
)

// SetTarget sets the enabled tracing targets, replacing whatever was set
// before. Combine targets with bitwise-or.
func SetTarget(target Target) {
	current.Store(int32(target))
}

// SetLogger replaces the shared logger.
func SetLogger(l *log.Logger) {
	logger = l
}

// GetTarget returns the currently enabled targets.
func GetTarget() Target {
	return Target(current.Load())
}

// Enabled reports whether t is currently enabled.
func (t Target) Enabled() bool {
	return int32(t)&current.Load() != 0
}

// Print logs args if t is enabled.
func (t Target) Print(args ...any) {
	if t.Enabled() {
		logger.Output(2, fmt.Sprint(args...)) // nolint: errcheck
	}
}

// Printf logs a formatted message if t is enabled.
func (t Target) Printf(format string, args ...any) {
	if t.Enabled() {
		logger.Output(2, fmt.Sprintf(format, args...)) // nolint: errcheck
	}
}

// init honors PACKIDX_TRACE, a comma-separated list of target names, so
// tracing can be turned on without a code change — e.g.
// PACKIDX_TRACE=scan,resolve.
func init() {
	env := os.Getenv("PACKIDX_TRACE")
	if env == "" {
		return
	}

	var t Target
	for _, name := range strings.Split(env, ",") {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "scan":
			t |= Scan
		case "resolve":
			t |= Resolve
		case "commit":
			t |= Commit
		case "performance":
			t |= Performance
		}
	}
	SetTarget(t)
}
