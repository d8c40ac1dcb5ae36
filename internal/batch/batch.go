// Package batch drives multi-file upload and download operations: it
// expands sources into a flat task list, persists that list through
// localstate so an interrupted run can resume, and walks the list
// applying the active conflict policy to each file in turn.
package batch

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"github.com/filen-go/filen-cli/internal/localstate"
	"github.com/filen-go/filen-cli/internal/model"
	"github.com/filen-go/filen-cli/internal/resolver"
	"github.com/filen-go/filen-cli/internal/transfer"
)

// ConflictPolicy controls what happens when a destination already exists.
type ConflictPolicy string

const (
	ConflictSkip      ConflictPolicy = "skip"
	ConflictOverwrite ConflictPolicy = "overwrite"
	ConflictNewer     ConflictPolicy = "newer"
)

// Orchestrator wires the resolver and transfer engine together for batch
// operations, and persists progress through store so a run can be resumed
// after the process exits.
type Orchestrator struct {
	resolver *resolver.Resolver
	engine   *transfer.Engine
	store    *localstate.Store
	email    string
}

// New builds an Orchestrator bound to one logged-in account.
func New(res *resolver.Resolver, engine *transfer.Engine, store *localstate.Store, email string) *Orchestrator {
	return &Orchestrator{resolver: res, engine: engine, store: store, email: email}
}

// GenerateID computes the stable batch identifier used to name the
// persisted state file: the first 16 hex characters of the SHA-1 digest
// of "<operation>-<sources joined by |>-<target>" (spec §4.6).
func GenerateID(operation model.OperationKind, sources []string, target string) string {
	input := string(operation) + "-" + strings.Join(sources, "|") + "-" + target
	sum := sha1.Sum([]byte(input))
	return hex.EncodeToString(sum[:])[:16]
}

// Progress reports a single task's outcome back to the caller as the
// batch runs, so a CLI command can render a progress bar.
type Progress struct {
	Index       int
	Total       int
	Task        *model.Task
	BytesDone   int64
	BytesTotal  int64
}

// saveState persists state under id, ignoring the result — state saves
// are a best-effort resume aid, not a correctness requirement, matching
// the original implementation's save-on-every-step-but-don't-fail policy.
func (o *Orchestrator) saveState(id string, state *model.BatchState) {
	_ = o.store.SaveBatchState(id, state)
}

func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := doublestarMatch(p, name); ok {
			return true
		}
	}
	return false
}

// shouldInclude applies include/exclude glob filters to one filename,
// matching should_include_file's precedence: an include list is an
// allow-list (no match excludes), an exclude list is a deny-list (any
// match excludes), independently of each other (spec §4.6).
func shouldInclude(filename string, include, exclude []string) bool {
	if len(include) > 0 && !matchesAny(filename, include) {
		return false
	}
	if len(exclude) > 0 && matchesAny(filename, exclude) {
		return false
	}
	return true
}
