package orchestrator

import (
	"errors"
	"fmt"

	"github.com/devserve-run/devserve/internal/discover"
	"github.com/devserve-run/devserve/internal/pm"
)

// Strategy-level failures: logged and swallowed by the orchestrator,
// which advances to the next strategy.
var (
	// ErrUnreachable means a URL was discovered but never answered HTTP
	// within the reachability window.
	ErrUnreachable = errors.New("discovered URL never became reachable")
	// ErrDiscoveryTimeout aliases the discovery package's deadline error.
	ErrDiscoveryTimeout = discover.ErrTimeout
)

// InstallError is re-exported: an install failure aborts the whole
// serve attempt, since no later strategy can be trusted without a
// consistent dependency tree.
type InstallError = pm.InstallError

// UnsupportedEntryError means the entry HTML references a module source
// that requires bundling and no bundler invocation succeeded. It is
// surfaced to the caller instead of silently serving raw sources.
type UnsupportedEntryError struct {
	Entry  string
	Script string
}

func (e *UnsupportedEntryError) Error() string {
	return fmt.Sprintf("entry %s references %s, which requires bundling, and no bundler could be launched", e.Entry, e.Script)
}
