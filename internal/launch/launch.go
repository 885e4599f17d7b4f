// Package launch decides how to start a dev server for a project
// directory: explicit command, manifest dev script, inferred bundler,
// or static fallback.
package launch

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/bmatcuk/doublestar/v4"
	"mvdan.cc/sh/v3/syntax"

	"github.com/devserve-run/devserve/internal/pm"
)

// Kind names a launch strategy, in fallback order.
type Kind string

const (
	KindExplicit       Kind = "explicit"
	KindDevScript      Kind = "dev-script"
	KindBundlerDev     Kind = "bundler-dev"
	KindBundlerPreview Kind = "bundler-preview"
	KindStatic         Kind = "static"
)

// Command is a chosen launch attempt: a shell command in a working
// directory. Immutable once built.
type Command struct {
	Kind    Kind
	Command string
	Dir     string
}

// entryPatterns are the candidate entry-HTML locations, tried in
// order against the project root.
var entryPatterns = []string{
	"index.html",
	"public/index.html",
	"src/index.html",
	"*/index.html",
}

// sourceExtensions are module sources that need a bundler before a
// browser can run them.
var sourceExtensions = map[string]bool{
	".ts":     true,
	".tsx":    true,
	".jsx":    true,
	".mts":    true,
	".cts":    true,
	".vue":    true,
	".svelte": true,
}

// Entry describes a discovered entry HTML file.
type Entry struct {
	// HTMLPath is the absolute path of the entry page.
	HTMLPath string
	// ScriptSrc is the first module-style script src, empty when the
	// page has none.
	ScriptSrc string
	// NeedsBundler is true when ScriptSrc is a local non-plain-JS
	// module source.
	NeedsBundler bool
}

// Dir returns the directory containing the entry page.
func (e *Entry) Dir() string {
	return filepath.Dir(e.HTMLPath)
}

// FindEntry locates the project's entry HTML and inspects its module
// script tag.
func FindEntry(root string) (*Entry, bool) {
	fsys := os.DirFS(root)
	for _, pattern := range entryPatterns {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil || len(matches) == 0 {
			continue
		}
		htmlPath := filepath.Join(root, filepath.FromSlash(matches[0]))
		entry := &Entry{HTMLPath: htmlPath}
		if src, ok := moduleScriptSrc(htmlPath); ok {
			entry.ScriptSrc = src
			entry.NeedsBundler = isLocalSource(src) && sourceExtensions[strings.ToLower(filepath.Ext(src))]
		}
		return entry, true
	}
	return nil, false
}

// moduleScriptSrc extracts the first <script type="module" src=...>
// from an HTML file.
func moduleScriptSrc(htmlPath string) (string, bool) {
	f, err := os.Open(htmlPath)
	if err != nil {
		return "", false
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", false
	}

	src, exists := doc.Find(`script[type="module"][src]`).First().Attr("src")
	return src, exists && src != ""
}

// isLocalSource reports whether a script src points at a project file
// rather than an external URL.
func isLocalSource(src string) bool {
	return !strings.HasPrefix(src, "http://") &&
		!strings.HasPrefix(src, "https://") &&
		!strings.HasPrefix(src, "//")
}

// ValidateCommand parses an explicit command as shell syntax so an
// unparseable command fails before anything is spawned.
func ValidateCommand(command string) error {
	parser := syntax.NewParser()
	_, err := parser.Parse(strings.NewReader(command), "command")
	return err
}

// Plan is the ordered list of launch attempts for a directory, not
// including the terminal static fallback.
type Plan struct {
	Commands []Command
	// Entry is the discovered entry HTML, if any.
	Entry *Entry
}

// Build assembles the launch plan for a directory: explicit command
// first, then the manifest dev script, then inferred bundler dev and
// preview invocations when the entry page references a module source.
func Build(dir, explicit string, manager pm.Manager) Plan {
	var plan Plan

	if explicit != "" {
		plan.Commands = append(plan.Commands, Command{Kind: KindExplicit, Command: explicit, Dir: dir})
	}

	// The script body itself is never run verbatim; it goes through the
	// manager's run syntax.
	if _, ok := pm.DevScript(dir); ok {
		plan.Commands = append(plan.Commands, Command{
			Kind:    KindDevScript,
			Command: pm.RunScript(manager, "dev"),
			Dir:     dir,
		})
	}

	entry, found := FindEntry(dir)
	if found {
		plan.Entry = entry
		if entry.ScriptSrc != "" && isLocalSource(entry.ScriptSrc) {
			plan.Commands = append(plan.Commands,
				Command{Kind: KindBundlerDev, Command: pm.ExecTool(manager, "vite"), Dir: dir},
				Command{Kind: KindBundlerPreview, Command: pm.ExecTool(manager, "vite", "preview"), Dir: dir},
			)
		}
	}

	return plan
}
