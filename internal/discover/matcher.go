// Package discover finds the URL a spawned dev server is listening on,
// racing log extraction against port scanning under a deadline.
package discover

import (
	"regexp"
	"strings"
)

// maxBufferSize caps the rolling log buffer; older output is trimmed.
const maxBufferSize = 64 * 1024

var (
	ansiRe     = regexp.MustCompile("\x1b\\[[0-9;?]*[ -/]*[@-~]")
	ansiOscRe  = regexp.MustCompile("\x1b\\][^\x07]*\x07")
	trailChars = "\"'`,.;)>]"
)

// readyPattern pairs a name with a compiled "server ready" log shape.
// The first submatch must capture the URL.
type readyPattern struct {
	name string
	re   *regexp.Regexp
}

// builtinPatterns is the ordered table of known ready-line shapes,
// vendor-specific phrasings first, generic URL shapes last.
var builtinPatterns = []readyPattern{
	{"vite", regexp.MustCompile(`Local:\s+(https?://\S+)`)},
	{"webpack", regexp.MustCompile(`Project is running at:?\s+(https?://\S+)`)},
	{"parcel", regexp.MustCompile(`Server running at\s+(https?://\S+)`)},
	{"listening", regexp.MustCompile(`[Ll]istening (?:on|at):?\s+(https?://\S+)`)},
	{"available", regexp.MustCompile(`Available on:?\s+(https?://\S+)`)},
	{"generic", regexp.MustCompile(`(https?://(?:\d{1,3}(?:\.\d{1,3}){3}|localhost|\[[0-9a-fA-F:]+\])(?::\d+)?(?:/\S*)?)`)},
}

// Match is a successful log extraction.
type Match struct {
	URL     string
	Pattern string
}

// Matcher accumulates child process output in a bounded rolling buffer
// and tests the ready-pattern table after every chunk.
type Matcher struct {
	patterns []readyPattern
	buf      strings.Builder
}

// NewMatcher builds a Matcher. extra patterns (from configuration) are
// tried before the built-in table; invalid expressions are skipped.
func NewMatcher(extra []string) *Matcher {
	patterns := make([]readyPattern, 0, len(extra)+len(builtinPatterns))
	for _, raw := range extra {
		re, err := regexp.Compile(raw)
		if err != nil {
			continue
		}
		patterns = append(patterns, readyPattern{name: "custom", re: re})
	}
	patterns = append(patterns, builtinPatterns...)
	return &Matcher{patterns: patterns}
}

// Append adds a chunk of combined stdout/stderr and reports the first
// pattern match, if any. ANSI escapes are stripped and carriage
// returns normalized before matching.
func (m *Matcher) Append(chunk string) (Match, bool) {
	chunk = ansiRe.ReplaceAllString(chunk, "")
	chunk = ansiOscRe.ReplaceAllString(chunk, "")
	chunk = strings.ReplaceAll(chunk, "\r\n", "\n")
	chunk = strings.ReplaceAll(chunk, "\r", "\n")

	m.buf.WriteString(chunk)
	if m.buf.Len() > maxBufferSize {
		trimmed := m.buf.String()
		trimmed = trimmed[len(trimmed)-maxBufferSize:]
		m.buf.Reset()
		m.buf.WriteString(trimmed)
	}

	text := m.buf.String()
	for _, p := range m.patterns {
		sub := p.re.FindStringSubmatch(text)
		if sub == nil {
			continue
		}
		url := strings.TrimRight(sub[1], trailChars)
		if url == "" {
			continue
		}
		return Match{URL: url, Pattern: p.name}, true
	}
	return Match{}, false
}
