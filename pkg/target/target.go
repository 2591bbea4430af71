// Package target decides how an invocation maps onto build work: which
// positional arguments are entries, whether the tail is an output directory,
// and which build mode runs.
package target

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrMisplacedFlag is returned for a flag-like argument after the first
// entry. Flag parsing stops at the first positional so trailing arguments can
// forward to subcommands verbatim; in a build invocation a trailing flag is a
// user error, not an output directory.
var ErrMisplacedFlag = errors.New("unknown flag")

// DefaultOutDir is the output directory used for multi-entry builds when no
// directory was given.
const DefaultOutDir = "build"

// Mode selects the build orchestrator code path.
type Mode int

const (
	// ModeHelp shows usage; there is nothing to build.
	ModeHelp Mode = iota
	// ModeStdin builds a single bundle from standard input to stdout.
	ModeStdin
	// ModeSingleStdout builds one entry to stdout.
	ModeSingleStdout
	// ModeBatch builds one or more entries into an output directory.
	ModeBatch
)

func (m Mode) String() string {
	switch m {
	case ModeHelp:
		return "help"
	case ModeStdin:
		return "stdin"
	case ModeSingleStdout:
		return "single"
	case ModeBatch:
		return "batch"
	}

	return "unknown"
}

// Target is the resolved build plan for one invocation.
type Target struct {
	OutDir  string
	Entries []string
	Mode    Mode
}

// fileLike matches a final path segment with an extension-like suffix: a
// non-whitespace run ending in a dot and a word token.
var fileLike = regexp.MustCompile(`^\S+\.\w+$`)

// LooksLikeFile classifies path as a file or a directory. The name pattern is
// checked first; for names without an extension-like suffix a filesystem stat
// decides. A path that does not exist is classified as not-a-file, so that
// not-yet-created output directories are recognized as directories.
func LooksLikeFile(path string) bool {
	if fileLike.MatchString(filepath.Base(path)) {
		return true
	}

	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	return info.Mode().IsRegular()
}

// FilterGlobs drops arguments still containing wildcard metacharacters,
// meaning shell glob expansion produced zero matches.
func FilterGlobs(args []string) []string {
	filtered := make([]string, 0, len(args))
	for _, arg := range args {
		if strings.ContainsAny(arg, "*?[") {
			continue
		}

		filtered = append(filtered, arg)
	}

	return filtered
}

// ResolveAssets inspects the last entry and reports it as the output
// directory when it does not look like a file. The second return is false
// when there is no output directory in the entry list.
func ResolveAssets(entries []string) (string, bool) {
	if len(entries) == 0 {
		return "", false
	}

	last := entries[len(entries)-1]
	if LooksLikeFile(last) {
		return "", false
	}

	return last, true
}

// Resolve derives the build plan from positional arguments. The outFlag
// overrides any inferred output directory. stdinTTY reports whether standard
// input is an interactive terminal; with no entries and a non-interactive
// stdin, the stdin build mode is selected instead of help.
//
// Flag-like arguments are rejected with [ErrMisplacedFlag]: flag parsing
// stops at the first positional, so a flag placed after an entry is a
// mistake rather than an output directory.
//
// Invariant: a non-empty OutDir means no entry is written to stdout.
func Resolve(args []string, outFlag string, stdinTTY bool) (Target, error) {
	for _, arg := range args {
		if len(arg) > 1 && strings.HasPrefix(arg, "-") {
			return Target{}, fmt.Errorf("%w: %s (flags must precede the first entry)",
				ErrMisplacedFlag, arg)
		}
	}

	entries := FilterGlobs(args)

	assets, found := ResolveAssets(entries)
	if found {
		entries = entries[:len(entries)-1]
	}

	outDir := assets
	if outFlag != "" {
		outDir = outFlag
	}

	switch {
	case len(entries) == 0 && !stdinTTY:
		return Target{Mode: ModeStdin}, nil

	case len(entries) == 0:
		return Target{Mode: ModeHelp}, nil

	case outDir != "":
		return Target{Mode: ModeBatch, Entries: entries, OutDir: outDir}, nil

	case len(entries) == 1:
		return Target{Mode: ModeSingleStdout, Entries: entries}, nil

	default:
		return Target{Mode: ModeBatch, Entries: entries, OutDir: DefaultOutDir}, nil
	}
}
