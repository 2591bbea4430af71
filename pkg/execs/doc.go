// Package execs provides utilities for executing external commands.
//
// It backs both the bundling engine invocation (captured output) and
// subcommand delegation (inherited stdio).
package execs
