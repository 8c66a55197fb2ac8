// Command drift is a small CLI front end for the engine: it evaluates an
// arithmetic expression against a module (-e), or, when given no
// expression, runs a read-eval-print loop over stdin (showing a prompt only
// when stdin is a terminal).
// Full surface-language source files are not supported here — see
// internal/exprlang's doc comment — this binary exists to exercise
// internal/engine end to end, not to replace a real language toolchain.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/driftlang/drift/internal/config"
	"github.com/driftlang/drift/internal/diag"
	"github.com/driftlang/drift/internal/engine"
	"github.com/driftlang/drift/internal/exprlang"
	"github.com/driftlang/drift/internal/values"
)

const defaultModule = "repl"

// fileSource implements engine.OnDiskSource by reading plain files off
// disk, relative to the current working directory.
type fileSource struct{}

func (fileSource) Read(modulePath string) (string, error) {
	b, err := os.ReadFile(modulePath)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			if os.Getenv("DEBUG") == "1" {
				panic(r)
			}
			fmt.Fprintf(os.Stderr, "internal error: %v\n", r)
			os.Exit(1)
		}
	}()

	args := os.Args[1:]

	if handleHelp(args) {
		return
	}
	if handleEval(args) {
		return
	}
	handleRepl()
}

func handleHelp(args []string) bool {
	for _, a := range args {
		if a == "-h" || a == "--help" {
			fmt.Fprintln(os.Stdout, "usage: drift [-e EXPR] [-debug]")
			fmt.Fprintln(os.Stdout, "  -e EXPR   evaluate an arithmetic expression and print its result")
			fmt.Fprintln(os.Stdout, "  -debug    enable debug-level logging to stderr")
			fmt.Fprintln(os.Stdout, "  (no args) start an interactive REPL")
			return true
		}
	}
	return false
}

func debugRequested(args []string) bool {
	for _, a := range args {
		if a == "-debug" || a == "--debug" {
			return true
		}
	}
	return false
}

func newEngine(args []string) *engine.Engine {
	level := diag.Warn
	if debugRequested(args) {
		level = diag.Debug
	}
	logger := diag.New(os.Stderr, level)
	return engine.New(config.Default(), exprlang.New(), fileSource{}, logger)
}

// handleEval handles -e EXPR: evaluate once against defaultModule and
// print the result.
func handleEval(args []string) bool {
	for i, a := range args {
		if a == "-e" && i+1 < len(args) {
			eng := newEngine(args)
			start := time.Now()
			v, err := eng.EvaluateExpressionInModule(defaultModule, args[i+1])
			elapsed := time.Since(start)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			fmt.Fprintln(os.Stdout, formatValue(v))
			if debugRequested(args) {
				fmt.Fprintf(os.Stderr, "(%s)\n", humanize.RelTime(start, start.Add(elapsed), "", "elapsed"))
			}
			return true
		}
	}
	return false
}

// handleRepl starts a read-eval-print loop over stdin against a single
// module. Earlier lines never affect later ones: the arithmetic subset
// declares no bindings, and each line is evaluated in a fresh execution
// context with its own empty expression cache.
func handleRepl() {
	interactive := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	eng := newEngine(os.Args[1:])

	scanner := bufio.NewScanner(os.Stdin)
	for {
		if interactive {
			fmt.Fprint(os.Stdout, "drift> ")
		}
		if !scanner.Scan() {
			if interactive {
				fmt.Fprintln(os.Stdout)
			}
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return
		}

		v, err := eng.EvaluateExpressionInModule(defaultModule, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Fprintln(os.Stdout, formatValue(v))
	}
}

// formatValue renders a result the way a REPL user expects to read it,
// not the engine's internal wire encoding (that shape lives in
// internal/broadcast.describeValue, for remote consumers instead of a
// terminal).
func formatValue(v values.Value) string {
	switch t := v.(type) {
	case nil:
		return "()"
	case values.UnitValue:
		return "()"
	case values.Long:
		return fmt.Sprintf("%d", t.V)
	case values.Double:
		return fmt.Sprintf("%g", t.V)
	case values.Boolean:
		return fmt.Sprintf("%t", t.V)
	case values.Text:
		return t.Rope
	case *values.DataflowError:
		return fmt.Sprintf("error: %s", t.Kind)
	case *values.Panic:
		return fmt.Sprintf("panic: %s", formatValue(t.Payload))
	default:
		return fmt.Sprintf("%v", v)
	}
}
