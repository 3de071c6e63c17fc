package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"dwmm/internal/daemon"
	"dwmm/internal/engine/parser"
)

func TestPrintSuggestions(t *testing.T) {
	var buf bytes.Buffer
	printSuggestions(&buf, daemon.SuggestResult{
		"spawn": {
			Identifier: "spawn",
			Start:      &parser.Position{Line: 3, Column: 1},
			Context:    "spawn('ls')",
			Kind:       parser.KindValue,
			Suggested:  []daemon.SuggestedImport{{Code: `import { spawn } from "child_process"`}},
		},
		"Mystery": {Identifier: "Mystery"},
	})
	out := buf.String()

	for _, want := range []string{"spawn", "3:1", "spawn('ls')", `import { spawn } from "child_process"`, "Mystery", "no suggestions"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Mystery") > strings.Index(out, "spawn") {
		t.Errorf("identifiers should be sorted:\n%s", out)
	}
}

func TestPrintSuggestionsEmpty(t *testing.T) {
	var buf bytes.Buffer
	printSuggestions(&buf, daemon.SuggestResult{})
	if !strings.Contains(buf.String(), "no undefined identifiers") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestPrintWheres(t *testing.T) {
	var buf bytes.Buffer
	printWheres(&buf, "get", daemon.SuggestResult{
		"get": {Identifier: "get", Suggested: []daemon.SuggestedImport{
			{Code: `import get from "lodash/get"`},
			{Code: `import { get } from "./util"`},
		}},
	})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], "lodash/get") {
		t.Errorf("unexpected output %q", buf.String())
	}

	buf.Reset()
	printWheres(&buf, "nothing", daemon.SuggestResult{})
	if !strings.Contains(buf.String(), "no suggestions for nothing") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestPrintNatives(t *testing.T) {
	var buf bytes.Buffer
	printNatives(&buf, map[string][]string{"vm": {"Script"}, "fs": {"readFile", "writeFile"}})
	out := buf.String()
	if strings.Index(out, "fs") > strings.Index(out, "vm") {
		t.Errorf("modules should be sorted:\n%s", out)
	}
	if !strings.Contains(out, "readFile, writeFile") {
		t.Errorf("exports missing:\n%s", out)
	}
}

func TestExitErrorCarriesCode(t *testing.T) {
	var err error = exitError{code: 3}
	var exit exitError
	if !errors.As(err, &exit) || exit.code != 3 {
		t.Fatalf("expected exit code 3, got %v", err)
	}
}

func TestServerCommandRequiresProject(t *testing.T) {
	err := runServer(serverCmd, nil)
	var exit exitError
	if !errors.As(err, &exit) || exit.code != 1 {
		t.Fatalf("expected exit code 1, got %v", err)
	}
}
