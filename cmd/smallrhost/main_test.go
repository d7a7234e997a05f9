package main

import (
	"testing"
)

func TestArgv0Alias(t *testing.T) {
	tests := []struct {
		name string
		base string
		want string
	}{
		{name: "smallr-eval-mock", base: "smallr-eval-mock", want: "eval-mock"},
		{name: "smallrhost-eval-mock", base: "smallrhost-eval-mock", want: "eval-mock"},
		{name: "smallrhost", base: "smallrhost", want: ""},
	}
	for _, tc := range tests {
		if got := argv0Alias(tc.base); got != tc.want {
			t.Fatalf("%s: argv0Alias(%q) = %q, want %q", tc.name, tc.base, got, tc.want)
		}
	}
}

func TestApplyArgv0Alias(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{name: "empty", args: nil, want: nil},
		{name: "no-alias", args: []string{"smallrhost", "run"}, want: []string{"smallrhost", "run"}},
		{name: "eval-mock", args: []string{"/usr/bin/smallr-eval-mock", "--delay", "1s"}, want: []string{"/usr/bin/smallr-eval-mock", "eval-mock", "--delay", "1s"}},
	}
	for _, tc := range tests {
		got := applyArgv0Alias(tc.args)
		if len(got) != len(tc.want) {
			t.Fatalf("%s: applyArgv0Alias length = %d, want %d", tc.name, len(got), len(tc.want))
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("%s: applyArgv0Alias[%d] = %q, want %q", tc.name, i, got[i], tc.want[i])
			}
		}
	}
}

func TestIsEvalMockInvocation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want bool
	}{
		{name: "eval-mock", args: []string{"smallrhost", "eval-mock"}, want: true},
		{name: "run", args: []string{"smallrhost", "run"}, want: false},
		{name: "empty", args: nil, want: false},
	}
	for _, tc := range tests {
		if got := isEvalMockInvocation(tc.args); got != tc.want {
			t.Fatalf("%s: isEvalMockInvocation(%v) = %v, want %v", tc.name, tc.args, got, tc.want)
		}
	}
}

func TestRootHasCommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"run", "watch", "repl", "panels", "eval-mock", "config", "version"} {
		if !names[want] {
			t.Fatalf("expected root command to include %s", want)
		}
	}
}
