package main

import (
	"os"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"
)

// TestMain lets a subprocess invocation of this test binary re-exec as the
// vecjit driver itself, the standard testscript.Main pattern (§1.1: golden
// scripts drive the built command rather than an in-process call, so the
// recorder/optimizer/codegen pipeline is exercised end to end through its
// real command-line surface and the output is diffed against a fixture).
func TestMain(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"vecjit": func() int {
			main()
			return 0
		},
	}))
}

func TestScripts(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir: "testdata/script",
	})
}
