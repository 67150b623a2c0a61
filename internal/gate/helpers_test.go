package gate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yarlson/ralph-gates/internal/taskstore"
)

func declLine(line string) taskstore.GateDecl {
	return taskstore.GateDecl{Line: line}
}

func declProgram(program string, informational bool, args ...string) taskstore.GateDecl {
	return taskstore.GateDecl{Program: program, Args: args, Informational: informational}
}

// writeScript writes an sh script into dir and returns its file name.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return name
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
}
