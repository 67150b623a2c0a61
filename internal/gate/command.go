// Package gate runs the project's quality gates and tracks repeat failures.
package gate

import (
	"strings"

	"github.com/yarlson/ralph-gates/internal/taskstore"
)

// Command is a structured gate descriptor. Gates never pass through a shell:
// Program is executed directly with Args.
type Command struct {
	Name          string   `json:"name,omitempty"`
	Program       string   `json:"program"`
	Args          []string `json:"args,omitempty"`
	Informational bool     `json:"informational,omitempty"`
}

// String renders the command as a single line.
func (c Command) String() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Line()
}

// Line renders program and arguments separated by spaces.
func (c Command) Line() string {
	return strings.TrimSpace(c.Program + " " + strings.Join(c.Args, " "))
}

// Argv returns the full argument vector.
func (c Command) Argv() []string {
	return append([]string{c.Program}, c.Args...)
}

// ParseLine splits a declared command line on whitespace. Quoting and shell
// syntax are not interpreted; such characters end up in the arguments and are
// rejected by the Policy.
func ParseLine(line string) Command {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return Command{}
	}
	return Command{Program: fields[0], Args: fields[1:]}
}

// FromDecl converts a document declaration into a Command.
func FromDecl(d taskstore.GateDecl) Command {
	var c Command
	if d.Program != "" {
		c = Command{Program: d.Program, Args: append([]string(nil), d.Args...)}
	} else {
		c = ParseLine(d.Line)
	}
	c.Name = d.Name
	c.Informational = d.Informational
	return c
}

// FromDecls converts every declaration.
func FromDecls(decls []taskstore.GateDecl) []Command {
	out := make([]Command, 0, len(decls))
	for _, d := range decls {
		out = append(out, FromDecl(d))
	}
	return out
}
