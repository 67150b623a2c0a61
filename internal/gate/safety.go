package gate

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

// ErrUnsafeCommand is returned when a gate command fails validation.
var ErrUnsafeCommand = errors.New("unsafe gate command")

// UnsafeCommandError wraps ErrUnsafeCommand with the rejected command and reason.
type UnsafeCommandError struct {
	Command string
	Reason  string
}

func (e *UnsafeCommandError) Error() string {
	return fmt.Sprintf("unsafe gate command %q: %s", e.Command, e.Reason)
}

func (e *UnsafeCommandError) Unwrap() error {
	return ErrUnsafeCommand
}

// DefaultAllowed is the allowlist used when none is configured. Each entry is
// a program followed by the leading arguments a command must start with; a
// bare program allows any arguments.
var DefaultAllowed = []string{
	"go build", "go vet", "go test", "gofmt", "golangci-lint run", "staticcheck",
	"npm test", "npm run", "npm ci", "pnpm test", "pnpm run", "pnpm install",
	"yarn test", "yarn run", "yarn install", "bun test", "bun run", "bun install",
	"tsc", "eslint", "prettier", "jest", "vitest", "playwright test",
	"cargo build", "cargo test", "cargo check", "cargo clippy", "cargo fmt",
	"python -m pytest", "python3 -m pytest", "pytest", "ruff check", "ruff format", "mypy",
	"uv run pytest", "poetry run pytest", "tox",
	"make", "just",
	"gradle test", "gradle build", "gradle check", "mvn test", "mvn verify", "mvn package",
	"dotnet build", "dotnet test", "swift build", "swift test",
	"bundle exec rspec", "bundle exec rake", "rake", "rspec",
	"mix test", "mix compile", "composer test", "phpunit",
}

// argPattern is the character class allowed in programs and arguments.
var argPattern = regexp.MustCompile(`^[A-Za-z0-9_./:=@%+,-]+$`)

// Policy validates gate commands before execution.
type Policy struct {
	// forms maps a program to the argument prefixes it may run with.
	forms   map[string][][]string
	workDir string
}

// NewPolicy creates a policy for the given allowlist entries. An empty
// allowlist falls back to DefaultAllowed.
func NewPolicy(allowed []string, workDir string) *Policy {
	if len(allowed) == 0 {
		allowed = DefaultAllowed
	}
	p := &Policy{
		forms:   make(map[string][][]string, len(allowed)),
		workDir: workDir,
	}
	for _, a := range allowed {
		fields := strings.Fields(a)
		if len(fields) == 0 {
			continue
		}
		p.forms[fields[0]] = append(p.forms[fields[0]], fields[1:])
	}
	return p
}

// Allowed returns true if cmd matches an allowlist entry.
func (p *Policy) Allowed(cmd Command) bool {
	for _, prefix := range p.forms[cmd.Program] {
		if len(cmd.Args) >= len(prefix) && slices.Equal(cmd.Args[:len(prefix)], prefix) {
			return true
		}
	}
	return false
}

// Check returns an *UnsafeCommandError when cmd must not run.
func (p *Policy) Check(cmd Command) error {
	line := cmd.Line()
	reject := func(reason string) error {
		return &UnsafeCommandError{Command: line, Reason: reason}
	}

	if cmd.Program == "" {
		return reject("empty command")
	}
	if strings.ContainsAny(cmd.Program, `/\`) {
		return reject("program must be a bare name, not a path")
	}
	if !argPattern.MatchString(cmd.Program) {
		return reject("program contains disallowed characters")
	}
	if _, ok := p.forms[cmd.Program]; !ok {
		return reject(fmt.Sprintf("program %q is not on the allowlist", cmd.Program))
	}
	if !p.Allowed(cmd) {
		return reject(fmt.Sprintf("%q is not an allowed form of %s", line, cmd.Program))
	}

	for _, arg := range cmd.Args {
		if !argPattern.MatchString(arg) {
			return reject(fmt.Sprintf("argument %q contains disallowed characters", arg))
		}
		if err := p.checkPath(arg); err != "" {
			return reject(err)
		}
	}
	return nil
}

// checkPath rejects arguments that point outside the working directory.
func (p *Policy) checkPath(arg string) string {
	value := arg
	if i := strings.Index(arg, "="); i >= 0 && strings.HasPrefix(arg, "-") {
		value = arg[i+1:]
	}

	for _, seg := range strings.Split(value, "/") {
		if seg == ".." {
			return fmt.Sprintf("argument %q escapes the working directory", arg)
		}
	}

	if filepath.IsAbs(value) {
		if p.workDir == "" {
			return fmt.Sprintf("argument %q is an absolute path", arg)
		}
		root, err := filepath.Abs(p.workDir)
		if err != nil {
			return fmt.Sprintf("argument %q is an absolute path", arg)
		}
		rel, err := filepath.Rel(root, filepath.Clean(value))
		if err != nil || rel == ".." || strings.HasPrefix(rel, "../") {
			return fmt.Sprintf("argument %q is outside the working directory", arg)
		}
	}
	return ""
}
