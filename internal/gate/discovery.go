package gate

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Discover proposes gates from well-known project files in workDir. It is a
// fallback for task lists that declare no gates and returns nil when nothing
// is recognized.
func Discover(workDir string) []Command {
	var cmds []Command

	if exists(workDir, "go.mod") {
		cmds = append(cmds,
			Command{Program: "go", Args: []string{"build", "./..."}},
			Command{Program: "go", Args: []string{"vet", "./..."}},
			Command{Program: "go", Args: []string{"test", "./..."}},
		)
	}

	cmds = append(cmds, discoverNode(workDir)...)

	if exists(workDir, "Cargo.toml") {
		cmds = append(cmds,
			Command{Program: "cargo", Args: []string{"build"}},
			Command{Program: "cargo", Args: []string{"test"}},
		)
	}

	if exists(workDir, "pyproject.toml") || exists(workDir, "setup.cfg") || exists(workDir, "pytest.ini") {
		if fileContains(workDir, "pyproject.toml", "[tool.ruff") {
			cmds = append(cmds, Command{Program: "ruff", Args: []string{"check", "."}})
		}
		cmds = append(cmds, Command{Program: "pytest"})
	}

	if len(cmds) == 0 {
		for _, target := range makeTargets(workDir, "build", "lint", "test") {
			cmds = append(cmds, Command{Program: "make", Args: []string{target}})
		}
	}

	return cmds
}

const npmDefaultTest = `echo "Error: no test specified" && exit 1`

func discoverNode(workDir string) []Command {
	data, err := os.ReadFile(filepath.Join(workDir, "package.json"))
	if err != nil {
		return nil
	}
	var pkg struct {
		Scripts map[string]string `json:"scripts"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil
	}

	pm := "npm"
	switch {
	case exists(workDir, "pnpm-lock.yaml"):
		pm = "pnpm"
	case exists(workDir, "yarn.lock"):
		pm = "yarn"
	case exists(workDir, "bun.lockb"), exists(workDir, "bun.lock"):
		pm = "bun"
	}

	var cmds []Command
	for _, script := range []string{"typecheck", "lint", "test", "build"} {
		body, ok := pkg.Scripts[script]
		if !ok || strings.TrimSpace(body) == "" {
			continue
		}
		if script == "test" && strings.TrimSpace(body) == npmDefaultTest {
			continue
		}
		cmds = append(cmds, Command{Program: pm, Args: []string{"run", script}})
	}
	return cmds
}

var makeTargetRe = regexp.MustCompile(`^([A-Za-z0-9_.-]+)\s*:`)

func makeTargets(workDir string, wanted ...string) []string {
	f, err := os.Open(filepath.Join(workDir, "Makefile"))
	if err != nil {
		return nil
	}
	defer func() { _ = f.Close() }()

	found := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if m := makeTargetRe.FindStringSubmatch(scanner.Text()); m != nil {
			found[m[1]] = true
		}
	}

	var out []string
	for _, w := range wanted {
		if found[w] {
			out = append(out, w)
		}
	}
	return out
}

func exists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}

func fileContains(dir, name, needle string) bool {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return false
	}
	return strings.Contains(string(data), needle)
}
