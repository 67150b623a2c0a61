package reporter

import (
	"fmt"
	"strings"

	"github.com/yarlson/ralph-gates/internal/gate"
)

// FormatGateReport formats the result of a single gate run.
func FormatGateReport(report gate.Report, colorize bool) string {
	p := newPalette(colorize)
	var sb strings.Builder

	sb.WriteString(p.title.Sprint("## Quality Gates") + "\n\n")
	if report.NoGates {
		sb.WriteString(p.warn.Sprint("No gates declared and none discovered.") + "\n")
		return sb.String()
	}
	if report.Discovered {
		sb.WriteString(p.subtle.Sprint("No gates declared; using discovered gates.") + "\n\n")
	}

	for _, res := range report.Results {
		mark := p.good.Sprint("PASS")
		switch {
		case res.Unsafe:
			mark = p.bad.Sprint("UNSAFE")
		case !res.Passed && res.Informational:
			mark = p.warn.Sprint("WARN")
		case !res.Passed:
			mark = p.bad.Sprint("FAIL")
		}
		line := fmt.Sprintf("%s %s", mark, res.Command)
		if res.Informational {
			line += p.subtle.Sprint(" (informational)")
		}
		if res.Duration > 0 {
			line += p.subtle.Sprintf(" [%s]", formatDuration(res.Duration))
		}
		sb.WriteString(line + "\n")
		if !res.Passed && res.Output != "" {
			for _, l := range strings.Split(strings.TrimRight(res.Output, "\n"), "\n") {
				sb.WriteString("    " + l + "\n")
			}
		}
	}
	for _, w := range report.Warnings {
		sb.WriteString(p.warn.Sprint("warning: "+w) + "\n")
	}

	sb.WriteString("\n")
	if report.Passed() {
		sb.WriteString(p.good.Sprint("All blocking gates passed") + "\n")
	} else {
		_, _ = fmt.Fprintf(&sb, "%s\n", p.bad.Sprintf("%d blocking gate(s) failed", len(report.BlockingFailures())))
	}
	return sb.String()
}
