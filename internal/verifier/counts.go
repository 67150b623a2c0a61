package verifier

import (
	"regexp"
	"strconv"
	"strings"
)

// Counts is the number of passed and failed tests reported in output.
type Counts struct {
	Passed int
	Failed int
}

var (
	passedCount = regexp.MustCompile(`(?i)\b(\d+)\s+(passed|passing|pass)\b`)
	failedCount = regexp.MustCompile(`(?i)\b(\d+)\s+(failed|failing|failures?)\b`)
	goPass      = regexp.MustCompile(`(?m)^\s*--- PASS:`)
	goFail      = regexp.MustCompile(`(?m)^\s*--- FAIL:`)
)

// ParseCounts reads pass/fail totals from common runner summaries
// (Playwright, Cypress, Jest, pytest, go test -v). When a summary appears
// more than once the largest figure wins.
func ParseCounts(output string) Counts {
	var c Counts
	for _, m := range passedCount.FindAllStringSubmatch(output, -1) {
		c.Passed = max(c.Passed, atoi(m[1]))
	}
	for _, m := range failedCount.FindAllStringSubmatch(output, -1) {
		c.Failed = max(c.Failed, atoi(m[1]))
	}
	c.Passed = max(c.Passed, len(goPass.FindAllString(output, -1)))
	c.Failed = max(c.Failed, len(goFail.FindAllString(output, -1)))
	return c
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
