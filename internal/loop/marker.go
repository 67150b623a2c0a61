package loop

import (
	"bufio"
	"encoding/json"
	"strings"

	"github.com/yarlson/ralph-gates/internal/memory"
	"github.com/yarlson/ralph-gates/internal/prompt"
)

// HasCompletionMarker reports whether output claims that all work is done.
func HasCompletionMarker(output string) bool {
	if strings.Contains(output, prompt.CompletionMarker) {
		return true
	}
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var m struct {
			Marker string `json:"marker"`
		}
		if json.Unmarshal([]byte(line), &m) == nil && strings.EqualFold(m.Marker, "complete") {
			return true
		}
	}
	return false
}

// completedTaskIDs returns task IDs named by completed markers.
func completedTaskIDs(entries []memory.Entry) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, e := range entries {
		if e.Category != memory.CategorySuccess || e.TaskID == "" || seen[e.TaskID] {
			continue
		}
		seen[e.TaskID] = true
		ids = append(ids, e.TaskID)
	}
	return ids
}
