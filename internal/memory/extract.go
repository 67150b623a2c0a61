package memory

import (
	"bufio"
	"encoding/json"
	"regexp"
	"strings"
)

// Marker names used by the worker output protocol.
const (
	MarkerCompleted = "completed"
	MarkerLearning  = "learning"
	MarkerPattern   = "pattern"
	MarkerFixed     = "fixed"
	MarkerBlocker   = "blocker"
)

var markerCategories = map[string]Category{
	MarkerCompleted: CategorySuccess,
	MarkerLearning:  CategoryDiscovery,
	MarkerPattern:   CategoryPattern,
	MarkerFixed:     CategoryFix,
	MarkerBlocker:   CategoryBlocker,
}

const emphasis = `(?:\*\*|__|\*|_)?`

// legacyMarker matches `LEARNING: text` with optional list bullet and
// emphasis around the keyword, e.g. `- **FIXED:** a → b`.
var legacyMarker = regexp.MustCompile(`^\s*(?:[-*+]\s+)?` + emphasis + `(COMPLETED|LEARNING|PATTERN|FIXED|BLOCKER)` + emphasis + `\s*:` + emphasis + `\s+(.+?)\s*$`)

var taskIDPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.-]*\d[A-Za-z0-9_.-]*$`)

type jsonMarker struct {
	Marker string   `json:"marker"`
	Text   string   `json:"text"`
	Task   string   `json:"task"`
	Error  string   `json:"error"`
	Fix    string   `json:"fix"`
	Files  []string `json:"files"`
}

// Extract returns one entry per recognized marker in output, in order.
// Strict JSON lines are tried first; legacy text markers are accepted as a
// fallback. Entries carry no ID, timestamp or iteration yet.
func Extract(output string) []Entry {
	var entries []Entry

	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if e, ok := parseJSONMarker(line); ok {
			entries = append(entries, e)
			continue
		}
		if e, ok := parseLegacyMarker(line); ok {
			entries = append(entries, e)
		}
	}
	return entries
}

func parseJSONMarker(line string) (Entry, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") || !strings.Contains(trimmed, `"marker"`) {
		return Entry{}, false
	}

	var m jsonMarker
	if err := json.Unmarshal([]byte(trimmed), &m); err != nil {
		return Entry{}, false
	}

	category, ok := markerCategories[strings.ToLower(m.Marker)]
	if !ok {
		return Entry{}, false
	}

	e := Entry{Category: category, Text: strings.TrimSpace(m.Text), TaskID: m.Task, Files: m.Files}
	if category == CategoryFix {
		e.Error, e.Fix = m.Error, m.Fix
		if e.Error == "" && e.Fix == "" {
			e.Error, e.Fix = splitFix(e.Text)
		}
		if e.Text == "" {
			e.Text = formatFix(e.Error, e.Fix)
		}
	}
	if category == CategorySuccess && e.TaskID == "" {
		e.TaskID = leadingTaskID(e.Text)
	}
	if e.Text == "" && e.TaskID != "" {
		e.Text = e.TaskID
	}
	if e.Text == "" {
		return Entry{}, false
	}
	return e, true
}

func parseLegacyMarker(line string) (Entry, bool) {
	m := legacyMarker.FindStringSubmatch(line)
	if m == nil {
		return Entry{}, false
	}

	text := trimEmphasis(m[2])
	if text == "" {
		return Entry{}, false
	}

	e := Entry{Category: markerCategories[strings.ToLower(m[1])], Text: text}
	switch e.Category {
	case CategoryFix:
		e.Error, e.Fix = splitFix(text)
	case CategorySuccess:
		e.TaskID = leadingTaskID(text)
	}
	return e, true
}

func trimEmphasis(s string) string {
	s = strings.TrimSpace(s)
	for _, mark := range []string{"**", "__"} {
		s = strings.TrimSuffix(strings.TrimPrefix(s, mark), mark)
	}
	return strings.TrimSpace(s)
}

// splitFix splits `error → fix` (or `->`). Text without an arrow is all fix.
func splitFix(text string) (string, string) {
	for _, arrow := range []string{"→", "->", "=>"} {
		if before, after, ok := strings.Cut(text, arrow); ok {
			return strings.TrimSpace(before), strings.TrimSpace(after)
		}
	}
	return "", strings.TrimSpace(text)
}

func formatFix(errText, fix string) string {
	if errText == "" {
		return fix
	}
	return errText + " → " + fix
}

func leadingTaskID(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	candidate := strings.TrimRight(fields[0], ":,.;")
	candidate = strings.Trim(candidate, "*_`")
	if taskIDPattern.MatchString(candidate) {
		return candidate
	}
	return ""
}
