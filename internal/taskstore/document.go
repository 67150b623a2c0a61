package taskstore

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// RunStatus is the loop state recorded in the document header.
type RunStatus string

// Header status values.
const (
	RunStatusIdle          RunStatus = "idle"
	RunStatusRunning       RunStatus = "running"
	RunStatusCompleted     RunStatus = "completed"
	RunStatusBlocked       RunStatus = "blocked"
	RunStatusMaxIterations RunStatus = "max_iterations"
	RunStatusShutdown      RunStatus = "shutdown"
	RunStatusAborted       RunStatus = "aborted"
)

var validRunStatuses = map[RunStatus]bool{
	RunStatusIdle:          true,
	RunStatusRunning:       true,
	RunStatusCompleted:     true,
	RunStatusBlocked:       true,
	RunStatusMaxIterations: true,
	RunStatusShutdown:      true,
	RunStatusAborted:       true,
}

// IsValid returns true if the status is a known header value.
func (s RunStatus) IsValid() bool {
	return validRunStatuses[s]
}

// GateDecl declares one gate command. In YAML it is either a plain string
// ("go test ./...") or a mapping with program/args.
type GateDecl struct {
	Name          string   `yaml:"name,omitempty"`
	Program       string   `yaml:"program,omitempty"`
	Args          []string `yaml:"args,omitempty"`
	Informational bool     `yaml:"informational,omitempty"`

	// Line is the command as written in a fenced block or a YAML scalar.
	Line string `yaml:"run,omitempty"`
}

type gateDeclFields GateDecl

// UnmarshalYAML accepts a scalar command line or a mapping.
func (g *GateDecl) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*g = GateDecl{Line: strings.TrimSpace(value.Value)}
		return nil
	}
	var f gateDeclFields
	if err := value.Decode(&f); err != nil {
		return err
	}
	*g = GateDecl(f)
	return nil
}

// MarshalYAML writes bare command lines back as scalars.
func (g GateDecl) MarshalYAML() (any, error) {
	if g.Line != "" && g.Program == "" && g.Name == "" && !g.Informational {
		return g.Line, nil
	}
	return gateDeclFields(g), nil
}

// String renders the declaration as a command line.
func (g GateDecl) String() string {
	if g.Line != "" {
		return g.Line
	}
	return strings.TrimSpace(g.Program + " " + strings.Join(g.Args, " "))
}

// VerificationDecl declares the completion verifier stages.
type VerificationDecl struct {
	Services  []GateDecl `yaml:"services,omitempty"`
	Bootstrap []GateDecl `yaml:"bootstrap,omitempty"`
	Test      []GateDecl `yaml:"test,omitempty"`
	E2E       []GateDecl `yaml:"e2e,omitempty"`
	Build     []GateDecl `yaml:"build,omitempty"`
}

// Header is the YAML front matter of the task-list document.
type Header struct {
	Status       RunStatus         `yaml:"status"`
	Iteration    int               `yaml:"iteration"`
	Spec         string            `yaml:"spec,omitempty"`
	Created      time.Time         `yaml:"created,omitempty"`
	CreatedBy    string            `yaml:"created_by,omitempty"`
	PreviewURL   string            `yaml:"preview_url,omitempty"`
	Gates        []GateDecl        `yaml:"gates,omitempty"`
	Verification *VerificationDecl `yaml:"verification,omitempty"`
	Extra        map[string]any    `yaml:",inline"`
}

// Item is a checklist entry outside the task list.
type Item struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// Section is an unrecognized level-2 section kept verbatim.
type Section struct {
	Title string
	Body  string
}

// Document is the parsed task-list document.
type Document struct {
	Header       Header
	Title        string
	Intro        string
	Requirements []Item
	Tasks        []*Task
	Gates        []GateDecl
	// GateNotes are prose bullets under Quality Gates. They are kept but
	// never run.
	GateNotes    []string
	ExitCriteria []Item
	Extra        []Section
	Notes        string
}

type section int

const (
	sectionNone section = iota
	sectionRequirements
	sectionTasks
	sectionGates
	sectionExit
	sectionNotes
	sectionOther
)

var sectionNames = map[string]section{
	"requirements":  sectionRequirements,
	"tasks":         sectionTasks,
	"task list":     sectionTasks,
	"quality gates": sectionGates,
	"gates":         sectionGates,
	"exit criteria": sectionExit,
	"notes":         sectionNotes,
}

var bucketNames = map[string]TaskStatus{
	"in progress": StatusInProgress,
	"pending":     StatusPending,
	"todo":        StatusPending,
	"blocked":     StatusBlocked,
	"completed":   StatusCompleted,
	"done":        StatusCompleted,
}

var (
	checkboxRe = regexp.MustCompile(`^\[([ xX])\]\s*(.*)$`)
	gateSpanRe = regexp.MustCompile("^`([^`]+)`$")
	taskLineRe = regexp.MustCompile(`^\*{0,2}([A-Za-z][A-Za-z0-9_.-]*)\*{0,2}:\*{0,2}\s+(.+)$`)
	taskNumRe  = regexp.MustCompile(`^T(\d+)$`)
)

var markdown = goldmark.New()

// Parse parses a task-list document.
func Parse(data []byte) (*Document, error) {
	body, front := splitFrontmatter(data)

	doc := &Document{}
	if front != nil {
		if err := yaml.Unmarshal(front, &doc.Header); err != nil {
			return nil, &ValidationError{Reason: fmt.Sprintf("invalid header: %v", err)}
		}
	}
	if doc.Header.Status == "" {
		doc.Header.Status = RunStatusIdle
	}

	root := markdown.Parser().Parse(text.NewReader(body))
	p := &docParser{src: body, doc: doc}
	p.parse(root)
	doc.assignMissingIDs()

	return doc, nil
}

// splitFrontmatter separates a leading "---" YAML block from the body.
func splitFrontmatter(content []byte) ([]byte, []byte) {
	lines := bytes.Split(content, []byte("\n"))
	if len(lines) < 2 || !bytes.Equal(bytes.TrimSpace(lines[0]), []byte("---")) {
		return content, nil
	}
	for i := 1; i < len(lines); i++ {
		if bytes.Equal(bytes.TrimSpace(lines[i]), []byte("---")) {
			return bytes.Join(lines[i+1:], []byte("\n")), bytes.Join(lines[1:i], []byte("\n"))
		}
	}
	return content, nil
}

type docParser struct {
	src []byte
	doc *Document

	section       section
	bucket        TaskStatus
	informational bool
	order         int

	// raw capture of Intro, Notes and unknown sections
	rawStart int
	rawKind  section
	rawTitle string
	seenH2   bool
}

func (p *docParser) parse(root ast.Node) {
	p.rawStart = -1
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			p.heading(node)
		case *ast.List:
			p.list(node)
		case *ast.FencedCodeBlock:
			p.fenced(node)
		}
	}
	p.closeRaw(len(p.src))
}

func (p *docParser) heading(h *ast.Heading) {
	title := nodeText(h, p.src)

	if h.Level > 2 {
		switch p.section {
		case sectionTasks:
			if status, ok := bucketNames[normalizeTitle(title)]; ok {
				p.bucket = status
			}
		case sectionGates:
			p.informational = isInformational(title)
		}
		return
	}

	start := headingLineStart(h, p.src)
	p.closeRaw(start)
	contentStart := lineEnd(p.src, start)

	if h.Level == 1 && !p.seenH2 && p.doc.Title == "" {
		p.doc.Title = title
		p.section = sectionNone
		p.openRaw(sectionNone, "", contentStart)
		return
	}

	p.seenH2 = true
	p.bucket = ""
	p.informational = false

	sec, ok := sectionNames[normalizeTitle(title)]
	if !ok {
		sec = sectionOther
	}
	p.section = sec
	if sec == sectionNotes || sec == sectionOther {
		p.openRaw(sec, title, contentStart)
	}
}

func (p *docParser) openRaw(kind section, title string, start int) {
	p.rawKind = kind
	p.rawTitle = title
	p.rawStart = start
}

func (p *docParser) closeRaw(end int) {
	if p.rawStart < 0 {
		return
	}
	if end < p.rawStart {
		end = p.rawStart
	}
	body := strings.TrimSpace(string(p.src[p.rawStart:end]))
	switch p.rawKind {
	case sectionNone:
		p.doc.Intro = body
	case sectionNotes:
		if p.doc.Notes != "" && body != "" {
			p.doc.Notes += "\n\n"
		}
		p.doc.Notes += body
	case sectionOther:
		p.doc.Extra = append(p.doc.Extra, Section{Title: p.rawTitle, Body: body})
	}
	p.rawStart = -1
}

func (p *docParser) list(l *ast.List) {
	for li := l.FirstChild(); li != nil; li = li.NextSibling() {
		raw := listItemText(li, p.src)
		if raw == "" {
			continue
		}
		done := false
		if m := checkboxRe.FindStringSubmatch(raw); m != nil {
			done = m[1] != " "
			raw = strings.TrimSpace(m[2])
		}

		switch p.section {
		case sectionRequirements:
			p.doc.Requirements = append(p.doc.Requirements, Item{Text: raw, Done: done})
		case sectionExit:
			p.doc.ExitCriteria = append(p.doc.ExitCriteria, Item{Text: raw, Done: done})
		case sectionTasks:
			p.task(raw, done)
		case sectionGates:
			// Only a bullet that is wholly one code span declares a gate.
			if m := gateSpanRe.FindStringSubmatch(raw); m != nil && strings.TrimSpace(m[1]) != "" {
				p.doc.Gates = append(p.doc.Gates, GateDecl{Line: strings.TrimSpace(m[1]), Informational: p.informational})
				continue
			}
			p.doc.GateNotes = append(p.doc.GateNotes, raw)
		}
	}
}

func (p *docParser) task(raw string, done bool) {
	t := &Task{Order: p.order}
	p.order++

	if m := taskLineRe.FindStringSubmatch(raw); m != nil {
		t.ID = m[1]
		t.Description = strings.TrimSpace(m[2])
	} else {
		t.Description = raw
	}

	switch {
	case done:
		t.Status = StatusCompleted
	case p.bucket != "":
		t.Status = p.bucket
	default:
		t.Status = StatusPending
	}
	p.doc.Tasks = append(p.doc.Tasks, t)
}

func (p *docParser) fenced(f *ast.FencedCodeBlock) {
	info := ""
	if f.Info != nil {
		info = string(f.Info.Segment.Value(p.src))
	}
	fields := strings.Fields(strings.ToLower(info))

	isGateBlock := len(fields) > 0 && (fields[0] == "gate" || fields[0] == "gates")
	if p.section == sectionGates && len(fields) > 0 {
		switch fields[0] {
		case "sh", "bash", "shell", "text", "console":
			isGateBlock = true
		}
	}
	if p.section == sectionGates && len(fields) == 0 {
		isGateBlock = true
	}
	if !isGateBlock {
		return
	}

	informational := p.informational || isInformational(info)
	lines := f.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		line := strings.TrimSpace(string(seg.Value(p.src)))
		line = strings.TrimSpace(strings.TrimPrefix(line, "$ "))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p.doc.Gates = append(p.doc.Gates, GateDecl{Line: line, Informational: informational})
	}
}

func isInformational(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "informational") || strings.Contains(s, "non-blocking")
}

func normalizeTitle(title string) string {
	title = strings.ToLower(strings.TrimSpace(title))
	title = strings.TrimRight(title, ":")
	return strings.TrimSpace(title)
}

func nodeText(n ast.Node, src []byte) string {
	lines := n.Lines()
	if lines.Len() == 0 {
		return ""
	}
	parts := make([]string, 0, lines.Len())
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		parts = append(parts, strings.TrimSpace(string(seg.Value(src))))
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func listItemText(li ast.Node, src []byte) string {
	for c := li.FirstChild(); c != nil; c = c.NextSibling() {
		if _, ok := c.(*ast.List); ok {
			continue
		}
		if t := nodeText(c, src); t != "" {
			return t
		}
	}
	return ""
}

func headingLineStart(h *ast.Heading, src []byte) int {
	lines := h.Lines()
	if lines.Len() == 0 {
		return 0
	}
	return lineStart(src, lines.At(0).Start)
}

func lineStart(src []byte, pos int) int {
	if pos > len(src) {
		pos = len(src)
	}
	return bytes.LastIndexByte(src[:pos], '\n') + 1
}

func lineEnd(src []byte, pos int) int {
	i := bytes.IndexByte(src[pos:], '\n')
	if i < 0 {
		return len(src)
	}
	return pos + i + 1
}

func (d *Document) assignMissingIDs() {
	for _, t := range d.Tasks {
		if t.ID == "" {
			t.ID = d.nextID()
		}
	}
}

func (d *Document) nextID() string {
	highest := 0
	for _, t := range d.Tasks {
		if m := taskNumRe.FindStringSubmatch(t.ID); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > highest {
				highest = n
			}
		}
	}
	return "T" + strconv.Itoa(highest+1)
}

// Task returns the task with the given ID.
func (d *Document) Task(id string) (*Task, error) {
	for _, t := range d.Tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, &NotFoundError{ID: id}
}

// InProgress returns the task currently in progress, or nil.
func (d *Document) InProgress() *Task {
	for _, t := range d.Tasks {
		if t.Status == StatusInProgress {
			return t
		}
	}
	return nil
}

// Next returns the in-progress task, else the first pending task in
// document order, else nil.
func (d *Document) Next() *Task {
	if t := d.InProgress(); t != nil {
		return t
	}
	var next *Task
	for _, t := range d.Tasks {
		if t.Status != StatusPending {
			continue
		}
		if next == nil || t.Order < next.Order {
			next = t
		}
	}
	return next
}

// Counts returns the number of tasks per status.
func (d *Document) Counts() map[TaskStatus]int {
	counts := make(map[TaskStatus]int, len(validStatuses))
	for _, t := range d.Tasks {
		counts[t.Status]++
	}
	return counts
}

// HasOpen reports whether any task is pending or in progress.
func (d *Document) HasOpen() bool {
	for _, t := range d.Tasks {
		if t.Status == StatusPending || t.Status == StatusInProgress {
			return true
		}
	}
	return false
}

// AllCompleted reports whether there is at least one task and every task is completed.
func (d *Document) AllCompleted() bool {
	if len(d.Tasks) == 0 {
		return false
	}
	for _, t := range d.Tasks {
		if t.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// SetStatus transitions a task through the task state machine.
func (d *Document) SetStatus(id string, to TaskStatus) error {
	return Transition(d.Tasks, id, to)
}

// AddTask appends a pending task and returns it.
func (d *Document) AddTask(description string) *Task {
	order := 0
	for _, t := range d.Tasks {
		if t.Order >= order {
			order = t.Order + 1
		}
	}
	t := &Task{
		ID:          d.nextID(),
		Description: strings.TrimSpace(description),
		Status:      StatusPending,
		Order:       order,
	}
	d.Tasks = append(d.Tasks, t)
	return t
}

// GateDecls returns header gates followed by gates declared in the body.
func (d *Document) GateDecls() []GateDecl {
	out := make([]GateDecl, 0, len(d.Header.Gates)+len(d.Gates))
	out = append(out, d.Header.Gates...)
	out = append(out, d.Gates...)
	return out
}

// Clone returns a deep copy of the task slice and a shallow copy of the rest.
func (d *Document) Clone() *Document {
	c := *d
	c.Tasks = make([]*Task, len(d.Tasks))
	for i, t := range d.Tasks {
		tc := *t
		c.Tasks[i] = &tc
	}
	return &c
}

var bucketOrder = []struct {
	title  string
	status TaskStatus
}{
	{"In Progress", StatusInProgress},
	{"Pending", StatusPending},
	{"Blocked", StatusBlocked},
	{"Completed", StatusCompleted},
}

// Render serializes the document in its canonical layout.
func (d *Document) Render() ([]byte, error) {
	var b bytes.Buffer

	header, err := yaml.Marshal(&d.Header)
	if err != nil {
		return nil, fmt.Errorf("marshaling header: %w", err)
	}
	b.WriteString("---\n")
	b.Write(header)
	b.WriteString("---\n\n")

	if d.Title != "" {
		_, _ = fmt.Fprintf(&b, "# %s\n\n", d.Title)
	}
	if intro := strings.TrimSpace(d.Intro); intro != "" {
		b.WriteString(intro)
		b.WriteString("\n\n")
	}

	writeChecklist(&b, "Requirements", d.Requirements)

	b.WriteString("## Tasks\n\n")
	tasks := make([]*Task, len(d.Tasks))
	copy(tasks, d.Tasks)
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Order < tasks[j].Order })
	for _, bucket := range bucketOrder {
		_, _ = fmt.Fprintf(&b, "### %s\n\n", bucket.title)
		wrote := false
		for _, t := range tasks {
			if t.Status != bucket.status {
				continue
			}
			box := " "
			if t.Status == StatusCompleted {
				box = "x"
			}
			_, _ = fmt.Fprintf(&b, "- [%s] %s: %s\n", box, t.ID, t.Description)
			wrote = true
		}
		if wrote {
			b.WriteString("\n")
		}
	}

	b.WriteString("## Quality Gates\n\n")
	for _, n := range d.GateNotes {
		_, _ = fmt.Fprintf(&b, "- %s\n", n)
	}
	if len(d.GateNotes) > 0 {
		b.WriteString("\n")
	}
	writeGateBlock(&b, "gate", d.Gates, false)
	writeGateBlock(&b, "gate informational", d.Gates, true)

	writeChecklist(&b, "Exit Criteria", d.ExitCriteria)

	for _, s := range d.Extra {
		_, _ = fmt.Fprintf(&b, "## %s\n\n", s.Title)
		if body := strings.TrimSpace(s.Body); body != "" {
			b.WriteString(body)
			b.WriteString("\n\n")
		}
	}

	b.WriteString("## Notes\n")
	if notes := strings.TrimSpace(d.Notes); notes != "" {
		b.WriteString("\n")
		b.WriteString(notes)
		b.WriteString("\n")
	}

	return b.Bytes(), nil
}

func writeChecklist(b *bytes.Buffer, title string, items []Item) {
	_, _ = fmt.Fprintf(b, "## %s\n\n", title)
	for _, it := range items {
		box := " "
		if it.Done {
			box = "x"
		}
		_, _ = fmt.Fprintf(b, "- [%s] %s\n", box, it.Text)
	}
	if len(items) > 0 {
		b.WriteString("\n")
	}
}

func writeGateBlock(b *bytes.Buffer, info string, gates []GateDecl, informational bool) {
	var lines []string
	for _, g := range gates {
		if g.Informational == informational {
			lines = append(lines, g.String())
		}
	}
	if len(lines) == 0 {
		return
	}
	_, _ = fmt.Fprintf(b, "```%s\n", info)
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\n")
	}
	b.WriteString("```\n\n")
}
