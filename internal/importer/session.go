package importer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"perfdash-backend/internal/jobs"
	"perfdash-backend/internal/parse"
)

var (
	ErrInvalidFileType   = errors.New("file must be a .csv file")
	ErrFileTooLarge      = errors.New("file is too large")
	ErrMalformedFile     = errors.New("malformed csv file")
	ErrIncompleteMapping = errors.New("every required field must be mapped")
	ErrInvalidState      = errors.New("operation not allowed in the current state")
	ErrUnknownField      = errors.New("unknown system field")
	ErrUnknownColumn     = errors.New("column not present in the file")
	ErrSessionNotFound   = errors.New("import session not found")
)

// State is a step of the import wizard.
type State string

const (
	StateEmpty     State = "empty"
	StateLoaded    State = "loaded"
	StateMapped    State = "mapped"
	StateImporting State = "importing"
	StateResulted  State = "resulted"
)

// Rule maps a system field to a CSV column. An empty column means unmapped.
type Rule struct {
	SystemField parse.Field `json:"systemField"`
	Label       string      `json:"label"`
	CSVColumn   string      `json:"csvColumn"`
	Required    bool        `json:"required"`
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	ID        string              `json:"id"`
	State     State               `json:"state"`
	FileName  string              `json:"fileName,omitempty"`
	RowCount  int                 `json:"rowCount"`
	Columns   []parse.Column      `json:"columns"`
	Preview   []map[string]string `json:"preview"`
	Mapping   []Rule              `json:"mapping"`
	Result    *Result             `json:"result,omitempty"`
	TaskID    string              `json:"taskId,omitempty"`
	CreatedAt time.Time           `json:"createdAt"`
}

// Session is one run of the wizard. All methods are safe for concurrent use.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	state    State
	fileName string
	table    parse.Table
	rules    []Rule
	result   *Result
	task     *jobs.Task
	// gen identifies the current import attempt. Stale tasks compare unequal.
	gen int
}

func newSession(id string, now time.Time) *Session {
	return &Session{ID: id, CreatedAt: now, state: StateEmpty}
}

// State returns the current wizard step.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) snapshot(previewRows int) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:        s.ID,
		State:     s.state,
		FileName:  s.fileName,
		RowCount:  len(s.table.Rows),
		Columns:   append([]parse.Column{}, s.table.Columns...),
		Preview:   s.table.Records(previewRows),
		Mapping:   append([]Rule{}, s.rules...),
		Result:    s.result,
		CreatedAt: s.CreatedAt,
	}
	if s.task != nil {
		snap.TaskID = s.task.ID
	}
	return snap
}

// load parses an upload. A wrong extension or unreadable file leaves the
// session untouched.
func (s *Session) load(fileName string, r io.Reader, maxBytes int64) (int, error) {
	if !strings.EqualFold(filepath.Ext(fileName), ".csv") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFileType, fileName)
	}

	s.mu.Lock()
	busy := s.state == StateImporting
	s.mu.Unlock()
	if busy {
		return 0, fmt.Errorf("%w: import in progress", ErrInvalidState)
	}

	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return 0, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return 0, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, maxBytes)
	}
	table, err := parse.ReadTable(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMalformedFile, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateImporting {
		return 0, fmt.Errorf("%w: import in progress", ErrInvalidState)
	}
	s.state = StateLoaded
	s.fileName = filepath.Base(fileName)
	s.table = table
	s.rules = initialRules()
	s.result = nil
	s.task = nil
	s.gen++
	return len(table.Rows), nil
}

func initialRules() []Rule {
	fields := parse.SystemFields()
	rules := make([]Rule, len(fields))
	for i, f := range fields {
		rules[i] = Rule{SystemField: f.Key, Label: f.Label, Required: f.Required}
	}
	return rules
}

// updateMapping assigns column to field. An empty column clears the rule.
func (s *Session) updateMapping(field parse.Field, column string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateLoaded && s.state != StateMapped {
		return fmt.Errorf("%w: cannot map in state %s", ErrInvalidState, s.state)
	}
	idx := -1
	for i, r := range s.rules {
		if r.SystemField == field {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	column = strings.TrimSpace(column)
	if column != "" && s.table.Index(column) < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, column)
	}

	s.rules[idx].CSVColumn = column
	s.state = StateMapped
	return nil
}

// beginImport validates the mapping and moves to importing. It returns the
// data the import task works on.
func (s *Session) beginImport() (int, parse.Table, []Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateLoaded && s.state != StateMapped {
		return 0, parse.Table{}, nil, fmt.Errorf("%w: cannot import in state %s", ErrInvalidState, s.state)
	}
	var missing []string
	for _, r := range s.rules {
		if r.Required && r.CSVColumn == "" {
			missing = append(missing, string(r.SystemField))
		}
	}
	if len(missing) > 0 {
		return 0, parse.Table{}, nil, fmt.Errorf("%w: %s", ErrIncompleteMapping, strings.Join(missing, ", "))
	}

	s.state = StateImporting
	s.gen++
	return s.gen, s.table, append([]Rule(nil), s.rules...), nil
}

func (s *Session) attach(gen int, task *jobs.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.task = task
	}
}

// finishImport records the result of attempt gen. It reports false when the
// attempt is no longer current.
func (s *Session) finishImport(gen int, result Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.state != StateImporting {
		return false
	}
	s.state = StateResulted
	s.result = &result
	return true
}

// abortImport returns a cancelled import to the mapping step.
func (s *Session) abortImport(gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen && s.state == StateImporting {
		s.state = StateMapped
	}
}

// reset clears the session back to empty and returns the task it dropped.
func (s *Session) reset() *jobs.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	task := s.task
	s.state = StateEmpty
	s.fileName = ""
	s.table = parse.Table{}
	s.rules = nil
	s.result = nil
	s.task = nil
	s.gen++
	return task
}
