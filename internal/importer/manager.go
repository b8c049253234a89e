package importer

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"perfdash-backend/config"
	"perfdash-backend/internal/jobs"
	"perfdash-backend/internal/logger"
	"perfdash-backend/internal/metrics"
	"perfdash-backend/internal/notification"
	"perfdash-backend/internal/parse"
)

// KindImport is the task kind of an import run.
const KindImport = "import.run"

// Manager keeps the wizard sessions. Idle sessions expire after the
// configured TTL and any import they were running is cancelled.
type Manager struct {
	sessions *cache.Cache
	runner   *jobs.Runner
	cfg      config.ImportConfig
	delay    time.Duration
	notifier notification.Notifier
	metrics  *metrics.Metrics
	log      *logger.Logger
	now      func() time.Time
}

func NewManager(cfg config.ImportConfig, delay time.Duration, runner *jobs.Runner, notifier notification.Notifier, m *metrics.Metrics, log *logger.Logger) *Manager {
	if notifier == nil {
		notifier = notification.Nop{}
	}
	mgr := &Manager{
		sessions: cache.New(cfg.SessionTTL, cfg.SessionTTL/2+time.Second),
		runner:   runner,
		cfg:      cfg,
		delay:    delay,
		notifier: notifier,
		metrics:  m,
		log:      log.With("component", "importer"),
		now:      time.Now,
	}
	mgr.sessions.OnEvicted(func(id string, v interface{}) {
		if task := v.(*Session).reset(); task != nil {
			task.Cancel()
		}
		mgr.log.Debug("import session expired", "session", id)
	})
	return mgr
}

// Fields lists the destination fields of the wizard.
func (m *Manager) Fields() []parse.SystemField {
	return parse.SystemFields()
}

// Create starts an empty session.
func (m *Manager) Create() Snapshot {
	s := newSession(uuid.NewString(), m.now().UTC())
	m.sessions.SetDefault(s.ID, s)
	m.log.Debug("import session created", "session", s.ID)
	return s.snapshot(m.cfg.PreviewRows)
}

func (m *Manager) session(id string) (*Session, error) {
	v, ok := m.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s := v.(*Session)
	// Touch to extend the idle deadline.
	m.sessions.SetDefault(id, s)
	return s, nil
}

// Get returns the current view of a session.
func (m *Manager) Get(id string) (Snapshot, error) {
	s, err := m.session(id)
	if err != nil {
		return Snapshot{}, err
	}
	return s.snapshot(m.cfg.PreviewRows), nil
}

// MaxFileBytes is the largest accepted upload.
func (m *Manager) MaxFileBytes() int64 {
	return m.cfg.MaxFileBytes
}

// Load reads an uploaded CSV into the session.
func (m *Manager) Load(id, fileName string, r io.Reader) (Snapshot, error) {
	s, err := m.session(id)
	if err != nil {
		return Snapshot{}, err
	}
	rows, err := s.load(fileName, r, m.cfg.MaxFileBytes)
	if err != nil {
		m.log.Info("import file rejected", "session", id, "file", fileName, "error", err)
		return Snapshot{}, err
	}
	m.log.Info("import file loaded", "session", id, "file", fileName, "rows", rows)
	return s.snapshot(m.cfg.PreviewRows), nil
}

// UpdateMapping assigns a CSV column to a system field.
func (m *Manager) UpdateMapping(id string, field parse.Field, column string) (Snapshot, error) {
	s, err := m.session(id)
	if err != nil {
		return Snapshot{}, err
	}
	if err := s.updateMapping(field, column); err != nil {
		return Snapshot{}, err
	}
	return s.snapshot(m.cfg.PreviewRows), nil
}

// Import validates the mapping and schedules the import. The session is in
// the importing state when Import returns and moves to resulted once the
// task fires.
func (m *Manager) Import(id string) (Snapshot, *jobs.Task, error) {
	s, err := m.session(id)
	if err != nil {
		return Snapshot{}, nil, err
	}
	gen, table, rules, err := s.beginImport()
	if err != nil {
		return Snapshot{}, nil, err
	}

	task, err := m.runner.Schedule(KindImport, m.delay, func(ctx context.Context) (any, error) {
		return m.run(s, gen, table, rules)
	}, jobs.WithSubject(id), jobs.OnCancel(func() { s.abortImport(gen) }))
	if err != nil {
		s.abortImport(gen)
		return Snapshot{}, nil, fmt.Errorf("schedule import: %w", err)
	}
	s.attach(gen, task)

	m.log.Info("import started", "session", id, "task", task.ID, "rows", len(table.Rows))
	return s.snapshot(m.cfg.PreviewRows), task, nil
}

func (m *Manager) run(s *Session, gen int, table parse.Table, rules []Rule) (Result, error) {
	res := Tally(table, rules)
	if !s.finishImport(gen, res) {
		return res, fmt.Errorf("%w: session was reset", ErrInvalidState)
	}
	m.metrics.ImportRows(res.Success, res.Errors, res.Warnings)
	m.log.Info("import finished", "session", s.ID, "total", res.Total, "success", res.Success, "errors", res.Errors, "warnings", res.Warnings)
	m.notifier.Notify(notification.Notice{
		Title: "Import finished",
		Body:  fmt.Sprintf("%d records imported successfully.", res.Success),
		Tag:   "import:" + s.ID,
	})
	return res, nil
}

// Reset returns the session to the empty state, cancelling a running import.
func (m *Manager) Reset(id string) (Snapshot, error) {
	s, err := m.session(id)
	if err != nil {
		return Snapshot{}, err
	}
	if task := s.reset(); task != nil {
		task.Cancel()
	}
	return s.snapshot(m.cfg.PreviewRows), nil
}

// Delete drops the session. Deleting an unknown session is not an error.
func (m *Manager) Delete(id string) {
	m.sessions.Delete(id)
}
