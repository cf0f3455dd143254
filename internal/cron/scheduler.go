// Package cron re-ingests configured web pages on cron schedules.
//
// Run state is persisted as JSON next to the config:
//
//	{ "version": 1, "jobs": [ { "name":"…", "url":"…", "expr":"0 6 * * *",
//	    "state":{"nextRunAtMs":…,"lastRunAtMs":…,"lastStatus":"ok","notes":4} } ] }
package cron

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	robfigcron "github.com/robfig/cron/v3"
)

// Source is one page to keep ingested.
type Source struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Expr string `json:"expr"`         // five-field cron expression
	TZ   string `json:"tz,omitempty"` // IANA timezone, local when empty
}

type JobState struct {
	NextRunAtMs *int64  `json:"nextRunAtMs,omitempty"`
	LastRunAtMs *int64  `json:"lastRunAtMs,omitempty"`
	LastStatus  *string `json:"lastStatus,omitempty"`
	LastError   *string `json:"lastError,omitempty"`
	Notes       int     `json:"notes"`
}

type Job struct {
	Source
	State JobState `json:"state"`
}

type stateFile struct {
	Version int   `json:"version"`
	Jobs    []Job `json:"jobs"`
}

// IngestFunc fetches url into the note store and reports how many notes it
// wrote.
type IngestFunc func(ctx context.Context, url string) (int, error)

var parser = robfigcron.NewParser(
	robfigcron.Minute | robfigcron.Hour | robfigcron.Dom | robfigcron.Month | robfigcron.Dow,
)

// Scheduler runs an IngestFunc for every Source on its schedule.
type Scheduler struct {
	statePath string
	ingest    IngestFunc
	robfig    *robfigcron.Cron

	mu   sync.Mutex
	jobs []Job
}

// NewScheduler validates sources and restores their run state from
// statePath. Sources without a name are named after their URL.
func NewScheduler(statePath string, sources []Source, ingest IngestFunc) (*Scheduler, error) {
	s := &Scheduler{
		statePath: statePath,
		ingest:    ingest,
		robfig:    robfigcron.New(),
	}

	seen := make(map[string]bool, len(sources))
	for _, src := range sources {
		src.URL = strings.TrimSpace(src.URL)
		if src.URL == "" {
			return nil, errors.New("cron: source without url")
		}
		if src.Name == "" {
			src.Name = src.URL
		}
		if seen[src.Name] {
			return nil, fmt.Errorf("cron: duplicate source %q", src.Name)
		}
		seen[src.Name] = true
		if _, err := schedule(src); err != nil {
			return nil, fmt.Errorf("cron: source %q: %w", src.Name, err)
		}
		s.jobs = append(s.jobs, Job{Source: src})
	}

	if err := s.restore(); err != nil {
		slog.Warn("cron: state not restored", "path", statePath, "err", err)
	}
	s.recomputeNextRunsLocked()
	return s, nil
}

// Start arms every job and blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	for _, j := range s.jobs {
		sched, _ := schedule(j.Source)
		name := j.Name
		s.robfig.Schedule(sched, robfigcron.FuncJob(func() { s.run(ctx, name) }))
	}
	s.saveLocked()
	n := len(s.jobs)
	s.mu.Unlock()

	s.robfig.Start()
	slog.Info("cron: started", "jobs", n)

	<-ctx.Done()
	<-s.robfig.Stop().Done()
	return ctx.Err()
}

// Jobs returns every job ordered by next run.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := append([]Job(nil), s.jobs...)
	sort.SliceStable(jobs, func(i, k int) bool {
		return nextOrMax(jobs[i]) < nextOrMax(jobs[k])
	})
	return jobs
}

// RunNow ingests the named job immediately. It reports false for unknown
// names.
func (s *Scheduler) RunNow(ctx context.Context, name string) bool {
	s.mu.Lock()
	found := s.indexLocked(name) >= 0
	s.mu.Unlock()
	if !found {
		return false
	}
	s.run(ctx, name)
	return true
}

func (s *Scheduler) run(ctx context.Context, name string) {
	s.mu.Lock()
	i := s.indexLocked(name)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	url := s.jobs[i].URL
	s.mu.Unlock()

	startMs := time.Now().UnixMilli()
	slog.Info("cron: ingesting", "job", name, "url", url)

	status := "ok"
	var lastErr *string
	n, err := s.ingest(ctx, url)
	if err != nil {
		status = "error"
		e := err.Error()
		lastErr = &e
		slog.Error("cron: ingest failed", "job", name, "err", err)
	} else {
		slog.Info("cron: ingested", "job", name, "notes", n)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i = s.indexLocked(name); i < 0 {
		return
	}
	st := &s.jobs[i].State
	st.LastRunAtMs = &startMs
	st.LastStatus = &status
	st.LastError = lastErr
	if err == nil {
		st.Notes = n
	}
	st.NextRunAtMs = computeNextRun(s.jobs[i].Source, time.Now())
	s.saveLocked()
}

func (s *Scheduler) indexLocked(name string) int {
	for i := range s.jobs {
		if s.jobs[i].Name == name {
			return i
		}
	}
	return -1
}

func (s *Scheduler) recomputeNextRunsLocked() {
	now := time.Now()
	for i := range s.jobs {
		s.jobs[i].State.NextRunAtMs = computeNextRun(s.jobs[i].Source, now)
	}
}

// ─── persistence ───

// restore copies saved run state onto jobs that still exist with the same URL.
func (s *Scheduler) restore() error {
	data, err := os.ReadFile(s.statePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var st stateFile
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	saved := make(map[string]Job, len(st.Jobs))
	for _, j := range st.Jobs {
		saved[j.Name] = j
	}
	for i := range s.jobs {
		if old, ok := saved[s.jobs[i].Name]; ok && old.URL == s.jobs[i].URL {
			s.jobs[i].State = old.State
		}
	}
	return nil
}

func (s *Scheduler) saveLocked() {
	if s.statePath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.statePath), 0o755); err != nil {
		slog.Warn("cron: mkdir failed", "err", err)
		return
	}
	data, err := json.MarshalIndent(stateFile{Version: 1, Jobs: s.jobs}, "", "  ")
	if err != nil {
		slog.Warn("cron: marshal failed", "err", err)
		return
	}
	if err := os.WriteFile(s.statePath, data, 0o644); err != nil {
		slog.Warn("cron: write failed", "err", err)
	}
}

// ─── schedules ───

func schedule(src Source) (robfigcron.Schedule, error) {
	loc := time.Local
	if src.TZ != "" {
		l, err := time.LoadLocation(src.TZ)
		if err != nil {
			return nil, fmt.Errorf("timezone %q: %w", src.TZ, err)
		}
		loc = l
	}
	sched, err := parser.Parse(src.Expr)
	if err != nil {
		return nil, fmt.Errorf("expression %q: %w", src.Expr, err)
	}
	return locSchedule{inner: sched, loc: loc}, nil
}

func computeNextRun(src Source, now time.Time) *int64 {
	sched, err := schedule(src)
	if err != nil {
		return nil
	}
	v := sched.Next(now).UnixMilli()
	return &v
}

func nextOrMax(j Job) int64 {
	if j.State.NextRunAtMs == nil {
		return int64(^uint64(0) >> 1)
	}
	return *j.State.NextRunAtMs
}

// locSchedule evaluates a schedule in a fixed location.
type locSchedule struct {
	inner robfigcron.Schedule
	loc   *time.Location
}

func (l locSchedule) Next(t time.Time) time.Time {
	return l.inner.Next(t.In(l.loc))
}
