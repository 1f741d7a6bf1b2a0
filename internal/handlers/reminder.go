package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	cronlib "github.com/robfig/cron/v3"

	"github.com/dostlabs/dost/internal/logging"
)

// NotifyFunc delivers a due reminder back to its owner. An error
// means the delivery did not happen; the reminder stays pending.
type NotifyFunc func(identity, text string) error

// Reminder entry persisted on disk.
type ReminderEntry struct {
	ID       string    `json:"id"`
	Identity string    `json:"identity"`
	Text     string    `json:"text"`
	DueAt    time.Time `json:"dueAt"`
	Done     bool      `json:"done"`
}

var durationRe = regexp.MustCompile(`(?i)\bin\s+(\d+)\s*(second|sec|minute|min|hour|ghante|ghanta)s?\b`)

const defaultLead = time.Hour

// Reminders persists reminder entries to a JSON file and sweeps for
// due ones every minute, pushing matches through the notify callback.
type Reminders struct {
	path    string
	notify  NotifyFunc
	cron    *cronlib.Cron
	mu      sync.Mutex
	entries []ReminderEntry
}

// NewReminders loads the reminder file and registers the sweep job.
// The schedule does not run until Start; callers wire the notify
// target first, then start.
func NewReminders(path string, notify NotifyFunc) (*Reminders, error) {
	r := &Reminders{path: path, notify: notify, cron: cronlib.New()}
	if err := r.load(); err != nil {
		return nil, err
	}
	if _, err := r.cron.AddFunc("@every 1m", r.sweep); err != nil {
		return nil, err
	}
	return r, nil
}

// Start begins the sweep schedule.
func (r *Reminders) Start() {
	r.cron.Start()
}

// Stop halts the sweep schedule.
func (r *Reminders) Stop() {
	r.cron.Stop()
}

// Handle implements Handler: parse the lead time out of the request,
// persist the reminder, and confirm in kind.
func (r *Reminders) Handle(ctx context.Context, payload, id string) (string, error) {
	text := strings.TrimSpace(payload)
	if text == "" {
		return "Kiska reminder, yaar? Kuchh toh bata!", nil
	}

	lead := parseLead(text)
	entry := ReminderEntry{
		ID:       uuid.NewString(),
		Identity: id,
		Text:     text,
		DueAt:    time.Now().Add(lead),
	}

	r.mu.Lock()
	r.entries = append(r.entries, entry)
	err := r.save()
	r.mu.Unlock()
	if err != nil {
		return "", err
	}

	logging.Infof("reminder: set %s for %s at %s", entry.ID, id, entry.DueAt.Format(time.RFC3339))
	return fmt.Sprintf("Done! Yaad dila dunga %s baad: %q", humanLead(lead), text), nil
}

// Pending returns the not-yet-delivered reminders for an identity.
func (r *Reminders) Pending(identity string) []ReminderEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ReminderEntry
	for _, e := range r.entries {
		if e.Identity == identity && !e.Done {
			out = append(out, e)
		}
	}
	return out
}

// sweep delivers every due reminder. An entry is marked done only
// after its delivery succeeded; a failed delivery stays pending and
// is retried on the next sweep.
func (r *Reminders) sweep() {
	now := time.Now()

	r.mu.Lock()
	var due []ReminderEntry
	for _, e := range r.entries {
		if !e.Done && !e.DueAt.After(now) {
			due = append(due, e)
		}
	}
	r.mu.Unlock()

	if len(due) == 0 {
		return
	}

	delivered := make(map[string]bool, len(due))
	for _, e := range due {
		if r.notify != nil {
			if err := r.notify(e.Identity, fmt.Sprintf("Yaad hai na? %s", e.Text)); err != nil {
				logging.Warnf("reminder: delivery of %s to %s failed, will retry: %v", e.ID, e.Identity, err)
				continue
			}
		}
		logging.Infof("reminder: delivered %s to %s", e.ID, e.Identity)
		delivered[e.ID] = true
	}
	if len(delivered) == 0 {
		return
	}

	r.mu.Lock()
	for i := range r.entries {
		if delivered[r.entries[i].ID] {
			r.entries[i].Done = true
		}
	}
	err := r.save()
	r.mu.Unlock()
	if err != nil {
		logging.Errorf("reminder: save after sweep: %v", err)
	}
}

func (r *Reminders) load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := json.Unmarshal(data, &r.entries); err != nil {
		logging.Warnf("reminder: corrupt file %s, starting empty: %v", r.path, err)
		r.entries = nil
	}
	return nil
}

// save writes the entries atomically; callers hold the lock.
func (r *Reminders) save() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r.entries, "", "    ")
	if err != nil {
		return err
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, r.path)
}

// parseLead extracts "in N seconds/minutes/hours" from the request,
// defaulting to one hour when no time is given.
func parseLead(text string) time.Duration {
	m := durationRe.FindStringSubmatch(text)
	if m == nil {
		return defaultLead
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return defaultLead
	}
	switch strings.ToLower(m[2]) {
	case "second", "sec":
		return time.Duration(n) * time.Second
	case "minute", "min":
		return time.Duration(n) * time.Minute
	default:
		return time.Duration(n) * time.Hour
	}
}

func humanLead(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%d second", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%d minute", int(d.Minutes()))
	default:
		return fmt.Sprintf("%d ghante", int(d.Hours()))
	}
}
