package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dostlabs/dost/internal/logging"
)

// FileStore keeps one directory per identity under a data root:
//
//	<root>/<key>/<key>-ChatLog.json       active log
//	<root>/<key>/Old/<key>-ChatLog.json   archive
//	<root>/<key>/<key>-Summary.txt        personal facts
//
// A missing or unparseable file reads as empty and heals on the next
// write. When the identity's directory is not writable, files land
// under a shared fallback directory instead so the system stays alive.
type FileStore struct {
	root     string
	fallback string
	cap      int
	tail     int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFileStore opens a file-backed store rooted at dir. cap and tail
// of zero pick the defaults (20/5).
func NewFileStore(dir string, capacity, tail int) (*FileStore, error) {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	if tail <= 0 || tail >= capacity {
		tail = DefaultTail
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &StorageError{Op: "init", Err: err}
	}
	return &FileStore{
		root:     dir,
		fallback: filepath.Join(dir, "fallback"),
		cap:      capacity,
		tail:     tail,
		locks:    map[string]*sync.Mutex{},
	}, nil
}

// lockFor returns the mutex serializing access to one identity.
// Different identities get independent locks.
func (s *FileStore) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *FileStore) logPath(id string) string {
	return filepath.Join(s.root, id, id+"-ChatLog.json")
}

func (s *FileStore) archivePath(id string) string {
	return filepath.Join(s.root, id, "Old", id+"-ChatLog.json")
}

func (s *FileStore) summaryPath(id string) string {
	return filepath.Join(s.root, id, id+"-Summary.txt")
}

// fallbackPath maps a primary path into the shared fallback dir.
func (s *FileStore) fallbackPath(primary string) string {
	rel, err := filepath.Rel(s.root, primary)
	if err != nil {
		rel = filepath.Base(primary)
	}
	return filepath.Join(s.fallback, rel)
}

// Append implements Store.
func (s *FileStore) Append(id string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()

	log := s.readMessages(s.logPath(id))
	log = append(log, msgs...)

	if len(log) >= s.cap {
		if err := s.rotateLocked(id, &log); err != nil {
			return err
		}
	}
	return s.writeMessages(s.logPath(id), log)
}

// rotateLocked moves everything but the recent tail into the archive,
// preserving oldest-first order. Caller holds the identity lock. The
// archive is written before the trimmed active log so a crash between
// the two can duplicate a message but never drop one.
func (s *FileStore) rotateLocked(id string, log *[]Message) error {
	keep := len(*log) - s.tail
	if keep <= 0 {
		return nil
	}
	archive := s.readMessages(s.archivePath(id))
	archive = append(archive, (*log)[:keep]...)
	if err := s.writeMessages(s.archivePath(id), archive); err != nil {
		return err
	}
	*log = append([]Message(nil), (*log)[keep:]...)
	logging.Debugf("store: rotated %d messages to archive for %s", keep, id)
	return nil
}

// Recent implements Store.
func (s *FileStore) Recent(id string, n int) ([]Message, error) {
	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()

	log := s.readMessages(s.logPath(id))
	if n > 0 && len(log) > n {
		log = log[len(log)-n:]
	}
	return log, nil
}

// Archive implements Store.
func (s *FileStore) Archive(id string) ([]Message, error) {
	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()
	return s.readMessages(s.archivePath(id)), nil
}

// Summary implements Store.
func (s *FileStore) Summary(id string) (string, error) {
	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()

	data, ok := s.readFile(s.summaryPath(id))
	if !ok {
		return "", nil
	}
	return string(data), nil
}

// AppendSummary implements Store.
func (s *FileStore) AppendSummary(id, fact string) error {
	if fact == "" {
		return nil
	}
	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()

	var text string
	if data, ok := s.readFile(s.summaryPath(id)); ok {
		text = string(data)
	}
	text += fmt.Sprintf("\n%s - %s", fact, time.Now().Format(time.RFC3339))
	return s.writeFile(s.summaryPath(id), []byte(text))
}

// readMessages loads a message file, treating anything unreadable as
// an empty log. The store self-heals by overwriting on the next write.
func (s *FileStore) readMessages(path string) []Message {
	data, ok := s.readFile(path)
	if !ok {
		return nil
	}
	var msgs []Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		logging.Warnf("store: corrupt log %s, treating as empty: %v", path, err)
		return nil
	}
	return msgs
}

func (s *FileStore) writeMessages(path string, msgs []Message) error {
	data, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return &StorageError{Op: "encode", Err: err}
	}
	return s.writeFile(path, data)
}

// readFile tries the primary path, then its fallback twin.
func (s *FileStore) readFile(path string) ([]byte, bool) {
	if data, err := os.ReadFile(path); err == nil {
		return data, true
	}
	if data, err := os.ReadFile(s.fallbackPath(path)); err == nil {
		return data, true
	}
	return nil, false
}

// writeFile writes atomically (temp file + rename) to the primary
// path, falling back to the shared directory when the primary is not
// writable. Both failing is a StorageError.
func (s *FileStore) writeFile(path string, data []byte) error {
	err := atomicWrite(path, data)
	if err == nil {
		return nil
	}
	logging.Warnf("store: write %s failed, trying fallback: %v", path, err)
	if err := atomicWrite(s.fallbackPath(path), data); err != nil {
		return &StorageError{Op: "write", Err: err}
	}
	return nil
}

func atomicWrite(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
