package record

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	atomicfile "github.com/natefinch/atomic"

	"memex/internal/memexerr"
)

// pendingFileName holds the newline-delimited ids of records that have
// been persisted to disk but not yet upserted into the vector index
// (spec §4.3 IndexingDeferred branch).
const pendingFileName = ".pending-upserts"

// FileStore is the on-disk Record Store (component A). One screen_name's
// captures never collide in id with another's; within a screen_name, id
// collision at write time is a hard error (spec §3.1 invariant 2).
type FileStore struct {
	dir string

	mu sync.Mutex // serializes pending-queue rewrites
}

// NewFileStore opens (creating if absent) the record directory rootDir.
func NewFileStore(rootDir string) (*FileStore, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, memexerr.Wrap(memexerr.KindIoFailure, "create record dir", err)
	}
	return &FileStore{dir: rootDir}, nil
}

// Dir returns the store's root directory.
func (s *FileStore) Dir() string { return s.dir }

// Put writes r to disk atomically, never overwriting an existing file for
// the same id. Returns memexerr KindDuplicateID if the filename already
// exists, KindInvalidArgument if r fails validation (empty id or
// screen_name, zero timestamp).
func (s *FileStore) Put(r CaptureRecord) error {
	if err := validate(r); err != nil {
		return err
	}
	name := Filename(r.Timestamp, r.ScreenName, 0, "json")
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err == nil {
		return memexerr.New(memexerr.KindDuplicateID, "record already exists: "+name)
	} else if !os.IsNotExist(err) {
		return memexerr.Wrap(memexerr.KindIoFailure, "stat record file", err)
	}

	body, err := json.Marshal(r)
	if err != nil {
		return memexerr.Wrap(memexerr.KindMalformedRecord, "marshal record", err)
	}
	if err := atomicfile.WriteFile(path, strings.NewReader(string(body)+"\n")); err != nil {
		return memexerr.Wrap(memexerr.KindIoFailure, "write record file", err)
	}
	return nil
}

func validate(r CaptureRecord) error {
	if r.ID == "" {
		return memexerr.Invalid("id", "record id must not be empty")
	}
	if r.ScreenName == "" {
		return memexerr.Invalid("screen_name", "record screen_name must not be empty")
	}
	if r.Timestamp.IsZero() {
		return memexerr.Invalid("timestamp", "record timestamp must not be zero")
	}
	return nil
}

// ReadFile loads and decodes a single record file by its base name.
func (s *FileStore) ReadFile(name string) (CaptureRecord, error) {
	path := filepath.Join(s.dir, name)
	body, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return CaptureRecord{}, memexerr.New(memexerr.KindNotFound, "record not found: "+name)
		}
		return CaptureRecord{}, memexerr.Wrap(memexerr.KindIoFailure, "read record file", err)
	}
	var r CaptureRecord
	if err := json.Unmarshal(body, &r); err != nil {
		return CaptureRecord{}, memexerr.Wrap(memexerr.KindMalformedRecord, "decode record "+name, err)
	}
	pf, ok := ParseFilename(name)
	if ok {
		r.Timestamp = pf.Timestamp
	}
	return r, nil
}

// SkippedFile describes a record file that failed to decode during Iter;
// callers route these to a diagnostic sink rather than aborting (spec §7
// KindMalformedRecord: skip-and-report, never abort the scan).
type SkippedFile struct {
	Name string
	Err  error
}

// Iter walks the store in filename (i.e. chronological) order, invoking
// fn for every well-formed record. Malformed files are collected into
// skipped rather than stopping the walk.
func (s *FileStore) Iter(ctx context.Context, fn func(CaptureRecord) error) (skipped []SkippedFile, err error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, memexerr.Wrap(memexerr.KindIoFailure, "list record dir", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if _, ok := ParseFilename(e.Name()); !ok {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		select {
		case <-ctx.Done():
			return skipped, ctx.Err()
		default:
		}
		r, rerr := s.ReadFile(name)
		if rerr != nil {
			skipped = append(skipped, SkippedFile{Name: name, Err: rerr})
			continue
		}
		if err := fn(r); err != nil {
			return skipped, err
		}
	}
	return skipped, nil
}

// Count returns the number of well-formed record files in the store.
func (s *FileStore) Count(ctx context.Context) (int, error) {
	n := 0
	_, err := s.Iter(ctx, func(CaptureRecord) error { n++; return nil })
	return n, err
}

// EnqueuePending appends id to the pending-upsert queue file. Called when
// a record is persisted but the vector index upsert failed or was
// deferred (spec §4.3 IndexingDeferred).
func (s *FileStore) EnqueuePending(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.readPendingLocked()
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	ids = append(ids, id)
	return s.writePendingLocked(ids)
}

// DrainPending returns the current pending-upsert queue and clears it.
// The queue is cleared before the caller upserts the returned ids; ids
// whose upsert then fails must be re-enqueued by the caller.
func (s *FileStore) DrainPending() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.readPendingLocked()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if err := s.writePendingLocked(nil); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *FileStore) pendingPath() string {
	return filepath.Join(s.dir, pendingFileName)
}

func (s *FileStore) readPendingLocked() ([]string, error) {
	f, err := os.Open(s.pendingPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, memexerr.Wrap(memexerr.KindIoFailure, "open pending queue", err)
	}
	defer f.Close()

	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			ids = append(ids, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, memexerr.Wrap(memexerr.KindIoFailure, "scan pending queue", err)
	}
	return ids, nil
}

func (s *FileStore) writePendingLocked(ids []string) error {
	if len(ids) == 0 {
		if err := os.Remove(s.pendingPath()); err != nil && !os.IsNotExist(err) {
			return memexerr.Wrap(memexerr.KindIoFailure, "remove pending queue", err)
		}
		return nil
	}
	body := strings.Join(ids, "\n") + "\n"
	if err := atomicfile.WriteFile(s.pendingPath(), strings.NewReader(body)); err != nil {
		return memexerr.Wrap(memexerr.KindIoFailure, "write pending queue", err)
	}
	return nil
}
