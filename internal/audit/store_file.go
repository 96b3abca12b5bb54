package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	filePrefix = "audit_log_"
	fileSuffix = ".jsonl"
)

// FileStore keeps one append-only JSONL file per day-partition under a single
// directory. File names follow audit_log_YYYY-MM-DD.jsonl. Each entry is one
// line, written with a single write call so readers never see a torn entry.
type FileStore struct {
	dir string
}

// NewFileStore creates the log directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audit log dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(day string) string {
	return filepath.Join(s.dir, filePrefix+day+fileSuffix)
}

// PartitionPath returns the storage location of a day-partition. Pruning
// records it as the deleted resource.
func (s *FileStore) PartitionPath(day string) string {
	return s.path(day)
}

func (s *FileStore) Append(_ context.Context, day string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event %s: %w", event.EventID, err)
	}

	f, err := os.OpenFile(s.path(day), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit partition %s: %w", day, err)
	}
	defer f.Close()

	// One write for the whole line keeps the entry atomic for readers.
	if _, err := f.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("append audit event %s: %w", event.EventID, err)
	}
	return f.Sync()
}

func (s *FileStore) LastHash(ctx context.Context, day string) (string, error) {
	events, _, err := s.Read(ctx, day)
	if err != nil {
		return "", err
	}
	if len(events) == 0 {
		return GenesisHash, nil
	}
	return events[len(events)-1].Hash, nil
}

func (s *FileStore) Read(_ context.Context, day string) ([]Event, int, error) {
	f, err := os.Open(s.path(day))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open audit partition %s: %w", day, err)
	}
	defer f.Close()

	var (
		events    []Event
		malformed int
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var event Event
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			malformed++
			log.WithFields(log.Fields{
				"partition": day,
				"error":     err,
			}).Warn("Skipping malformed audit log entry")
			continue
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, malformed, fmt.Errorf("scan audit partition %s: %w", day, err)
	}
	return events, malformed, nil
}

func (s *FileStore) Partitions(_ context.Context) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, filePrefix+"*"+fileSuffix))
	if err != nil {
		return nil, fmt.Errorf("list audit partitions: %w", err)
	}

	days := make([]string, 0, len(matches))
	for _, match := range matches {
		name := filepath.Base(match)
		day := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		if _, err := parseDay(day); err != nil {
			log.WithField("file", name).Warn("Ignoring audit file with unparsable date")
			continue
		}
		days = append(days, day)
	}
	sort.Strings(days)
	return days, nil
}

func (s *FileStore) DeletePartition(_ context.Context, day string) error {
	if err := os.Remove(s.path(day)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete audit partition %s: %w", day, err)
	}
	return nil
}
