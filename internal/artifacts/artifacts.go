// package artifacts manages media files in the downloads directory: temporary
// outputs, promotion to their final names and one-time delivery
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mediafetch/internal/shared"
)

// leftover suffixes yt-dlp uses for partial or intermediate output
var partialSuffixes = []string{".part", ".ytdl", ".temp", ".tmp"}

// claimPrefix marks files being delivered; they are invisible to lookups.
const claimPrefix = ".claimed-"

// Store owns one downloads directory.
type Store struct {
	dir    string
	logger *log.Logger

	mu    sync.Mutex
	locks map[string]*nameLock
}

type nameLock struct {
	sync.Mutex
	refs int
}

// NewStore creates dir if needed and returns a store rooted at its absolute path.
func NewStore(dir string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %v", shared.ErrResource, dir, err)
	}
	if err := shared.EnsureDir(abs); err != nil {
		return nil, err
	}
	return &Store{
		dir:    abs,
		logger: shared.WithLogger(logger, "component", "artifacts"),
		locks:  map[string]*nameLock{},
	}, nil
}

// Dir is the absolute downloads directory.
func (s *Store) Dir() string { return s.dir }

// TempTemplate is the yt-dlp output template for a task; yt-dlp fills in the extension.
func (s *Store) TempTemplate(taskID string) string {
	return filepath.Join(s.dir, taskID+".%(ext)s")
}

// FindTemp locates the finished output of taskID, preferring files with extension ext.
func (s *Store) FindTemp(taskID, ext string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, globEscape(taskID)+".*"))
	if err != nil {
		return "", fmt.Errorf("%w: glob: %v", shared.ErrResource, err)
	}

	candidates := matches[:0]
	for _, m := range matches {
		if isPartial(m) {
			continue
		}
		if info, err := os.Stat(m); err != nil || !info.Mode().IsRegular() {
			continue
		}
		candidates = append(candidates, m)
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w for task %s", shared.ErrTempFileMissing, taskID)
	}

	sort.Strings(candidates)
	exact := taskID + "." + ext
	for _, c := range candidates {
		if filepath.Base(c) == exact {
			return c, nil
		}
	}
	for _, c := range candidates {
		if strings.EqualFold(filepath.Ext(c), "."+ext) {
			return c, nil
		}
	}
	return candidates[0], nil
}

// Cleanup removes every file left behind by taskID, partial or not.
func (s *Store) Cleanup(taskID string) {
	matches, _ := filepath.Glob(filepath.Join(s.dir, globEscape(taskID)+".*"))
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove leftover", "path", m, "err", err)
		}
	}
}

// Promote renames tempPath to finalName inside the store.
//
// Promotions and claims of the same final name are serialized; a later promotion
// replaces the earlier file whole.
func (s *Store) Promote(tempPath, finalName string) (string, error) {
	if err := validateName(finalName); err != nil {
		return "", err
	}
	unlock := s.lock(finalName)
	defer unlock()

	finalPath := filepath.Join(s.dir, finalName)
	if err := os.Rename(tempPath, finalPath); err != nil {
		return "", fmt.Errorf("%w: promote %s: %v", shared.ErrResource, finalName, err)
	}
	return finalPath, nil
}

// Resolve finds name, or its .mp3/.mp4 alternate, inside the store.
func (s *Store) Resolve(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	for _, candidate := range []string{name, AlternateName(name)} {
		if candidate == "" {
			continue
		}
		p := filepath.Join(s.dir, candidate)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s", shared.ErrNotFound, name)
}

// Artifact is a claimed file, detached from its public name until Release.
type Artifact struct {
	Name    string
	Size    int64
	ModTime time.Time
	File    *os.File

	path   string
	logger *log.Logger
}

// Claim resolves name and moves the file aside so no other request can claim it.
func (s *Store) Claim(name string) (*Artifact, error) {
	path, err := s.Resolve(name)
	if err != nil {
		return nil, err
	}
	served := filepath.Base(path)

	unlock := s.lock(served)
	defer unlock()

	claimed := filepath.Join(s.dir, claimPrefix+shared.GenerateID()+"-"+served)
	if err := os.Rename(path, claimed); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", shared.ErrNotFound, name)
		}
		return nil, fmt.Errorf("%w: claim %s: %v", shared.ErrResource, served, err)
	}

	f, err := os.Open(claimed)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", shared.ErrResource, served, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat %s: %v", shared.ErrResource, served, err)
	}

	return &Artifact{
		Name:    served,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		File:    f,
		path:    claimed,
		logger:  s.logger,
	}, nil
}

// Release closes the file and deletes it. Failures are logged only.
func (a *Artifact) Release() {
	if err := a.File.Close(); err != nil {
		a.logger.Warn("failed to close artifact", "name", a.Name, "err", err)
	}
	if err := os.Remove(a.path); err != nil && !os.IsNotExist(err) {
		a.logger.Warn("failed to delete artifact", "name", a.Name, "err", err)
		return
	}
	a.logger.Debug("artifact delivered and removed", "name", a.Name)
}

// Sweep deletes claimed and partial files older than maxAge, left by crashes.
func (s *Store) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("%w: read %s: %v", shared.ErrResource, s.dir, err)
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !(strings.HasPrefix(e.Name(), claimPrefix) || isPartial(e.Name())) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

// AlternateName swaps .mp3 and .mp4; other extensions have no alternate.
func AlternateName(name string) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	switch strings.ToLower(ext) {
	case ".mp3":
		return base + ".mp4"
	case ".mp4":
		return base + ".mp3"
	default:
		return ""
	}
}

func (s *Store) lock(name string) func() {
	s.mu.Lock()
	l := s.locks[name]
	if l == nil {
		l = &nameLock{}
		s.locks[name] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, name)
		}
		s.mu.Unlock()
	}
}

// validateName accepts a bare file name only.
func validateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: empty file name", shared.ErrInvalidInput)
	case strings.ContainsAny(name, `/\`+"\x00"):
		return fmt.Errorf("%w: file name must not contain path separators", shared.ErrInvalidInput)
	case strings.Contains(name, ".."):
		return fmt.Errorf("%w: file name must not contain '..'", shared.ErrInvalidInput)
	case strings.HasPrefix(name, claimPrefix):
		return fmt.Errorf("%w: reserved file name", shared.ErrInvalidInput)
	case filepath.Base(name) != name || filepath.IsAbs(name):
		return fmt.Errorf("%w: invalid file name", shared.ErrInvalidInput)
	}
	return nil
}

func isPartial(name string) bool {
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// globEscape quotes glob metacharacters; task IDs are UUIDs but callers may pass anything.
func globEscape(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`)
	return r.Replace(s)
}
