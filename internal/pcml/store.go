package pcml

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bft-labs/hostcall/internal/domain"
	"github.com/bft-labs/hostcall/internal/ports"
	"github.com/bft-labs/hostcall/pkg/log"
)

// Extension is the file extension of template files.
const Extension = ".pcml"

// Store loads templates from a directory and caches the parsed result.
type Store struct {
	dir    string
	logger log.Logger

	mu    sync.RWMutex
	cache map[string]*Template
}

// NewStore creates a Store reading <dir>/<name>.pcml files.
func NewStore(dir string, logger log.Logger) *Store {
	return &Store{
		dir:    dir,
		logger: log.OrNoop(logger),
		cache:  make(map[string]*Template),
	}
}

// Dir returns the template directory.
func (s *Store) Dir() string { return s.dir }

// Template returns the parsed template called name.
func (s *Store) Template(name string) (*Template, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, fmt.Errorf("%w: invalid name %q", domain.ErrTemplateNotFound, name)
	}

	s.mu.RLock()
	t, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return t, nil
	}

	path := filepath.Join(s.dir, name+Extension)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, path)
		}
		return nil, err
	}
	defer f.Close()

	t, err = ParseTemplate(name, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	s.mu.Lock()
	s.cache[name] = t
	s.mu.Unlock()
	s.logger.Debug("template loaded", log.String("template", name), log.Int("slots", len(t.slots)))
	return t, nil
}

// Load implements ports.TemplateLoader.
func (s *Store) Load(session ports.HostSession, name string) (ports.Document, error) {
	t, err := s.Template(name)
	if err != nil {
		return nil, err
	}
	return NewDocument(t, session), nil
}

// Invalidate drops name from the cache.
func (s *Store) Invalidate(name string) {
	s.mu.Lock()
	_, had := s.cache[name]
	delete(s.cache, name)
	s.mu.Unlock()
	if had {
		s.logger.Info("template invalidated", log.String("template", name))
	}
}

// Names lists the templates available in the directory.
func (s *Store) Names() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != Extension {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), Extension))
	}
	sort.Strings(names)
	return names, nil
}

var _ ports.TemplateLoader = (*Store)(nil)
