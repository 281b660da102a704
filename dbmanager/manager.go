// Package dbmanager manages multiple named, on-disk-backed trees,
// adapted from lib/manage.go's DatabaseManager: the same
// create/drop/use/show lifecycle, generalized from bare directories to
// directories holding one tree's history-index and data-log files.
package dbmanager

import (
	"crypto/cipher"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chiefnoah/histkv"
	"github.com/chiefnoah/histkv/internal/codec"
	"github.com/chiefnoah/histkv/internal/datalog"
	"github.com/chiefnoah/histkv/internal/history"
	"github.com/chiefnoah/histkv/internal/pagefile"
	"github.com/chiefnoah/histkv/txid"
)

const (
	historyFileName = "history.idx"
	dataFileName    = "data.log"
)

type openTree struct {
	tree        *histkv.BufferedBTree
	historyFile *os.File
	dataFile    *os.File
}

// Manager opens and tracks named trees rooted under a base directory,
// one subdirectory per tree.
type Manager struct {
	mu           sync.Mutex
	basePath     string
	current      string
	open         map[string]*openTree
	historyCache int
	aead         cipher.AEAD
}

// NewManager builds a Manager rooted at basePath. historyCacheSize sets
// the page cache size handed to every tree's history.Searcher (<=0
// disables caching). aead, if non-nil, is handed to every tree's
// datalog.Logger to seal value payloads at rest (spec.md §11.1); nil
// disables at-rest encryption.
func NewManager(basePath string, historyCacheSize int, aead cipher.AEAD) *Manager {
	return &Manager{
		basePath:     ensureTrailingSlash(basePath),
		open:         make(map[string]*openTree),
		historyCache: historyCacheSize,
		aead:         aead,
	}
}

func ensureTrailingSlash(p string) string {
	if strings.HasSuffix(p, string(os.PathSeparator)) {
		return p
	}
	return p + string(os.PathSeparator)
}

// CreateDatabase creates a new tree's backing directory.
func (m *Manager) CreateDatabase(name string) error {
	dir := filepath.Join(m.basePath, name)
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		return errors.New("database already exists")
	}
	return os.MkdirAll(dir, 0o755)
}

// DropDatabase closes (if open) and removes a tree's backing directory.
func (m *Manager) DropDatabase(name string) error {
	m.mu.Lock()
	if ot, ok := m.open[name]; ok {
		ot.historyFile.Close()
		ot.dataFile.Close()
		delete(m.open, name)
		if m.current == name {
			m.current = ""
		}
	}
	m.mu.Unlock()

	dir := filepath.Join(m.basePath, name)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return errors.New("database does not exist")
	}
	return os.RemoveAll(dir)
}

// UseDatabase opens (creating backing files on first use) the named tree
// and makes it current.
func (m *Manager) UseDatabase(name string) error {
	dir := filepath.Join(m.basePath, name)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return errors.New("database does not exist")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.open[name]; !ok {
		ot, err := openTreeAt(dir, m.historyCache, m.aead)
		if err != nil {
			return fmt.Errorf("dbmanager: open %q: %w", name, err)
		}
		m.open[name] = ot
	}
	m.current = name
	return nil
}

func openTreeAt(dir string, cacheSize int, aead cipher.AEAD) (*openTree, error) {
	historyFile, err := os.OpenFile(filepath.Join(dir, historyFileName), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	dataFile, err := os.OpenFile(filepath.Join(dir, dataFileName), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		historyFile.Close()
		return nil, err
	}

	historySize, err := fileSize(historyFile)
	if err != nil {
		return nil, err
	}
	dataSize, err := fileSize(dataFile)
	if err != nil {
		return nil, err
	}

	historyIO := pagefile.NewHandler(historyFile, historySize, codec.HistoryIndexNodeSize)
	dataIO := pagefile.NewHandler(dataFile, dataSize, 0)
	logger := datalog.NewLogger(dataIO, aead)
	searcher := history.NewSearcher(historyIO, logger, cacheSize)
	tree := histkv.NewBufferedBTree(historyIO, logger, searcher, txid.Zero)

	return &openTree{tree: tree, historyFile: historyFile, dataFile: dataFile}, nil
}

func fileSize(f *os.File) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Tree returns the currently selected tree.
func (m *Manager) Tree() (*histkv.BufferedBTree, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == "" {
		return nil, errors.New("no database selected")
	}
	return m.open[m.current].tree, nil
}

// ShowDatabases lists every tree directory under the base path.
func (m *Manager) ShowDatabases() ([]string, error) {
	var names []string
	files, err := os.ReadDir(m.basePath)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if f.IsDir() {
			names = append(names, f.Name())
		}
	}
	return names, nil
}

// CurrentDatabase returns the name of the selected tree, or "" if none.
func (m *Manager) CurrentDatabase() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Close closes every open tree's backing files.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for _, ot := range m.open {
		if err := ot.historyFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := ot.dataFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
