// Package jsonfile keeps fingerprint records in a single JSON document,
// the default cache_file format.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/custodia-labs/llmsync/internal/core/domain"
	"github.com/custodia-labs/llmsync/internal/core/ports/driven"
	"github.com/custodia-labs/llmsync/internal/fileutil"
	"github.com/custodia-labs/llmsync/internal/logger"
)

// formatVersion is written into every document.
const formatVersion = 1

// Ensure Store implements the interface.
var _ driven.FingerprintStore = (*Store)(nil)

// document is the on-disk layout.
type document struct {
	Version int                                 `json:"version"`
	Sources map[string]domain.FingerprintRecord `json:"sources"`
}

// Store is a FingerprintStore backed by one JSON file. The file is read on
// every call so that separate processes sharing it observe each other's
// commits; writes replace it atomically.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store at path. The file is created on first Save.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the cache file path.
func (s *Store) Path() string {
	return s.path
}

// Get retrieves the record for a source.
// A missing file or source is a miss; an unreadable file is ErrCache.
func (s *Store) Get(_ context.Context, sourceID string) (*domain.FingerprintRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	record, ok := doc.Sources[sourceID]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

// Save creates or replaces the record for record.SourceID.
// A corrupt file is replaced rather than repaired.
func (s *Store) Save(_ context.Context, record domain.FingerprintRecord) error {
	if record.SourceID == "" {
		return fmt.Errorf("%w: fingerprint record without source id", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		logger.Warn("Replacing unreadable cache file %s: %v", s.path, err)
		doc = newDocument()
	}
	doc.Sources[record.SourceID] = record
	return s.write(doc)
}

// Delete removes the record for a source. A corrupt file holds no usable
// record, so it is replaced with an empty document.
func (s *Store) Delete(_ context.Context, sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		logger.Warn("Replacing unreadable cache file %s: %v", s.path, err)
		return s.write(newDocument())
	}
	if _, ok := doc.Sources[sourceID]; !ok {
		return nil
	}
	delete(doc.Sources, sourceID)
	return s.write(doc)
}

// List returns every record ordered by source ID.
func (s *Store) List(_ context.Context) ([]domain.FingerprintRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make([]domain.FingerprintRecord, 0, len(doc.Sources))
	for _, record := range doc.Sources {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out, nil
}

func newDocument() *document {
	return &document{Version: formatVersion, Sources: make(map[string]domain.FingerprintRecord)}
}

// read loads the document. Caller holds mu.
func (s *Store) read() (*document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return newDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrCache, s.path, err)
	}

	doc := newDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrCache, s.path, err)
	}
	if doc.Sources == nil {
		doc.Sources = make(map[string]domain.FingerprintRecord)
	}
	for id, record := range doc.Sources {
		if record.SourceID == "" {
			record.SourceID = id
			doc.Sources[id] = record
		}
	}
	return doc, nil
}

// write replaces the file with doc. Caller holds mu.
func (s *Store) write(doc *document) error {
	doc.Version = formatVersion
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode cache: %v", domain.ErrCache, err)
	}
	if err := fileutil.WriteAtomic(s.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCache, err)
	}
	return nil
}
