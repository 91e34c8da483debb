// Package store persists engine.Problem values produced by analysis
// runs into a BoltDB database, alongside a Bleve full-text index over
// their messages and rule metadata for the search API.
package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	bolt "go.etcd.io/bbolt"

	"github.com/codesentry/codesentry/pkg/engine"
)

var storeLog = log.New(os.Stderr, "[sentry:store] ", log.Ltime)

var (
	bucketProblems = []byte("problems")
	bucketFileIdx  = []byte("fileindex")
	bucketMeta     = []byte("meta")
)

// ProblemStore provides persistence and search over engine.Problem
// records, keyed by the URI of the document they were found in.
type ProblemStore struct {
	db     *bolt.DB
	search bleve.Index
}

// Record is a persisted problem together with the document URI it
// belongs to.
type Record struct {
	URI     string
	Problem engine.Problem
}

// Open opens (creating if needed) a BoltDB database at dbPath and a
// Bleve search index at searchPath.
func Open(dbPath, searchPath string) (*ProblemStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("store: creating db directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(searchPath), 0o755); err != nil {
		return nil, fmt.Errorf("store: creating search directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: opening db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketProblems, bucketFileIdx, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: initializing buckets: %w", err)
	}

	index, err := openOrCreateIndex(searchPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: opening search index: %w", err)
	}

	return &ProblemStore{db: db, search: index}, nil
}

// openOrCreateIndex opens an existing bleve index, or creates one if
// missing. A corrupt index is recreated empty rather than failing Open
// outright; problems already in the database are not re-indexed into
// the new index, so Search finds only problems stored after that point.
func openOrCreateIndex(path string) (bleve.Index, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createIndex(path)
	}

	index, err := bleve.Open(path)
	if err == nil {
		return index, nil
	}

	storeLog.Printf("search index corrupted at %s (%v), rebuilding", path, err)
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("removing corrupted index: %w", err)
	}
	return createIndex(path)
}

func createIndex(path string) (bleve.Index, error) {
	m, err := buildIndexMapping()
	if err != nil {
		return nil, err
	}
	return bleve.New(path, m)
}

func buildIndexMapping() (mapping.IndexMapping, error) {
	im := bleve.NewIndexMapping()

	if err := im.AddCustomAnalyzer("standard_lower", map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": unicode.Name,
		"token_filters": []string{
			lowercase.Name,
		},
	}); err != nil {
		return nil, err
	}

	problemMapping := bleve.NewDocumentMapping()

	messageField := bleve.NewTextFieldMapping()
	messageField.Analyzer = "standard_lower"
	messageField.Store = true
	problemMapping.AddFieldMappingsAt("message", messageField)

	nameField := bleve.NewTextFieldMapping()
	nameField.Analyzer = "standard_lower"
	nameField.Store = true
	problemMapping.AddFieldMappingsAt("name", nameField)

	ruleIDField := bleve.NewTextFieldMapping()
	ruleIDField.Analyzer = keyword.Name
	problemMapping.AddFieldMappingsAt("rule_id", ruleIDField)

	severityField := bleve.NewTextFieldMapping()
	severityField.Analyzer = keyword.Name
	problemMapping.AddFieldMappingsAt("severity", severityField)

	uriField := bleve.NewTextFieldMapping()
	uriField.Analyzer = keyword.Name
	problemMapping.AddFieldMappingsAt("uri", uriField)

	im.AddDocumentMapping("problem", problemMapping)
	im.DefaultMapping = problemMapping

	return im, nil
}

// Close closes both the database and the search index.
func (s *ProblemStore) Close() error {
	if s.search != nil {
		s.search.Close()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ReplaceForFile swaps out every problem stored for uri with the given
// set, updating both the db and the search index. The removal, the
// write and the indexing are separate steps, not one transaction: an
// error part-way through can leave the old problems removed and the new
// ones only partly stored or indexed.
func (s *ProblemStore) ReplaceForFile(uri string, problems []engine.Problem) error {
	if err := s.removeForFile(uri); err != nil {
		return fmt.Errorf("store: clearing %s: %w", uri, err)
	}

	var ids []string
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProblems)
		fb := tx.Bucket(bucketFileIdx)

		for _, p := range problems {
			data, err := json.Marshal(Record{URI: uri, Problem: p})
			if err != nil {
				return err
			}
			if err := b.Put([]byte(p.ID), data); err != nil {
				return err
			}
			ids = append(ids, p.ID)
		}

		idxData, err := json.Marshal(ids)
		if err != nil {
			return err
		}
		return fb.Put([]byte(uri), idxData)
	})
	if err != nil {
		return fmt.Errorf("store: writing problems for %s: %w", uri, err)
	}

	for _, p := range problems {
		if err := s.search.Index(p.ID, searchDoc(uri, p)); err != nil {
			return fmt.Errorf("store: indexing problem %s: %w", p.ID, err)
		}
	}
	return nil
}

func (s *ProblemStore) removeForFile(uri string) error {
	var ids []string
	err := s.db.View(func(tx *bolt.Tx) error {
		fb := tx.Bucket(bucketFileIdx)
		data := fb.Get([]byte(uri))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &ids)
	})
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProblems)
		fb := tx.Bucket(bucketFileIdx)
		for _, id := range ids {
			if err := b.Delete([]byte(id)); err != nil {
				return err
			}
			if err := s.search.Delete(id); err != nil {
				return err
			}
		}
		return fb.Delete([]byte(uri))
	})
}

func searchDoc(uri string, p engine.Problem) map[string]interface{} {
	return map[string]interface{}{
		"message":  p.Message,
		"name":     p.Name,
		"rule_id":  p.RuleID,
		"severity": p.Severity.String(),
		"uri":      uri,
	}
}

// ListForFile returns every problem currently stored for uri.
func (s *ProblemStore) ListForFile(uri string) ([]engine.Problem, error) {
	var ids []string
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketFileIdx).Get([]byte(uri))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &ids)
	})
	if err != nil {
		return nil, fmt.Errorf("store: listing %s: %w", uri, err)
	}

	var out []engine.Problem
	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProblems)
		for _, id := range ids {
			data := b.Get([]byte(id))
			if data == nil {
				continue
			}
			var rec Record
			if err := json.Unmarshal(data, &rec); err != nil {
				continue
			}
			out = append(out, rec.Problem)
		}
		return nil
	})
	return out, err
}

// Stats summarizes the number of stored problems per severity.
type Stats struct {
	Total      int
	BySeverity map[string]int
}

// Stats scans every stored problem and tallies it by severity.
func (s *ProblemStore) Stats() (Stats, error) {
	stats := Stats{BySeverity: make(map[string]int)}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProblems)
		return b.ForEach(func(_, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil
			}
			stats.Total++
			stats.BySeverity[rec.Problem.Severity.String()]++
			return nil
		})
	})
	return stats, err
}

// Search runs a full-text query against stored problems and returns
// matching records ranked by relevance.
func (s *ProblemStore) Search(query string, limit int) ([]Record, error) {
	q := bleve.NewQueryStringQuery(query)
	req := bleve.NewSearchRequest(q)
	req.Size = limit

	res, err := s.search.Search(req)
	if err != nil {
		return nil, fmt.Errorf("store: search %q: %w", query, err)
	}

	var out []Record
	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProblems)
		for _, hit := range res.Hits {
			data := b.Get([]byte(hit.ID))
			if data == nil {
				continue
			}
			var rec Record
			if err := json.Unmarshal(data, &rec); err != nil {
				continue
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}
