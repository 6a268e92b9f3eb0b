package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sells-group/roster-cli/internal/model"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVOptions tunes how a CSVStore writes its file.
type CSVOptions struct {
	// Locale forces the header and sentinel labels. Empty keeps the locale of
	// the existing file, or "en" for a new one.
	Locale string
	// BackupExisting copies the file to <path>.bak before the first rewrite.
	BackupExisting bool
	// WriteBOM prefixes the file with a UTF-8 byte-order mark. A file that
	// already had one keeps it regardless.
	WriteBOM bool
}

// CSVStore keeps the player table in memory and persists it as one CSV file
// on Flush. The failure ledger is kept in a JSON file next to it.
type CSVStore struct {
	mu   sync.Mutex
	path string
	opts CSVOptions

	labels Labels
	loaded bool
	hadBOM bool
	dirty  bool
	backed bool

	order []string
	rows  map[string]model.PlayerRecord

	failures      map[string]model.FetchFailure
	failuresDirty bool

	nowFunc func() time.Time
}

// NewCSV returns a store for the CSV file at path. The file is read lazily on
// first use and need not exist yet.
func NewCSV(path string, opts CSVOptions) (*CSVStore, error) {
	if path == "" {
		return nil, eris.New("store: csv path is required")
	}
	labels := labelSets[LocaleEN]
	if opts.Locale != "" {
		l, err := LabelsFor(opts.Locale)
		if err != nil {
			return nil, err
		}
		labels = l
	}
	return &CSVStore{
		path:     path,
		opts:     opts,
		labels:   labels,
		rows:     make(map[string]model.PlayerRecord),
		failures: make(map[string]model.FetchFailure),
		nowFunc:  time.Now,
	}, nil
}

// Path returns the CSV file path.
func (s *CSVStore) Path() string { return s.path }

// LedgerPath returns the path of the failure ledger file.
func (s *CSVStore) LedgerPath() string {
	return strings.TrimSuffix(s.path, filepath.Ext(s.path)) + ".failures.json"
}

// Labels returns the labels the store writes with.
func (s *CSVStore) Labels() Labels {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.labels
}

func (s *CSVStore) Load(_ context.Context) (map[string]model.PlayerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	out := make(map[string]model.PlayerRecord, len(s.rows))
	for k, v := range s.rows {
		out[k] = v
	}
	return out, nil
}

func (s *CSVStore) Get(_ context.Context, identity string) (model.PlayerRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return model.PlayerRecord{}, false, err
	}
	rec, ok := s.rows[identity]
	return rec, ok, nil
}

func (s *CSVStore) Upsert(_ context.Context, rec model.PlayerRecord) error {
	if strings.TrimSpace(rec.Identity) == "" {
		return eris.New("store: upsert requires an identity")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return err
	}
	prev, ok := s.rows[rec.Identity]
	if !ok {
		s.order = append(s.order, rec.Identity)
	}
	s.rows[rec.Identity] = rec
	if !ok || !prev.Equal(rec) {
		s.dirty = true
	}
	return nil
}

func (s *CSVStore) All(_ context.Context) ([]model.PlayerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	out := make([]model.PlayerRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.rows[id])
	}
	return out, nil
}

// Flush rewrites the CSV file when the table changed and the ledger file when
// the ledger changed. An unchanged table leaves the file untouched.
func (s *CSVStore) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return nil
	}
	if s.dirty {
		if err := s.writeTable(); err != nil {
			return err
		}
		s.dirty = false
	}
	if s.failuresDirty {
		if err := s.writeLedger(); err != nil {
			return err
		}
		s.failuresDirty = false
	}
	return nil
}

// Close releases nothing; pending changes are only persisted by Flush.
func (s *CSVStore) Close() error { return nil }

func (s *CSVStore) ensureLoaded() error {
	if s.loaded {
		return nil
	}
	if err := s.readTable(); err != nil {
		return err
	}
	if err := s.readLedger(); err != nil {
		return err
	}
	s.loaded = true
	return nil
}

func (s *CSVStore) readTable() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "store: read csv %s", s.path)
	}
	s.hadBOM = bytes.HasPrefix(data, utf8BOM)

	// BOMOverride strips a UTF-8 BOM and decodes UTF-16 input that carries one.
	dec := transform.NewReader(bytes.NewReader(data), unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	r := csv.NewReader(dec)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return eris.Wrapf(err, "store: parse csv %s", s.path)
	}
	if len(records) == 0 {
		return nil
	}

	idx, locale, err := detectHeader(records[0])
	if err != nil {
		return err
	}
	if s.opts.Locale == "" {
		s.labels = labelSets[locale]
	}

	for line, row := range records[1:] {
		rec, ok := s.parseRow(row, idx, line+2)
		if !ok {
			continue
		}
		if _, dup := s.rows[rec.Identity]; dup {
			zap.L().Warn("store: duplicate identity in csv, keeping last row",
				zap.String("identity", rec.Identity),
				zap.Int("line", line+2),
			)
		} else {
			s.order = append(s.order, rec.Identity)
		}
		s.rows[rec.Identity] = rec
	}
	return nil
}

func (s *CSVStore) parseRow(row []string, idx [numColumns]int, line int) (model.PlayerRecord, bool) {
	cell := func(c int) string {
		if idx[c] < 0 || idx[c] >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx[c]])
	}

	identity := cell(colIdentity)
	if identity == "" {
		zap.L().Warn("store: skipping csv row without identity", zap.Int("line", line))
		return model.PlayerRecord{}, false
	}

	rec := model.PlayerRecord{
		Identity:    identity,
		Team:        parseTeam(cell(colTeam)),
		Nationality: parseNationality(cell(colNationality)),
		Age:         model.UnknownAge,
		Role:        parseRole(cell(colRole)),
	}
	if raw := cell(colAge); !isUnknownAge(raw) {
		age, err := strconv.Atoi(raw)
		if err != nil || age <= 0 {
			zap.L().Warn("store: unparseable age in csv",
				zap.String("identity", identity),
				zap.String("age", raw),
			)
		} else {
			rec.Age = age
		}
	}
	return rec, true
}

func (s *CSVStore) writeTable() error {
	if s.opts.BackupExisting && !s.backed {
		if err := backupFile(s.path); err != nil {
			return err
		}
		s.backed = true
	}

	rows := make([][]string, 0, len(s.order)+1)
	rows = append(rows, s.labels.Header())
	for _, id := range s.order {
		rows = append(rows, s.labels.Row(s.rows[id]))
	}
	bom := s.hadBOM || s.opts.WriteBOM

	return writeAtomic(s.path, func(w io.Writer) error {
		if bom {
			tw := transform.NewWriter(w, unicode.UTF8BOM.NewEncoder())
			if err := csv.NewWriter(tw).WriteAll(rows); err != nil {
				return err
			}
			return tw.Close()
		}
		return csv.NewWriter(w).WriteAll(rows)
	})
}

// RecordFailure adds identity to the ledger or bumps its attempt count.
func (s *CSVStore) RecordFailure(_ context.Context, f model.FetchFailure) error {
	if f.Identity == "" {
		return eris.New("store: failure requires an identity")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return err
	}

	f = withFailureDefaults(f, s.nowFunc())
	if prev, ok := s.failures[f.Identity]; ok {
		prev.URL = f.URL
		prev.Kind = f.Kind
		prev.Error = f.Error
		prev.Attempts++
		prev.LastFailedAt = f.LastFailedAt
		f = prev
	}
	s.failures[f.Identity] = f
	s.failuresDirty = true
	return nil
}

// ClearFailure drops identity from the ledger. Clearing an absent identity is
// not an error.
func (s *CSVStore) ClearFailure(_ context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return err
	}
	if _, ok := s.failures[identity]; ok {
		delete(s.failures, identity)
		s.failuresDirty = true
	}
	return nil
}

// ListFailures returns ledger entries, oldest first.
func (s *CSVStore) ListFailures(_ context.Context) ([]model.FetchFailure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	return sortedFailures(s.failures), nil
}

func (s *CSVStore) readLedger() error {
	data, err := os.ReadFile(s.LedgerPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return eris.Wrap(err, "store: read failure ledger")
	}
	var entries []model.FetchFailure
	if err := json.Unmarshal(data, &entries); err != nil {
		return eris.Wrap(err, "store: parse failure ledger")
	}
	for _, e := range entries {
		s.failures[e.Identity] = e
	}
	return nil
}

func (s *CSVStore) writeLedger() error {
	path := s.LedgerPath()
	if len(s.failures) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return eris.Wrap(err, "store: remove failure ledger")
		}
		return nil
	}
	data, err := json.MarshalIndent(sortedFailures(s.failures), "", "  ")
	if err != nil {
		return eris.Wrap(err, "store: marshal failure ledger")
	}
	return writeAtomic(path, func(w io.Writer) error {
		_, err := w.Write(append(data, '\n'))
		return err
	})
}

func sortedFailures(m map[string]model.FetchFailure) []model.FetchFailure {
	out := make([]model.FetchFailure, 0, len(m))
	for _, f := range m {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FirstFailedAt.Equal(out[j].FirstFailedAt) {
			return out[i].FirstFailedAt.Before(out[j].FirstFailedAt)
		}
		return out[i].Identity < out[j].Identity
	})
	return out
}

// writeAtomic writes through a temp file in the target directory and renames
// it over path, so readers never see a half-written file.
func writeAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "store: create dir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "store: create temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return eris.Wrapf(err, "store: write %s", path)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "store: chmod temp file")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "store: sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "store: close temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "store: rename into %s", path)
	}
	return nil
}

func backupFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "store: read %s for backup", path)
	}
	if err := os.WriteFile(path+".bak", data, 0o644); err != nil {
		return eris.Wrap(err, "store: write backup")
	}
	zap.L().Info("store: backed up existing file", zap.String("path", path+".bak"))
	return nil
}
