package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/er-ddx-review-server/internal/cache"
	"github.com/er-ddx-review-server/internal/domain"
	"github.com/er-ddx-review-server/internal/tabular"
)

// labelRunes bounds the Label part of a row label
const labelRunes = 40

// searchCacheSize bounds the number of memoized search results
const searchCacheSize = 256

// QuickBrowseColumns is the preferred column set of the quick-browse table.
// Only the columns the upload actually supplied are shown.
var QuickBrowseColumns = []string{
	domain.ColumnFileName,
	domain.ColumnRawVisit,
	domain.ColumnCurrentHistory,
	domain.ColumnPastHistory,
	domain.ColumnLegacyExpected,
	domain.ColumnLegacyDDX,
	domain.ColumnExpectedApplied,
	domain.ColumnDDXApplied,
	domain.ColumnExpectedBase,
	domain.ColumnDDXBase,
}

// Dataset is the currently loaded upload.
type Dataset struct {
	Table    *domain.DerivedTable `json:"-"`
	Name     string               `json:"name"`
	Rows     int                  `json:"rows"`
	Prefer   domain.ModelVariant  `json:"prefer"`
	Sources  map[string]string    `json:"sources"` // canonical column -> source header
	LoadedAt time.Time            `json:"loaded_at"`
	Cached   bool                 `json:"cached"`
}

// ID returns the derived table id
func (d *Dataset) ID() string {
	return d.Table.ID
}

// QuickBrowseRow is one line of the quick-browse table.
type QuickBrowseRow struct {
	RowID  int               `json:"row_id"`
	Fields map[string]string `json:"fields"`
}

// DatasetService owns the loaded dataset and everything read from it.
type DatasetService struct {
	logger     *logrus.Logger
	normalizer *ColumnNormalizerService
	engine     *DerivationEngine
	cache      *cache.DatasetCache
	searches   *lru.Cache

	mu      sync.RWMutex
	current *Dataset
}

// NewDatasetService creates a new dataset service
func NewDatasetService(logger *logrus.Logger, datasetCache *cache.DatasetCache) (*DatasetService, error) {
	searches, err := lru.New(searchCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create search cache: %w", err)
	}
	return &DatasetService{
		logger:     logger,
		normalizer: NewColumnNormalizerService(),
		engine:     NewDerivationEngine(logger),
		cache:      datasetCache,
		searches:   searches,
	}, nil
}

// Engine exposes the derivation engine for single-row derivation
func (s *DatasetService) Engine() *DerivationEngine {
	return s.engine
}

// Normalizer exposes the column normalizer
func (s *DatasetService) Normalizer() *ColumnNormalizerService {
	return s.normalizer
}

// Load reads, normalizes and derives an upload and makes it the current
// dataset. The previous dataset is replaced wholesale.
func (s *DatasetService) Load(ctx context.Context, name string, r io.Reader, prefer domain.ModelVariant) (*Dataset, error) {
	if !prefer.IsValid() {
		return nil, domain.NewValidationError("prefer", "must be 'applied' or 'base'", prefer)
	}

	content, err := io.ReadAll(r)
	if err != nil {
		return nil, domain.NewServiceError(domain.ErrUploadParse, "failed to read upload", err.Error())
	}

	reader := tabular.ReaderForFilename(name)
	key := cache.Key(content, reader.Comma, prefer)
	table, hit := s.cache.Get(key)
	if !hit {
		raw, err := reader.Read(bytes.NewReader(content))
		if err != nil {
			return nil, err
		}
		normalized := s.normalizer.Normalize(raw)
		table, err = s.engine.DeriveTable(ctx, normalized, prefer)
		if err != nil {
			return nil, fmt.Errorf("failed to derive table: %w", err)
		}
		table.ID = uuid.NewString()
		table.Sources = s.normalizer.Resolve(raw.Header)
		s.cache.Add(key, table)
	}

	ds := &Dataset{
		Table:    table,
		Name:     name,
		Rows:     len(table.Records),
		Prefer:   prefer,
		Sources:  table.Sources,
		LoadedAt: time.Now().UTC(),
		Cached:   hit,
	}

	s.mu.Lock()
	s.current = ds
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"dataset_id": table.ID,
		"name":       name,
		"rows":       ds.Rows,
		"prefer":     prefer,
		"cached":     hit,
	}).Info("Dataset loaded")

	return ds, nil
}

// Current returns the loaded dataset
func (s *DatasetService) Current() (*Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, domain.NewServiceError(domain.ErrNoDataset, "no dataset loaded", "upload a CSV first")
	}
	return s.current, nil
}

// RowIDs returns every row id of the current dataset
func (s *DatasetService) RowIDs() ([]int, error) {
	ds, err := s.Current()
	if err != nil {
		return nil, err
	}
	return ds.Table.RowIDs(), nil
}

// Record returns a derived record of the current dataset
func (s *DatasetService) Record(rowID int) (*domain.DerivedRecord, error) {
	ds, err := s.Current()
	if err != nil {
		return nil, err
	}
	return ds.Table.Record(rowID)
}

// RowLabel renders the picker label of a row: file name and the first
// characters of its chief complaint.
func (s *DatasetService) RowLabel(rowID int) (string, error) {
	rec, err := s.Record(rowID)
	if err != nil {
		return "", err
	}
	return RowLabel(rec), nil
}

// RowLabel renders the picker label of a record
func RowLabel(rec *domain.DerivedRecord) string {
	label := []rune(rec.Get(domain.ColumnLabel))
	if len(label) > labelRunes {
		label = label[:labelRunes]
	}
	return fmt.Sprintf("%s — %s", rec.FileName(), string(label))
}

// Search returns the ids of rows whose file name, derived diagnoses,
// histories or legacy diagnosis columns contain query, ignoring case. An
// empty query matches every row.
func (s *DatasetService) Search(query string) ([]int, error) {
	ds, err := s.Current()
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return ds.Table.RowIDs(), nil
	}

	cacheKey := ds.ID() + "\x00" + q
	if v, ok := s.searches.Get(cacheKey); ok {
		return append([]int(nil), v.([]int)...), nil
	}

	ids := []int{}
	for i := range ds.Table.Records {
		rec := &ds.Table.Records[i]
		if matches(rec, q) {
			ids = append(ids, rec.RowID)
		}
	}
	s.searches.Add(cacheKey, ids)

	s.logger.WithFields(logrus.Fields{
		"query":   query,
		"matches": len(ids),
	}).Debug("Searched records")

	return append([]int(nil), ids...), nil
}

func matches(rec *domain.DerivedRecord, q string) bool {
	fields := []string{
		rec.FileName(),
		rec.Applied.Expected.Name,
		rec.Base.Expected.Name,
		rec.Get(domain.ColumnCurrentHistory),
		rec.Get(domain.ColumnPastHistory),
		rec.Get(domain.ColumnLegacyExpected),
		rec.Get(domain.ColumnLegacyDDX),
	}
	fields = append(fields, rec.Applied.DifferentialNames()...)
	fields = append(fields, rec.Base.DifferentialNames()...)

	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// QuickBrowseColumnsFor returns the quick-browse columns present in the
// current upload, or just the file name when none are.
func (s *DatasetService) QuickBrowseColumnsFor(ds *Dataset) []string {
	cols := []string{}
	for _, c := range QuickBrowseColumns {
		if _, ok := ds.Sources[c]; ok {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		cols = []string{domain.ColumnFileName}
	}
	return cols
}

// QuickBrowse projects rows onto the quick-browse columns. Nil rowIDs means
// every row.
func (s *DatasetService) QuickBrowse(rowIDs []int) ([]string, []QuickBrowseRow, error) {
	ds, err := s.Current()
	if err != nil {
		return nil, nil, err
	}
	if rowIDs == nil {
		rowIDs = ds.Table.RowIDs()
	}

	cols := s.QuickBrowseColumnsFor(ds)
	rows := make([]QuickBrowseRow, 0, len(rowIDs))
	for _, id := range rowIDs {
		rec, err := ds.Table.Record(id)
		if err != nil {
			return nil, nil, err
		}
		fields := make(map[string]string, len(cols))
		for _, c := range cols {
			fields[c] = rec.Get(c)
		}
		rows = append(rows, QuickBrowseRow{RowID: id, Fields: fields})
	}
	return cols, rows, nil
}

// ExportCSV writes the processed table, restricted to rowIDs when given, as
// UTF-8 CSV with a BOM.
func (s *DatasetService) ExportCSV(w io.Writer, rowIDs []int) error {
	ds, err := s.Current()
	if err != nil {
		return err
	}

	records := ds.Table.Records
	if rowIDs != nil {
		records = make([]domain.DerivedRecord, 0, len(rowIDs))
		for _, id := range rowIDs {
			rec, err := ds.Table.Record(id)
			if err != nil {
				return err
			}
			records = append(records, *rec)
		}
	}

	return tabular.WriteCSV(w, ExportHeader(ds.Table), ExportRows(ds.Table, records))
}
