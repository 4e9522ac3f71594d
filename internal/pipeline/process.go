package pipeline

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"healio/internal"
	"healio/internal/config"
	"healio/internal/storage"
)

// ImportService drives one catalog import: line stream in, relational
// entities out, one ImportResult back. Rows are processed strictly
// sequentially; a failing row is recorded and skipped, never fatal.
type ImportService struct {
	db        *storage.DB
	cfg       config.Config
	extractor *Extractor
}

func NewImportService(db *storage.DB, cfg config.Config) *ImportService {
	return &ImportService{
		db:        db,
		cfg:       cfg,
		extractor: NewExtractor(cfg.CurrencySymbol),
	}
}

// ImportCSV consumes a comma-separated catalog export. The first line
// is a header and is discarded; a stream with no lines at all fails
// the whole import. Input may carry a UTF-8 BOM.
func (s *ImportService) ImportCSV(r io.Reader, source string) internal.ImportResult {
	decoded := transform.NewReader(r, unicode.UTF8BOM.NewDecoder())
	scanner := bufio.NewScanner(decoded)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return fatalResult("Error importing CSV: " + err.Error())
		}
		return fatalResult("CSV file is empty")
	}

	next := func() ([]string, bool) {
		if !scanner.Scan() {
			return nil, false
		}
		return SplitLine(scanner.Text()), true
	}

	result := s.run(next, source)
	if err := scanner.Err(); err != nil {
		result.Success = false
		result.Message = ""
		result.Error = "Error importing CSV: " + err.Error()
	}
	return result
}

func fatalResult(reason string) internal.ImportResult {
	return internal.ImportResult{Error: reason, Skipped: []string{}}
}

func (s *ImportService) run(next func() ([]string, bool), source string) internal.ImportResult {
	start := time.Now()
	result := internal.ImportResult{Skipped: []string{}}

	category, err := s.db.EnsureCategory(s.cfg.CategoryName, s.cfg.CategoryDesc)
	if err != nil {
		result.Error = "Error importing catalog: " + err.Error()
		return result
	}

	seen := make(map[string]bool)
	lineNo := 1
	for {
		fields, ok := next()
		if !ok {
			break
		}
		lineNo++

		imported, err := s.processRow(fields, lineNo, seen, category.ID)
		if imported {
			result.Imported++
		}
		if err != nil {
			if errors.Is(err, errRowDropped) {
				continue
			}
			result.Skipped = append(result.Skipped, fmt.Sprintf("Line %d: %s", lineNo, err.Error()))
			slog.Warn("row skipped", "line", lineNo, "reason", err.Error())
		}
	}

	result.Success = true
	result.Message = fmt.Sprintf("Successfully imported %d products", result.Imported)

	run := internal.ImportRun{
		TraceID:  uuid.NewString(),
		Source:   source,
		Imported: result.Imported,
		Skipped:  result.Skipped,
		TotalMs:  float64(time.Since(start).Milliseconds()),
	}
	if err := s.db.InsertImportRun(run); err != nil {
		slog.Warn("failed to record import run", "error", err)
	}
	slog.Info("import finished", "source", source, "imported", result.Imported, "skipped", len(result.Skipped), "traceId", run.TraceID)

	return result
}

// processRow runs one row through normalize, resolve, upsert and
// package extraction. The bool reports whether the product was
// imported; it can be true alongside an error when package persistence
// fails after the product itself was already counted.
func (s *ImportService) processRow(fields []string, lineNo int, seen map[string]bool, categoryID int64) (bool, error) {
	row, err := NormalizeRow(fields, lineNo, seen)
	if err != nil {
		return false, err
	}

	refs, err := s.resolveRefs(row)
	if err != nil {
		return false, err
	}

	var strength *string
	if row.Strength != "" {
		strength = &row.Strength
	}
	product, err := s.db.UpsertProduct(internal.ProductRecord{
		BrandID:        row.BrandID,
		Name:           row.BrandName,
		Slug:           row.Slug,
		CategoryID:     categoryID,
		ManufacturerID: refs.ManufacturerID,
		DosageFormID:   refs.DosageFormID,
		GenericID:      refs.GenericID,
		MedicineTypeID: refs.MedicineTypeID,
		Strength:       strength,
	})
	if err != nil {
		return false, err
	}

	if row.PackageBlob != "" {
		drafts := s.extractor.Extract(row.PackageBlob, row.SizeHint)
		if err := s.db.ReplacePackages(product.ID, drafts); err != nil {
			return true, err
		}
	}

	return true, nil
}

func (s *ImportService) resolveRefs(row internal.CatalogRow) (internal.ResolvedRefs, error) {
	var refs internal.ResolvedRefs

	manufacturer, err := s.db.GetOrCreateReference(internal.KindManufacturer, row.ManufacturerName, nil)
	if err != nil {
		return refs, err
	}
	dosageForm, err := s.db.GetOrCreateReference(internal.KindDosageForm, row.DosageFormName, &row.Slug)
	if err != nil {
		return refs, err
	}
	generic, err := s.db.GetOrCreateReference(internal.KindGeneric, row.GenericName, nil)
	if err != nil {
		return refs, err
	}
	medicineType, err := s.db.GetOrCreateReference(internal.KindMedicineType, row.MedicineTypeName, nil)
	if err != nil {
		return refs, err
	}

	if manufacturer != nil {
		refs.ManufacturerID = &manufacturer.ID
	}
	if dosageForm != nil {
		refs.DosageFormID = &dosageForm.ID
	}
	if generic != nil {
		refs.GenericID = &generic.ID
	}
	if medicineType != nil {
		refs.MedicineTypeID = &medicineType.ID
	}

	return refs, nil
}
