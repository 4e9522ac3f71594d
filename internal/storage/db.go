package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"healio/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := conn.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS product_categories (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL UNIQUE,
  description TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS manufacturers (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL UNIQUE,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS dosage_forms (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL UNIQUE,
  slug TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS generics (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL UNIQUE,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS medicine_types (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL UNIQUE,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS products (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  brandId INTEGER NOT NULL UNIQUE,
  name TEXT NOT NULL,
  slug TEXT,
  categoryId INTEGER NOT NULL,
  manufacturerId INTEGER,
  dosageFormId INTEGER,
  genericId INTEGER,
  medicineTypeId INTEGER,
  strength TEXT,
  requiresPrescription INTEGER NOT NULL DEFAULT 0,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(categoryId) REFERENCES product_categories(id),
  FOREIGN KEY(manufacturerId) REFERENCES manufacturers(id),
  FOREIGN KEY(dosageFormId) REFERENCES dosage_forms(id),
  FOREIGN KEY(genericId) REFERENCES generics(id),
  FOREIGN KEY(medicineTypeId) REFERENCES medicine_types(id)
);
CREATE INDEX IF NOT EXISTS idx_products_name ON products(name);
CREATE INDEX IF NOT EXISTS idx_products_manufacturer ON products(manufacturerId);

CREATE TABLE IF NOT EXISTS product_packages (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  productId INTEGER NOT NULL,
  description TEXT NOT NULL,
  size TEXT,
  unitPrice TEXT,
  packagePrice TEXT,
  quantity INTEGER,
  unitOfMeasure TEXT,
  isDefault INTEGER NOT NULL DEFAULT 0,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(productId) REFERENCES products(id)
);
CREATE INDEX IF NOT EXISTS idx_product_packages_product ON product_packages(productId);

CREATE TABLE IF NOT EXISTS import_runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  source TEXT NOT NULL,
  imported INTEGER NOT NULL,
  skippedJson TEXT NOT NULL,
  totalMs REAL NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

var referenceTables = map[internal.ReferenceKind]string{
	internal.KindManufacturer: "manufacturers",
	internal.KindDosageForm:   "dosage_forms",
	internal.KindGeneric:      "generics",
	internal.KindMedicineType: "medicine_types",
}

// EnsureCategory gets or creates the product category by name. The
// insert is conflict-safe so repeated runs reuse the same row.
func (d *DB) EnsureCategory(name, description string) (internal.ProductCategory, error) {
	_, err := d.conn.Exec(`
INSERT INTO product_categories (name, description) VALUES (?, ?)
ON CONFLICT(name) DO NOTHING
`, name, description)
	if err != nil {
		return internal.ProductCategory{}, err
	}

	var cat internal.ProductCategory
	err = d.conn.QueryRow(`SELECT id, name, description FROM product_categories WHERE name = ?`, name).
		Scan(&cat.ID, &cat.Name, &cat.Description)
	if err != nil {
		return internal.ProductCategory{}, err
	}
	return cat, nil
}

// GetOrCreateReference resolves a reference entity by exact name,
// creating it when absent. An empty name resolves to nil, which the
// caller stores as an absent link. Only dosage forms carry a slug.
func (d *DB) GetOrCreateReference(kind internal.ReferenceKind, name string, slug *string) (*internal.ReferenceEntity, error) {
	if name == "" {
		return nil, nil
	}
	table, ok := referenceTables[kind]
	if !ok {
		return nil, fmt.Errorf("unknown reference kind: %s", kind)
	}

	var err error
	if kind == internal.KindDosageForm {
		_, err = d.conn.Exec(
			`INSERT INTO dosage_forms (name, slug) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
			name, slug)
	} else {
		_, err = d.conn.Exec(
			fmt.Sprintf(`INSERT INTO %s (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, table),
			name)
	}
	if err != nil {
		return nil, err
	}

	return d.findReference(kind, name)
}

func (d *DB) findReference(kind internal.ReferenceKind, name string) (*internal.ReferenceEntity, error) {
	table := referenceTables[kind]

	var ent internal.ReferenceEntity
	var err error
	if kind == internal.KindDosageForm {
		err = d.conn.QueryRow(`SELECT id, name, slug FROM dosage_forms WHERE name = ?`, name).
			Scan(&ent.ID, &ent.Name, &ent.Slug)
	} else {
		err = d.conn.QueryRow(fmt.Sprintf(`SELECT id, name FROM %s WHERE name = ?`, table), name).
			Scan(&ent.ID, &ent.Name)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ent, nil
}

func (d *DB) FindProductByBrandID(brandID int64) (*internal.ProductRecord, error) {
	var p internal.ProductRecord
	var prescription int
	err := d.conn.QueryRow(`
SELECT id, brandId, name, slug, categoryId, manufacturerId, dosageFormId, genericId, medicineTypeId, strength, requiresPrescription
FROM products WHERE brandId = ?
`, brandID).Scan(
		&p.ID, &p.BrandID, &p.Name, &p.Slug, &p.CategoryID,
		&p.ManufacturerID, &p.DosageFormID, &p.GenericID, &p.MedicineTypeID,
		&p.Strength, &prescription,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.RequiresPrescription = prescription != 0
	return &p, nil
}

// UpsertProduct creates or updates a product keyed by brandId. The
// conflict branch overwrites name, slug, category, reference links and
// strength but leaves requiresPrescription as stored, so a flag set
// after the first import survives re-imports.
func (d *DB) UpsertProduct(p internal.ProductRecord) (internal.ProductRecord, error) {
	_, err := d.conn.Exec(`
INSERT INTO products (
  brandId, name, slug, categoryId, manufacturerId, dosageFormId, genericId, medicineTypeId,
  strength, requiresPrescription
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
ON CONFLICT(brandId) DO UPDATE SET
  name=excluded.name,
  slug=excluded.slug,
  categoryId=excluded.categoryId,
  manufacturerId=excluded.manufacturerId,
  dosageFormId=excluded.dosageFormId,
  genericId=excluded.genericId,
  medicineTypeId=excluded.medicineTypeId,
  strength=excluded.strength,
  updatedAt=CURRENT_TIMESTAMP
`, p.BrandID, p.Name, p.Slug, p.CategoryID,
		p.ManufacturerID, p.DosageFormID, p.GenericID, p.MedicineTypeID,
		p.Strength)
	if err != nil {
		return internal.ProductRecord{}, err
	}

	stored, err := d.FindProductByBrandID(p.BrandID)
	if err != nil {
		return internal.ProductRecord{}, err
	}
	if stored == nil {
		return internal.ProductRecord{}, errors.New("failed to upsert product")
	}
	return *stored, nil
}

// SetRequiresPrescription flips the prescription flag for a product.
// Imports never touch the flag once the row exists, so this is the
// only way it changes after the first import.
func (d *DB) SetRequiresPrescription(brandID int64, value bool) error {
	v := 0
	if value {
		v = 1
	}
	res, err := d.conn.Exec(`UPDATE products SET requiresPrescription = ?, updatedAt = CURRENT_TIMESTAMP WHERE brandId = ?`, v, brandID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("product not found: brandId=%d", brandID)
	}
	return nil
}

// ReplacePackages swaps a product's package rows for the given drafts
// in one transaction, so re-importing a row never accumulates
// duplicate packages.
func (d *DB) ReplacePackages(productID int64, drafts []internal.PackageDraft) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM product_packages WHERE productId = ?`, productID); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
INSERT INTO product_packages (productId, description, size, unitPrice, packagePrice, quantity, unitOfMeasure, isDefault)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	isDefault := 0
	if len(drafts) == 1 {
		isDefault = 1
	}
	for _, draft := range drafts {
		var unitPrice, packagePrice *string
		if draft.UnitPrice != nil {
			s := draft.UnitPrice.String()
			unitPrice = &s
		}
		if draft.PackagePrice != nil {
			s := draft.PackagePrice.String()
			packagePrice = &s
		}
		var size *string
		if draft.Size != "" {
			size = &draft.Size
		}
		if _, err := stmt.Exec(productID, draft.Description, size, unitPrice, packagePrice, draft.Quantity, draft.Unit, isDefault); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) ListPackages(productID int64) ([]internal.PackageRecord, error) {
	rows, err := d.conn.Query(`
SELECT id, productId, description, size, unitPrice, packagePrice, quantity, unitOfMeasure, isDefault
FROM product_packages WHERE productId = ? ORDER BY id ASC
`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.PackageRecord
	for rows.Next() {
		rec, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanPackage(rows *sql.Rows) (internal.PackageRecord, error) {
	var rec internal.PackageRecord
	var size, unitPrice, packagePrice, unit sql.NullString
	var quantity sql.NullInt64
	var isDefault int
	if err := rows.Scan(&rec.ID, &rec.ProductID, &rec.Description, &size, &unitPrice, &packagePrice, &quantity, &unit, &isDefault); err != nil {
		return internal.PackageRecord{}, err
	}
	if size.Valid {
		rec.Size = size.String
	}
	if unitPrice.Valid {
		if parsed, ok := parseStoredDecimal(unitPrice.String); ok {
			rec.UnitPrice = parsed
		}
	}
	if packagePrice.Valid {
		if parsed, ok := parseStoredDecimal(packagePrice.String); ok {
			rec.PackagePrice = parsed
		}
	}
	if quantity.Valid {
		q := int(quantity.Int64)
		rec.Quantity = &q
	}
	if unit.Valid {
		rec.Unit = &unit.String
	}
	rec.IsDefault = isDefault != 0
	return rec, nil
}

func parseStoredDecimal(value string) (*decimal.Decimal, bool) {
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return nil, false
	}
	return &parsed, true
}

func (d *DB) InsertImportRun(run internal.ImportRun) error {
	skippedJSON, _ := json.Marshal(run.Skipped)
	_, err := d.conn.Exec(`
INSERT INTO import_runs (traceId, source, imported, skippedJson, totalMs)
VALUES (?, ?, ?, ?, ?)
`, run.TraceID, run.Source, run.Imported, string(skippedJSON), run.TotalMs)
	return err
}

func (d *DB) Stats() (internal.CatalogStats, error) {
	var stats internal.CatalogStats
	counts := []struct {
		table string
		dest  *int
	}{
		{"products", &stats.Products},
		{"product_packages", &stats.Packages},
		{"manufacturers", &stats.Manufacturers},
		{"dosage_forms", &stats.DosageForms},
		{"generics", &stats.Generics},
		{"medicine_types", &stats.MedicineTypes},
		{"import_runs", &stats.ImportRuns},
	}
	for _, c := range counts {
		if err := d.conn.QueryRow(`SELECT COUNT(*) FROM ` + c.table).Scan(c.dest); err != nil {
			return internal.CatalogStats{}, err
		}
	}
	return stats, nil
}

// CatalogExportRows returns every product left-joined with its
// packages, ordered for workbook export.
func (d *DB) CatalogExportRows() ([]internal.CatalogExportRow, error) {
	rows, err := d.conn.Query(`
SELECT
  p.brandId, p.name, p.slug, mt.name, df.name, g.name, p.strength, m.name,
  pp.description, pp.size, pp.unitPrice, pp.packagePrice, pp.quantity, pp.unitOfMeasure, pp.isDefault
FROM products p
LEFT JOIN medicine_types mt ON mt.id = p.medicineTypeId
LEFT JOIN dosage_forms df ON df.id = p.dosageFormId
LEFT JOIN generics g ON g.id = p.genericId
LEFT JOIN manufacturers m ON m.id = p.manufacturerId
LEFT JOIN product_packages pp ON pp.productId = p.id
ORDER BY p.brandId ASC, pp.id ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.CatalogExportRow
	for rows.Next() {
		var row internal.CatalogExportRow
		var quantity sql.NullInt64
		var isDefault sql.NullInt64
		if err := rows.Scan(
			&row.BrandID, &row.Name, &row.Slug, &row.MedicineType, &row.DosageForm,
			&row.Generic, &row.Strength, &row.Manufacturer,
			&row.PackageDescription, &row.PackageSize, &row.UnitPrice, &row.PackagePrice,
			&quantity, &row.UnitOfMeasure, &isDefault,
		); err != nil {
			return nil, err
		}
		if quantity.Valid {
			q := int(quantity.Int64)
			row.Quantity = &q
		}
		if isDefault.Valid {
			b := isDefault.Int64 != 0
			row.IsDefault = &b
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
