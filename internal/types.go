package internal

import "github.com/shopspring/decimal"

type ReferenceKind string

const (
	KindManufacturer ReferenceKind = "manufacturer"
	KindDosageForm   ReferenceKind = "dosage_form"
	KindGeneric      ReferenceKind = "generic"
	KindMedicineType ReferenceKind = "medicine_type"
)

// ReferenceEntity is a uniquely-named lookup record linked from a product.
// Identity is the name; storage enforces uniqueness per kind.
type ReferenceEntity struct {
	ID   int64
	Name string
	Slug *string
}

type ProductCategory struct {
	ID          int64
	Name        string
	Description *string
}

// CatalogRow is one normalized line of the catalog export. Rows are
// ephemeral; only the entities derived from them persist.
type CatalogRow struct {
	LineNo           int
	BrandID          int64
	BrandName        string
	MedicineTypeName string
	Slug             string
	DosageFormName   string
	GenericName      string
	Strength         string
	ManufacturerName string
	PackageBlob      string
	SizeHint         string
}

// ResolvedRefs carries the per-row reference links. A nil id means the
// row had no value for that kind.
type ResolvedRefs struct {
	ManufacturerID *int64
	DosageFormID   *int64
	GenericID      *int64
	MedicineTypeID *int64
}

type ProductRecord struct {
	ID                   int64
	BrandID              int64
	Name                 string
	Slug                 string
	CategoryID           int64
	ManufacturerID       *int64
	DosageFormID         *int64
	GenericID            *int64
	MedicineTypeID       *int64
	Strength             *string
	RequiresPrescription bool
}

// PackageDraft is one purchasable packaging variant extracted from a
// row's pricing blob. Price and quantity fields stay nil when the stage
// that produced the draft could not determine them.
type PackageDraft struct {
	Description  string
	Size         string
	UnitPrice    *decimal.Decimal
	PackagePrice *decimal.Decimal
	Quantity     *int
	Unit         *string
}

type PackageRecord struct {
	ID        int64
	ProductID int64
	PackageDraft
	IsDefault bool
}

type ImportResult struct {
	Success  bool
	Message  string
	Error    string
	Imported int
	Skipped  []string
}

type ImportRun struct {
	TraceID  string
	Source   string
	Imported int
	Skipped  []string
	TotalMs  float64
}

type CatalogStats struct {
	Products      int
	Packages      int
	Manufacturers int
	DosageForms   int
	Generics      int
	MedicineTypes int
	ImportRuns    int
}

// CatalogExportRow is one product joined with one of its packages for
// workbook export. Package fields are nil for products without packages.
type CatalogExportRow struct {
	BrandID            int64
	Name               string
	Slug               string
	MedicineType       *string
	DosageForm         *string
	Generic            *string
	Strength           *string
	Manufacturer       *string
	PackageDescription *string
	PackageSize        *string
	UnitPrice          *string
	PackagePrice       *string
	Quantity           *int
	UnitOfMeasure      *string
	IsDefault          *bool
}
