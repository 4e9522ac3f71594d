package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"healio/internal"
)

// ExportImportReport writes one import run to a workbook: a summary
// block on top, then one row per skip reason.
func ExportImportReport(result internal.ImportResult, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	set := func(col, row int, value any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, value)
	}

	set(1, 1, "success")
	set(2, 1, result.Success)
	set(1, 2, "message")
	set(2, 2, result.Message)
	set(1, 3, "error")
	set(2, 3, result.Error)
	set(1, 4, "imported")
	set(2, 4, result.Imported)
	set(1, 5, "skipped")
	set(2, 5, len(result.Skipped))

	set(1, 7, "skip_reason")
	for i, reason := range result.Skipped {
		set(1, 8+i, reason)
	}

	return saveWorkbook(f, outputPath)
}

// ExportCatalogToXLSX writes the product/package join to a workbook,
// one row per package (or one bare row for package-less products).
func ExportCatalogToXLSX(rows []internal.CatalogExportRow, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{
		"brand_id", "name", "slug", "medicine_type", "dosage_form", "generic", "strength", "manufacturer",
		"package_description", "package_size", "unit_price", "package_price", "quantity", "unit_of_measure", "is_default",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, row.BrandID)
		set(2, row.Name)
		set(3, row.Slug)
		set(4, derefString(row.MedicineType))
		set(5, derefString(row.DosageForm))
		set(6, derefString(row.Generic))
		set(7, derefString(row.Strength))
		set(8, derefString(row.Manufacturer))
		set(9, derefString(row.PackageDescription))
		set(10, derefString(row.PackageSize))
		set(11, derefString(row.UnitPrice))
		set(12, derefString(row.PackagePrice))
		set(13, derefInt(row.Quantity))
		set(14, derefString(row.UnitOfMeasure))
		set(15, derefBool(row.IsDefault))
	}

	return saveWorkbook(f, outputPath)
}

func saveWorkbook(f *excelize.File, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefInt(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}

func derefBool(v *bool) any {
	if v == nil {
		return ""
	}
	return *v
}
