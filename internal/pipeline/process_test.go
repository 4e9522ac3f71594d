package pipeline

import (
	"path/filepath"
	"strings"
	"testing"

	"healio/internal/config"
	"healio/internal/storage"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		DBPath:         filepath.Join(t.TempDir(), "healio.db"),
		CurrencySymbol: "৳",
		CategoryName:   "Medicine",
		CategoryDesc:   "Pharmaceutical medicines",
	}
}

func newTestService(t *testing.T) (*ImportService, *storage.DB) {
	t.Helper()
	cfg := testConfig(t)
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewImportService(db, cfg), db
}

const csvHeader = "brand id,brand name,type,slug,dosage form,generic,strength,manufacturer,package container,package size\n"

func TestImportCSV(t *testing.T) {
	svc, db := newTestService(t)

	input := csvHeader +
		"123,Napa,allopathic,napa-500,Tablet,Paracetamol,500 mg,Beximco Pharmaceuticals Ltd.,Unit Price: ৳ 1.20 (10's pack: ৳ 11.50),500 mg\n" +
		"456,Seclo,allopathic,seclo-20,Capsule,Omeprazole,20 mg,Square Pharmaceuticals PLC,(14's pack: ৳ 98.00),20 mg\n"

	result := svc.ImportCSV(strings.NewReader(input), "test")
	if !result.Success {
		t.Fatalf("result=%+v", result)
	}
	if result.Imported != 2 {
		t.Fatalf("imported=%d", result.Imported)
	}
	if result.Message != "Successfully imported 2 products" {
		t.Fatalf("message=%q", result.Message)
	}
	if len(result.Skipped) != 0 {
		t.Fatalf("skipped=%v", result.Skipped)
	}

	product, err := db.FindProductByBrandID(123)
	if err != nil {
		t.Fatal(err)
	}
	if product == nil || product.Name != "Napa" {
		t.Fatalf("product=%+v", product)
	}
	if product.ManufacturerID == nil || product.GenericID == nil || product.DosageFormID == nil || product.MedicineTypeID == nil {
		t.Fatalf("missing reference links: %+v", product)
	}
	if product.Strength == nil || *product.Strength != "500 mg" {
		t.Fatalf("strength=%v", product.Strength)
	}

	packages, err := db.ListPackages(product.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(packages) != 2 {
		t.Fatalf("packages=%d", len(packages))
	}
	if packages[0].IsDefault || packages[1].IsDefault {
		t.Fatalf("multi-package row must not have a default: %+v", packages)
	}

	second, err := db.FindProductByBrandID(456)
	if err != nil {
		t.Fatal(err)
	}
	solePackages, err := db.ListPackages(second.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(solePackages) != 1 || !solePackages[0].IsDefault {
		t.Fatalf("sole package must be default: %+v", solePackages)
	}
}

func TestImportCSVEmptyStream(t *testing.T) {
	svc, _ := newTestService(t)

	result := svc.ImportCSV(strings.NewReader(""), "test")
	if result.Success {
		t.Fatalf("result=%+v", result)
	}
	if result.Error == "" {
		t.Fatal("error not set")
	}
	if result.Imported != 0 {
		t.Fatalf("imported=%d", result.Imported)
	}
}

func TestImportCSVHeaderOnly(t *testing.T) {
	svc, _ := newTestService(t)

	result := svc.ImportCSV(strings.NewReader(csvHeader), "test")
	if !result.Success {
		t.Fatalf("result=%+v", result)
	}
	if result.Imported != 0 {
		t.Fatalf("imported=%d", result.Imported)
	}
	if result.Message != "Successfully imported 0 products" {
		t.Fatalf("message=%q", result.Message)
	}
}

func TestImportCSVInsufficientColumns(t *testing.T) {
	svc, _ := newTestService(t)

	input := csvHeader + "1,a,b,c,d\n"
	result := svc.ImportCSV(strings.NewReader(input), "test")
	if !result.Success {
		t.Fatalf("result=%+v", result)
	}
	if result.Imported != 0 {
		t.Fatalf("imported=%d", result.Imported)
	}
	if len(result.Skipped) != 1 || !strings.Contains(result.Skipped[0], "Insufficient columns") {
		t.Fatalf("skipped=%v", result.Skipped)
	}
	if !strings.HasPrefix(result.Skipped[0], "Line 2:") {
		t.Fatalf("skipped=%v", result.Skipped)
	}
}

func TestImportCSVIntraFileDedup(t *testing.T) {
	svc, db := newTestService(t)

	input := csvHeader +
		"7,First,t,first,Tablet,Gen,,Maker,blob,\n" +
		"7,Second,t,second,Tablet,Gen,,Maker,blob,\n"

	result := svc.ImportCSV(strings.NewReader(input), "test")
	if result.Imported != 1 {
		t.Fatalf("imported=%d", result.Imported)
	}
	// the duplicate is neither imported nor counted as skipped
	if len(result.Skipped) != 0 {
		t.Fatalf("skipped=%v", result.Skipped)
	}

	product, err := db.FindProductByBrandID(7)
	if err != nil {
		t.Fatal(err)
	}
	if product.Name != "First" {
		t.Fatalf("name=%q", product.Name)
	}
}

func TestImportCSVInvalidBrandID(t *testing.T) {
	svc, _ := newTestService(t)

	input := csvHeader + "notanumber,a,b,c,d,e,f,g,h\n"
	result := svc.ImportCSV(strings.NewReader(input), "test")
	if result.Imported != 0 {
		t.Fatalf("imported=%d", result.Imported)
	}
	if len(result.Skipped) != 1 || !strings.Contains(result.Skipped[0], "invalid brand id") {
		t.Fatalf("skipped=%v", result.Skipped)
	}
}

func TestImportCSVQuotedManufacturer(t *testing.T) {
	svc, db := newTestService(t)

	input := csvHeader +
		`9,Brand,t,brand,Tablet,Gen,,"Maker, Inc.",blob,` + "\n"
	result := svc.ImportCSV(strings.NewReader(input), "test")
	if result.Imported != 1 {
		t.Fatalf("result=%+v", result)
	}

	product, err := db.FindProductByBrandID(9)
	if err != nil {
		t.Fatal(err)
	}
	if product.ManufacturerID == nil {
		t.Fatal("manufacturer link missing")
	}
}

func TestImportCSVIdempotent(t *testing.T) {
	svc, db := newTestService(t)

	input := csvHeader +
		"123,Napa,allopathic,napa-500,Tablet,Paracetamol,500 mg,Beximco Pharmaceuticals Ltd.,(10's pack: ৳ 11.50),500 mg\n"

	first := svc.ImportCSV(strings.NewReader(input), "test")
	second := svc.ImportCSV(strings.NewReader(input), "test")
	if first.Imported != 1 || second.Imported != 1 {
		t.Fatalf("imported: first=%d second=%d", first.Imported, second.Imported)
	}

	stats, err := db.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Products != 1 {
		t.Fatalf("products=%d", stats.Products)
	}
	if stats.Manufacturers != 1 || stats.Generics != 1 || stats.DosageForms != 1 || stats.MedicineTypes != 1 {
		t.Fatalf("duplicate references: %+v", stats)
	}
	if stats.Packages != 1 {
		t.Fatalf("packages=%d", stats.Packages)
	}
	if stats.ImportRuns != 2 {
		t.Fatalf("importRuns=%d", stats.ImportRuns)
	}
}

func TestImportCSVReimportReplacesPackages(t *testing.T) {
	svc, db := newTestService(t)

	first := csvHeader + "5,Brand,t,brand,Tablet,Gen,,Maker,(10's pack: ৳ 100.00),\n"
	updated := csvHeader + "5,Brand,t,brand,Tablet,Gen,,Maker,Unit Price: ৳ 2.00 (10's pack: ৳ 18.00),\n"

	if res := svc.ImportCSV(strings.NewReader(first), "test"); res.Imported != 1 {
		t.Fatalf("first=%+v", res)
	}
	if res := svc.ImportCSV(strings.NewReader(updated), "test"); res.Imported != 1 {
		t.Fatalf("second=%+v", res)
	}

	product, err := db.FindProductByBrandID(5)
	if err != nil {
		t.Fatal(err)
	}
	packages, err := db.ListPackages(product.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(packages) != 2 {
		t.Fatalf("packages=%d", len(packages))
	}
	if packages[0].Description != "Unit Price" || packages[1].Description != "10's pack" {
		t.Fatalf("descriptions=%q,%q", packages[0].Description, packages[1].Description)
	}
}

func TestImportCSVPreservesPrescriptionFlag(t *testing.T) {
	svc, db := newTestService(t)

	input := csvHeader + "11,Brand,t,brand,Tablet,Gen,,Maker,blob,\n"
	if res := svc.ImportCSV(strings.NewReader(input), "test"); res.Imported != 1 {
		t.Fatalf("first=%+v", res)
	}
	if err := db.SetRequiresPrescription(11, true); err != nil {
		t.Fatal(err)
	}
	if res := svc.ImportCSV(strings.NewReader(input), "test"); res.Imported != 1 {
		t.Fatalf("second=%+v", res)
	}

	product, err := db.FindProductByBrandID(11)
	if err != nil {
		t.Fatal(err)
	}
	if !product.RequiresPrescription {
		t.Fatal("prescription flag was reset by re-import")
	}
}

func TestImportCSVSentinelBlobYieldsNoPackages(t *testing.T) {
	svc, db := newTestService(t)

	input := csvHeader + "13,Brand,t,brand,Tablet,Gen,,Maker,Price Unavailable,\n"
	if res := svc.ImportCSV(strings.NewReader(input), "test"); res.Imported != 1 {
		t.Fatalf("result=%+v", res)
	}

	product, err := db.FindProductByBrandID(13)
	if err != nil {
		t.Fatal(err)
	}
	packages, err := db.ListPackages(product.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(packages) != 0 {
		t.Fatalf("packages=%+v", packages)
	}
}

func TestImportCSVHandlesBOM(t *testing.T) {
	svc, db := newTestService(t)

	input := "﻿" + csvHeader + "21,Brand,t,brand,Tablet,Gen,,Maker,blob,\n"
	if res := svc.ImportCSV(strings.NewReader(input), "test"); res.Imported != 1 {
		t.Fatalf("result=%+v", res)
	}
	if product, err := db.FindProductByBrandID(21); err != nil || product == nil {
		t.Fatalf("product=%v err=%v", product, err)
	}
}
