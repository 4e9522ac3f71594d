package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"healio/internal"
	"healio/internal/config"
	"healio/internal/pipeline"
	"healio/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)
	setupLogging(cfg.LogLevel)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	cmd := os.Args[1]
	switch cmd {
	case "import:csv":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "catalog csv path")
		report := fs.String("report", "", "optional xlsx report path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*file) == "" {
			must(fmt.Errorf("--file is required"))
		}

		in, err := os.Open(*file)
		must(err)
		svc := pipeline.NewImportService(db, cfg)
		result := svc.ImportCSV(in, "csv:"+filepath.Base(*file))
		_ = in.Close()
		finishImport(cfg, result, *report)
	case "import:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "catalog xlsx path")
		sheet := fs.String("sheet", "", "sheet name (default: first sheet)")
		report := fs.String("report", "", "optional xlsx report path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*file) == "" {
			must(fmt.Errorf("--file is required"))
		}

		content, err := os.ReadFile(*file)
		must(err)
		svc := pipeline.NewImportService(db, cfg)
		result := svc.ImportXLSX(content, *sheet, "xlsx:"+filepath.Base(*file))
		finishImport(cfg, result, *report)
	case "product:prescription":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		brandID := fs.Int64("brandId", 0, "product brand id")
		value := fs.Bool("required", true, "whether a prescription is required")
		_ = fs.Parse(os.Args[2:])
		if *brandID == 0 {
			must(fmt.Errorf("--brandId is required"))
		}
		must(db.SetRequiresPrescription(*brandID, *value))
		fmt.Printf("brandId=%d requiresPrescription=%t\n", *brandID, *value)
	case "catalog:stats":
		stats, err := db.Stats()
		must(err)
		fmt.Printf("products=%d packages=%d manufacturers=%d dosageForms=%d generics=%d medicineTypes=%d importRuns=%d\n",
			stats.Products, stats.Packages, stats.Manufacturers, stats.DosageForms, stats.Generics, stats.MedicineTypes, stats.ImportRuns)
	case "catalog:export":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--out is required"))
		}

		rows, err := db.CatalogExportRows()
		must(err)
		if len(rows) == 0 {
			must(fmt.Errorf("catalog is empty, nothing to export"))
		}
		must(pipeline.ExportCatalogToXLSX(rows, *out))
		fmt.Printf("exported %d rows to %s\n", len(rows), *out)
	default:
		usage()
		os.Exit(1)
	}
}

func finishImport(cfg config.Config, result internal.ImportResult, reportPath string) {
	if reportPath == "" && cfg.AutoReport {
		reportPath = filepath.Join(cfg.OutputDir, fmt.Sprintf("import-%s.xlsx", time.Now().Format("20060102-150405")))
	}
	if reportPath != "" {
		must(pipeline.ExportImportReport(result, reportPath))
		fmt.Printf("report written to %s\n", reportPath)
	}

	if !result.Success {
		must(fmt.Errorf("%s", result.Error))
	}

	fmt.Printf("%s (skipped %d rows)\n", result.Message, len(result.Skipped))
	for i, reason := range result.Skipped {
		if i >= cfg.MaxSkipDetail {
			fmt.Printf("  ... and %d more, see the xlsx report\n", len(result.Skipped)-i)
			break
		}
		fmt.Printf("  %s\n", reason)
	}
}

func setupLogging(level string) {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func usage() {
	fmt.Println("usage: healio <command>")
	fmt.Println("commands:")
	fmt.Println("  import:csv --file=catalog.csv [--report=./out/report.xlsx]")
	fmt.Println("  import:xlsx --file=catalog.xlsx [--sheet=Sheet1] [--report=./out/report.xlsx]")
	fmt.Println("  product:prescription --brandId=123 [--required=false]")
	fmt.Println("  catalog:stats")
	fmt.Println("  catalog:export --out=./out/catalog.xlsx")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
