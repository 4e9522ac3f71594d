package pipeline

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"healio/internal"
)

var errInsufficientColumns = errors.New("Insufficient columns")

// errRowDropped marks rows that vanish silently: blank brand id or a
// brand id already seen this run. No skip reason is recorded and the
// row does not count against the run.
var errRowDropped = errors.New("row dropped")

// NormalizeRow maps tokenized fields onto the catalog column layout
// and trims every value. Rows with fewer than nine fields are
// rejected; the tenth column (size hint) is optional. seen tracks raw
// brand ids across the run; the first occurrence wins and later ones
// are dropped before the id is even parsed.
func NormalizeRow(fields []string, lineNo int, seen map[string]bool) (internal.CatalogRow, error) {
	if len(fields) < 9 {
		return internal.CatalogRow{}, errInsufficientColumns
	}

	brandIDRaw := strings.TrimSpace(fields[0])
	if brandIDRaw == "" || seen[brandIDRaw] {
		return internal.CatalogRow{}, errRowDropped
	}
	seen[brandIDRaw] = true

	brandID, err := strconv.ParseInt(brandIDRaw, 10, 64)
	if err != nil {
		return internal.CatalogRow{}, fmt.Errorf("invalid brand id %q", brandIDRaw)
	}

	row := internal.CatalogRow{
		LineNo:           lineNo,
		BrandID:          brandID,
		BrandName:        strings.TrimSpace(fields[1]),
		MedicineTypeName: strings.TrimSpace(fields[2]),
		Slug:             strings.TrimSpace(fields[3]),
		DosageFormName:   strings.TrimSpace(fields[4]),
		GenericName:      strings.TrimSpace(fields[5]),
		Strength:         strings.TrimSpace(fields[6]),
		ManufacturerName: strings.TrimSpace(fields[7]),
		PackageBlob:      strings.TrimSpace(fields[8]),
	}
	if len(fields) > 9 {
		row.SizeHint = strings.TrimSpace(fields[9])
	}

	return row, nil
}
