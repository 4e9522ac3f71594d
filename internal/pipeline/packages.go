package pipeline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"healio/internal"
	"healio/internal/util"
)

// containerWords ordered by priority; the first one found anywhere in
// the blob labels every volume/weight package of that blob.
var containerWords = []string{"bottle", "container", "vial", "tube", "sachet", "drop"}

// genericUnitKeywords ordered by priority for the fallback stage.
var genericUnitKeywords = []struct {
	keyword string
	unit    string
}{
	{"ml", "ml"},
	{"gm", "gm"},
	{"mg", "mg"},
	{"pack", "pack"},
	{"tablet", "tablets"},
	{"capsule", "capsules"},
	{"vial", "vial"},
	{"bottle", "bottle"},
	{"container", "container"},
}

// sentinel blob the catalog uses for rows with no pricing at all.
const priceUnavailable = "Price Unavailable"

// Extractor turns one free-text pricing blob into an ordered,
// description-deduplicated list of package drafts. Stages run in a
// fixed cascade and share one seen set, so a description produced by
// an earlier stage is never re-emitted by a later one.
type Extractor struct {
	unitPriceRe *regexp.Regexp
	packRe      *regexp.Regexp
	volumeRe    *regexp.Regexp
	genericRe   *regexp.Regexp
	measureRe   *regexp.Regexp
	qtyRe       *regexp.Regexp
}

func NewExtractor(currency string) *Extractor {
	cur := regexp.QuoteMeta(currency)
	amount := `([\d,]+(?:\.\d+)?)`

	return &Extractor{
		unitPriceRe: regexp.MustCompile(`(?i)unit\s+price\s*:\s*` + cur + `\s*` + amount),
		packRe:      regexp.MustCompile(`(?i)\((\d+)\s*['’]s\s+pack\s*:\s*` + cur + `\s*` + amount + `\)`),
		volumeRe:    regexp.MustCompile(`(?i)(\d+)\s*(ml|gm|mg|g)\s+(bottle|container|vial|tube|sachet|drop)s?\s*:\s*` + cur + `\s*` + amount),
		genericRe:   regexp.MustCompile(`([^:]+):\s*` + cur + `\s*` + amount),
		measureRe:   regexp.MustCompile(`(?i)^\d+\s*(ml|gm|mg|g)\b`),
		qtyRe:       regexp.MustCompile(`(?i)(\d+)\s*['’]?s?\s*(?:pack|tablet|capsule|ml|gm|mg|g|vial|bottle|container)`),
	}
}

type extractState struct {
	blob     string
	sizeHint string

	seen   map[string]bool
	drafts []internal.PackageDraft

	// stage 1's amount, reused by stage 2 as the per-unit price.
	unitPriceFallback *decimal.Decimal
}

func (s *extractState) emit(draft internal.PackageDraft) {
	if s.seen[draft.Description] {
		return
	}
	s.seen[draft.Description] = true
	s.drafts = append(s.drafts, draft)
}

// Extract runs the cascade over one blob. An empty blob yields no
// drafts; so does the bare "Price Unavailable" sentinel.
func (e *Extractor) Extract(blob, sizeHint string) []internal.PackageDraft {
	if blob == "" {
		return nil
	}

	st := &extractState{
		blob:     blob,
		sizeHint: sizeHint,
		seen:     make(map[string]bool),
	}

	stages := []func(*extractState){
		e.unitPriceStage,
		e.packStage,
		e.volumeStage,
		e.genericStage,
		e.finalFallbackStage,
	}
	for _, stage := range stages {
		stage(st)
	}

	return st.drafts
}

// unitPriceStage matches "Unit Price: <currency> <amount>" and emits
// at most one draft. The amount doubles as the fallback unit price for
// the pack stage.
func (e *Extractor) unitPriceStage(st *extractState) {
	m := e.unitPriceRe.FindStringSubmatch(st.blob)
	if m == nil {
		return
	}
	amount, ok := util.ParseAmount(m[1])
	if !ok {
		return
	}

	st.unitPriceFallback = &amount
	qty := 1
	unit := "pieces"
	st.emit(internal.PackageDraft{
		Description:  "Unit Price",
		Size:         st.sizeHint,
		UnitPrice:    &amount,
		PackagePrice: &amount,
		Quantity:     &qty,
		Unit:         &unit,
	})
}

// packStage matches "(N's pack: <currency> <amount>)" occurrences.
// The unit price is the stage-1 amount when present, otherwise the
// pack price divided by its count, half-up at two decimal places.
func (e *Extractor) packStage(st *extractState) {
	for _, m := range e.packRe.FindAllStringSubmatch(st.blob, -1) {
		count, err := strconv.Atoi(m[1])
		if err != nil || count <= 0 {
			continue
		}
		amount, ok := util.ParseAmount(m[2])
		if !ok {
			continue
		}

		unitPrice := st.unitPriceFallback
		if unitPrice == nil {
			per := util.DivHalfUp(amount, int64(count), 2)
			unitPrice = &per
		}

		unit := "pack"
		packAmount := amount
		st.emit(internal.PackageDraft{
			Description:  fmt.Sprintf("%d's pack", count),
			Size:         st.sizeHint,
			UnitPrice:    unitPrice,
			PackagePrice: &packAmount,
			Quantity:     &count,
			Unit:         &unit,
		})
	}
}

// volumeStage matches "<amount> <measure> <container>: <currency>
// <price>". Every match in a blob shares one container label, chosen
// by scanning the whole blob in priority order.
func (e *Extractor) volumeStage(st *extractState) {
	matches := e.volumeRe.FindAllStringSubmatch(st.blob, -1)
	if len(matches) == 0 {
		return
	}

	label := containerLabel(st.blob)
	for _, m := range matches {
		amount, err := strconv.Atoi(m[1])
		if err != nil || amount <= 0 {
			continue
		}
		price, ok := util.ParseAmount(m[4])
		if !ok {
			continue
		}

		per := util.DivHalfUp(price, int64(amount), 4)
		unit := strings.ToLower(m[2])
		st.emit(internal.PackageDraft{
			Description:  fmt.Sprintf("%d %s %s", amount, unit, label),
			Size:         st.sizeHint,
			UnitPrice:    &per,
			PackagePrice: &price,
			Quantity:     &amount,
			Unit:         &unit,
		})
	}
}

func containerLabel(blob string) string {
	lower := strings.ToLower(blob)
	for _, word := range containerWords {
		if strings.Contains(lower, word) {
			return word
		}
	}
	return "unit"
}

// genericStage is the catch-all "<description>: <currency> <amount>"
// pass. It only runs when the targeted stages produced nothing, and it
// refuses candidates that look like stage 1-3 text.
func (e *Extractor) genericStage(st *extractState) {
	if len(st.drafts) > 0 {
		return
	}

	for _, m := range e.genericRe.FindAllStringSubmatch(st.blob, -1) {
		description := strings.TrimSpace(m[1])
		if description == "" {
			continue
		}
		lower := strings.ToLower(description)
		if strings.Contains(lower, "unit price") || strings.Contains(lower, "pack") || e.measureRe.MatchString(description) {
			continue
		}
		amount, ok := util.ParseAmount(m[2])
		if !ok {
			continue
		}

		qty := 1
		if qm := e.qtyRe.FindStringSubmatch(description); qm != nil {
			if parsed, err := strconv.Atoi(qm[1]); err == nil && parsed > 0 {
				qty = parsed
			}
		}

		unitPrice := amount
		if qty > 1 {
			unitPrice = util.DivHalfUp(amount, int64(qty), 4)
		}

		unit := genericUnit(lower)
		packAmount := amount
		st.emit(internal.PackageDraft{
			Description:  description,
			Size:         st.sizeHint,
			UnitPrice:    &unitPrice,
			PackagePrice: &packAmount,
			Quantity:     &qty,
			Unit:         &unit,
		})
	}
}

func genericUnit(lower string) string {
	for _, kw := range genericUnitKeywords {
		if strings.Contains(lower, kw.keyword) {
			return kw.unit
		}
	}
	return "pieces"
}

// finalFallbackStage keeps the raw blob as a bare description when no
// stage matched anything, unless the blob is the pricing sentinel.
func (e *Extractor) finalFallbackStage(st *extractState) {
	if len(st.drafts) > 0 {
		return
	}
	if strings.EqualFold(st.blob, priceUnavailable) {
		return
	}
	st.emit(internal.PackageDraft{
		Description: st.blob,
		Size:        st.sizeHint,
	})
}
