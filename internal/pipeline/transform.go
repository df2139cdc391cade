package pipeline

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"go-etl-pipeline/internal/dataset"
	"go-etl-pipeline/internal/model"
)

// Cleaning steps are applied in order by name. Each domain has a fixed list.
var (
	salesTransformations = []string{
		"dropIndexColumn",
		"dropDuplicates",
		"parseRatings",
		"parseRatingCounts",
		"parsePrices",
		"defaultDiscountPrice",
		"dropMissingActualPrice",
	}
	marketingTransformations = []string{
		"dropIndexColumn",
		"dropDuplicates",
		"deriveWeightInPounds",
		"normalizeAvailability",
		"normalizeCondition",
		"dropRareConditions",
		"parseShipping",
		"dropUnnamedAndWeight",
		"fillManufacturer",
		"dropEAN",
	}
	scrapingTransformations = []string{
		"fillArticleDefaults",
		"dropChosenTopicLink",
		"dropDuplicates",
	}
)

const (
	indexColumn = "Unnamed: 0"

	salesRatings       = "ratings"
	salesRatingCount   = "no_of_ratings"
	salesActualPrice   = "actual_price"
	salesDiscountPrice = "discount_price"

	marketingAvailability = "prices.availability"
	marketingCondition    = "prices.condition"
	marketingShipping     = "prices.shipping"
	marketingWeight       = "weight"
	marketingWeightPounds = "weightInPounds"
	marketingManufacturer = "manufacturer"
	marketingEAN          = "ean"

	scrapingChosenTopicLink = "topik_pilihan_link"
)

var (
	availableYes = map[string]bool{
		"YES": true, "TRUE": true, "SPECIAL ORDER": true, "IN STOCK": true,
		"32 AVAILABLE": true, "7 AVAILABLE": true,
	}
	availableNo = map[string]bool{
		"UNDEFINED": true, "OUT OF STOCK": true, "NO": true, "MORE ON THE WAY": true,
		"SOLD": true, "FALSE": true, "RETIRED": true,
	}

	poundsPattern = regexp.MustCompile(`(\d*\.?\d+)\s?(?:lbs?|pounds?)`)
	ouncesPattern = regexp.MustCompile(`(\d*\.?\d+)\s?(?:oz|ounces?)`)

	articleDefaults = []struct{ column, value string }{
		{"topik", "Iklan"},
		{"sub_topik", "Belum ditentukan"},
		{"topik_pilihan", "Bukan topik pilihan"},
		{"redaksi", "Anonim"},
		{"advetorial", "Non Advertorial"},
	}
)

// Transformations returns the cleaning steps of a domain.
func Transformations(domain model.Domain) ([]string, error) {
	switch domain {
	case model.DomainSales:
		return salesTransformations, nil
	case model.DomainMarketing:
		return marketingTransformations, nil
	case model.DomainScraping:
		return scrapingTransformations, nil
	default:
		return nil, eris.Errorf("no cleaning rule for domain %q", domain)
	}
}

// Clean applies a domain's cleaning rule to a copy of ds.
func Clean(domain model.Domain, ds *dataset.Dataset) (*dataset.Dataset, error) {
	steps, err := Transformations(domain)
	if err != nil {
		return nil, err
	}
	return applyTransformations(ds.Clone(), steps)
}

// applyTransformations applies the named steps in order.
func applyTransformations(ds *dataset.Dataset, transformations []string) (*dataset.Dataset, error) {
	for _, transform := range transformations {
		var err error
		switch transform {
		case "dropIndexColumn":
			ds = ds.DropColumns(indexColumn)
		case "dropDuplicates":
			ds.DropDuplicates()
		case "parseRatings":
			err = parseRatings(ds)
		case "parseRatingCounts":
			err = ds.Map(salesRatingCount, dataset.Int, parseRatingCount)
		case "parsePrices":
			if err = ds.Map(salesActualPrice, dataset.Float, parsePrice); err == nil {
				err = ds.Map(salesDiscountPrice, dataset.Float, parsePrice)
			}
		case "defaultDiscountPrice":
			err = defaultDiscountPrice(ds)
		case "dropMissingActualPrice":
			err = dropNull(ds, salesActualPrice)
		case "deriveWeightInPounds":
			err = deriveWeightInPounds(ds)
		case "normalizeAvailability":
			err = ds.Map(marketingAvailability, dataset.Text, normalizeAvailability)
		case "normalizeCondition":
			err = ds.Map(marketingCondition, dataset.Text, normalizeCondition)
		case "dropRareConditions":
			err = dropRareConditions(ds)
		case "parseShipping":
			err = ds.Map(marketingShipping, dataset.Int, parseShipping)
		case "dropUnnamedAndWeight":
			ds = ds.DropColumnsFunc(func(name string) bool {
				upper := strings.ToUpper(name)
				return strings.Contains(upper, "UNNAMED") || upper == "WEIGHT"
			})
		case "fillManufacturer":
			err = ds.FillNull(marketingManufacturer, "No Information")
		case "dropEAN":
			ds = ds.DropColumns(marketingEAN)
		case "fillArticleDefaults":
			for _, d := range articleDefaults {
				if err = ds.FillNull(d.column, d.value); err != nil {
					break
				}
			}
		case "dropChosenTopicLink":
			ds = ds.DropColumns(scrapingChosenTopicLink)
		default:
			return nil, eris.Errorf("unknown transformation: %s", transform)
		}
		if err != nil {
			return nil, eris.Wrapf(err, "transformation %s", transform)
		}
	}
	return ds, nil
}

// cellText returns the text form of a cell; non-text cells are stringified.
func cellText(v interface{}) (string, bool) {
	return dataset.AsText(v)
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseRatings(ds *dataset.Dataset) error {
	return ds.Map(salesRatings, dataset.Float, func(v interface{}) interface{} {
		s, ok := cellText(v)
		if !ok {
			return float64(0)
		}
		f, ok := parseFloat(strings.ReplaceAll(s, ",", "."))
		if !ok {
			return float64(0)
		}
		return f
	})
}

func parseRatingCount(v interface{}) interface{} {
	s, ok := cellText(v)
	if !ok {
		return nil
	}
	s = strings.NewReplacer(",", "", ".", "").Replace(strings.TrimSpace(s))
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return n
}

func parsePrice(v interface{}) interface{} {
	s, ok := cellText(v)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(strings.NewReplacer("₹", "", ",", "").Replace(s))
	if s == "" {
		return nil
	}
	f, ok := parseFloat(s)
	if !ok {
		return nil
	}
	return f
}

func defaultDiscountPrice(ds *dataset.Dataset) error {
	actual, discount := ds.Index(salesActualPrice), ds.Index(salesDiscountPrice)
	if actual < 0 || discount < 0 {
		return eris.Wrapf(dataset.ErrColumnNotFound, "columns %q and %q", salesActualPrice, salesDiscountPrice)
	}
	for _, row := range ds.Rows {
		if row[discount] == nil {
			row[discount] = row[actual]
		}
	}
	return nil
}

func dropNull(ds *dataset.Dataset, column string) error {
	idx := ds.Index(column)
	if idx < 0 {
		return eris.Wrapf(dataset.ErrColumnNotFound, "column %q", column)
	}
	ds.Filter(func(row []interface{}) bool { return row[idx] != nil })
	return nil
}

// WeightInPounds converts a free-text weight such as "1 lb 8 oz" to pounds.
// It reports false when neither a pounds nor an ounces quantity is present.
func WeightInPounds(s string) (float64, bool) {
	var pounds, ounces float64
	found := false
	if m := poundsPattern.FindStringSubmatch(s); m != nil {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil {
			pounds, found = f, true
		}
	}
	if m := ouncesPattern.FindStringSubmatch(s); m != nil {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil {
			ounces, found = f, true
		}
	}
	return pounds + ounces/16, found
}

func deriveWeightInPounds(ds *dataset.Dataset) error {
	idx := ds.Index(marketingWeight)
	if idx < 0 {
		return eris.Wrapf(dataset.ErrColumnNotFound, "column %q", marketingWeight)
	}
	ds.AddColumn(dataset.Column{Name: marketingWeightPounds, Kind: dataset.Float}, func(row []interface{}) interface{} {
		s, ok := cellText(row[idx])
		if !ok {
			return nil
		}
		if w, ok := WeightInPounds(s); ok {
			return w
		}
		return nil
	})
	return nil
}

func normalizeAvailability(v interface{}) interface{} {
	s, ok := cellText(v)
	if !ok {
		return nil
	}
	s = strings.ToUpper(s)
	switch {
	case availableYes[s]:
		return "YES"
	case availableNo[s]:
		return "NO"
	default:
		return s
	}
}

func normalizeCondition(v interface{}) interface{} {
	s, ok := cellText(v)
	if !ok {
		return nil
	}
	return strings.ReplaceAll(strings.ToUpper(s), "NEW OTHER (SEE DETAILS)", "NEW")
}

// dropRareConditions removes rows holding either of the two least frequent
// non-null conditions of this batch. On equal counts the value seen later is
// the rarer one.
func dropRareConditions(ds *dataset.Dataset) error {
	counts, err := ds.ValueCounts(marketingCondition)
	if err != nil {
		return err
	}
	if len(counts) == 0 {
		return nil
	}

	order := make([]int, len(counts))
	for i := range order {
		order[i] = i
	}
	// stable selection by (count asc, first appearance desc)
	rarer := func(a, b int) bool {
		if counts[a].Count != counts[b].Count {
			return counts[a].Count < counts[b].Count
		}
		return a > b
	}
	for i := 0; i < len(order) && i < 2; i++ {
		best := i
		for j := i + 1; j < len(order); j++ {
			if rarer(order[j], order[best]) {
				best = j
			}
		}
		order[i], order[best] = order[best], order[i]
	}

	drop := map[string]bool{}
	for i := 0; i < len(order) && i < 2; i++ {
		s, _ := cellText(counts[order[i]].Value)
		drop[s] = true
	}

	idx := ds.Index(marketingCondition)
	ds.Filter(func(row []interface{}) bool {
		s, ok := cellText(row[idx])
		return !ok || !drop[s]
	})
	return nil
}

func parseShipping(v interface{}) interface{} {
	s, ok := cellText(v)
	if !ok || !strings.Contains(s, "USD") {
		return int64(0)
	}
	s = strings.TrimSpace(strings.NewReplacer("USD", "", ".", "").Replace(s))
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return n
}
