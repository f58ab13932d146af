package engine

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/piwi3910/FabriCut/internal/errors"
	"github.com/piwi3910/FabriCut/internal/model"
)

// BundleSlice is one bundle produced by PartitionBundles, before it is given
// an id or number.
type BundleSlice struct {
	Sequence      int
	SizeBreakdown map[string]int
	TotalPieces   int
}

// PartitionBundles splits the configured quantities into bundles of
// bundleSize pieces. Sizes are consumed in the given order, so a bundle may
// span the end of one size and the start of the next. The last bundle takes
// the remainder.
func PartitionBundles(lines []model.BundleLine, bundleSize int) ([]BundleSlice, error) {
	if bundleSize <= 0 {
		return nil, errors.InvalidInput("bundle_size", "bundle size must be positive")
	}
	if len(lines) == 0 {
		return nil, errors.InvalidInput("bundle_configuration", "bundle configuration is required")
	}

	type remaining struct {
		size string
		qty  int
	}
	var queue []remaining
	index := make(map[string]int)
	total := 0
	for i, l := range lines {
		if l.Size == "" {
			return nil, errors.InvalidInput(fmt.Sprintf("bundle_configuration[%d].size", i), "size is required")
		}
		if l.Quantity < 0 {
			return nil, errors.InvalidInput(fmt.Sprintf("bundle_configuration[%d].quantity", i), "quantity cannot be negative")
		}
		if l.Quantity == 0 {
			continue
		}
		// Repeated sizes are merged into the first occurrence
		if at, ok := index[l.Size]; ok {
			queue[at].qty += l.Quantity
		} else {
			index[l.Size] = len(queue)
			queue = append(queue, remaining{size: l.Size, qty: l.Quantity})
		}
		total += l.Quantity
	}
	if total == 0 {
		return nil, errors.InvalidInput("bundle_configuration", "bundle configuration has no pieces")
	}

	count := (total + bundleSize - 1) / bundleSize
	bundles := make([]BundleSlice, 0, count)
	q := 0
	for i := 0; i < count; i++ {
		want := bundleSize
		if left := total - i*bundleSize; left < want {
			want = left
		}
		b := BundleSlice{Sequence: i + 1, SizeBreakdown: make(map[string]int), TotalPieces: want}
		for want > 0 {
			take := queue[q].qty
			if take > want {
				take = want
			}
			b.SizeBreakdown[queue[q].size] += take
			queue[q].qty -= take
			want -= take
			if queue[q].qty == 0 {
				q++
			}
		}
		bundles = append(bundles, b)
	}
	return bundles, nil
}

// LinesFromBreakdown turns a size breakdown into bundle lines ordered by the
// given size order; sizes missing from order follow alphabetically.
func LinesFromBreakdown(breakdown map[string]int, order []string) []model.BundleLine {
	seen := make(map[string]bool)
	var lines []model.BundleLine
	for _, s := range order {
		if q, ok := breakdown[s]; ok && !seen[s] {
			lines = append(lines, model.BundleLine{Size: s, Quantity: q})
			seen[s] = true
		}
	}
	var rest []string
	for s := range breakdown {
		if !seen[s] {
			rest = append(rest, s)
		}
	}
	sortSizes(rest)
	for _, s := range rest {
		lines = append(lines, model.BundleLine{Size: s, Quantity: breakdown[s]})
	}
	return lines
}

// sizeRank gives garment sizes their natural order.
var sizeRank = map[string]int{
	"XXS": 1, "XS": 2, "S": 3, "M": 4, "L": 5, "XL": 6, "XXL": 7, "2XL": 7, "XXXL": 8, "3XL": 8,
}

func sortSizes(sizes []string) {
	less := func(a, b string) bool {
		ra, oka := sizeRank[strings.ToUpper(a)]
		rb, okb := sizeRank[strings.ToUpper(b)]
		switch {
		case oka && okb:
			return ra < rb
		case oka:
			return true
		case okb:
			return false
		}
		return a < b
	}
	sort.SliceStable(sizes, func(i, j int) bool { return less(sizes[i], sizes[j]) })
}

// BrandCode derives a short upper-case code from a brand name.
func BrandCode(brand string) string {
	var b strings.Builder
	n := 0
	for _, r := range strings.ToUpper(brand) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			n++
			if n == 3 {
				break
			}
		}
	}
	if n == 0 {
		return "GEN"
	}
	return b.String()
}

// BundleNumber formats the code printed on a bundle ticket, e.g. ACM-PO1234-007.
// The sequence is padded to at least three digits, more when total needs it.
func BundleNumber(brandCode, poNumber string, sequence, total int) string {
	width := len(fmt.Sprint(total))
	if width < 3 {
		width = 3
	}
	po := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(poNumber), " ", ""))
	return fmt.Sprintf("%s-%s-%0*d", brandCode, po, width, sequence)
}
