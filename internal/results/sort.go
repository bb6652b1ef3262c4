package results

import "sort"

// Sort returns a copy of filtered ordered by c. The sort is stable. An unknown
// criterion keeps the input order. Unpriced hotels go last for price orders.
func Sort(filtered []StitchedHotel, c SortCriterion) []StitchedHotel {
	out := make([]StitchedHotel, len(filtered))
	copy(out, filtered)

	var less func(a, b StitchedHotel) bool
	switch c {
	case PriceAscending:
		less = func(a, b StitchedHotel) bool { return priceLess(a, b, false) }
	case PriceDescending:
		less = func(a, b StitchedHotel) bool { return priceLess(a, b, true) }
	case RatingAscending:
		less = func(a, b StitchedHotel) bool { return a.Rating < b.Rating }
	case RatingDescending:
		less = func(a, b StitchedHotel) bool { return a.Rating > b.Rating }
	default:
		return out
	}

	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func priceLess(a, b StitchedHotel, desc bool) bool {
	switch {
	case a.Price == nil:
		return false
	case b.Price == nil:
		return true
	case desc:
		return *a.Price > *b.Price
	default:
		return *a.Price < *b.Price
	}
}
