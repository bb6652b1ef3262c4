package results

// IsLoading reports whether a search is still in progress. A search is loading
// until the price feed reports completion, even between polls.
func IsLoading(hotelsLoading, pricesLoading, completed bool) bool {
	return pricesLoading || hotelsLoading || !completed
}
