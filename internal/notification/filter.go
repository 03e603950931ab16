package notification

// MatchesFilters reports whether every filter equals the event field of the
// same name. Filters are AND-combined and an empty set matches any event.
// A missing or non-string field never matches.
func MatchesFilters(filters []Filter, data map[string]interface{}) bool {
	for _, f := range filters {
		value, ok := data[f.FilterType].(string)
		if !ok || value != f.FilterValue {
			return false
		}
	}
	return true
}
