package graph

// MergeMaps is a ready-made merge function for graphs whose state is
// map[string]any, mirroring the reference implementation's dict-based
// state: every key in update overwrites current, unless a Reducer is
// registered for that key, in which case the reducer combines the two
// values (e.g. appending to an accumulating list instead of replacing
// it).
func MergeMaps(current, update map[string]any, reducers map[string]Reducer) map[string]any {
	merged := make(map[string]any, len(current)+len(update))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range update {
		if reducer, ok := reducers[k]; ok {
			merged[k] = reducer(merged[k], v)
		} else {
			merged[k] = v
		}
	}
	return merged
}

// AppendSlice is a Reducer for []any-valued fields that should
// accumulate across node updates instead of being overwritten.
func AppendSlice(current, update any) any {
	currentSlice, _ := current.([]any)
	switch u := update.(type) {
	case []any:
		return append(append([]any{}, currentSlice...), u...)
	case nil:
		return currentSlice
	default:
		return append(append([]any{}, currentSlice...), u)
	}
}
