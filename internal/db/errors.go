package db

import "strings"

// IsVectorColdStart reports whether a similarity-search failure is caused by
// the vector index having nothing usable to search over: no question has an
// embedding yet, or the backend rejected a null/mismatched vector operand.
// Callers treat this as an empty result rather than an error, so a brand-new
// user degrades gracefully instead of failing their first request. Any other
// store failure during retrieval is fatal for that call.
func IsVectorColdStart(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"vector",
		"cosine",
		"knn",
		"hnsw",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
