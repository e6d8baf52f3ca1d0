package models

import (
	"fmt"
	"strings"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// RecordIDString safely extracts the string ID from a SurrealDB RecordID.
// Returns an error if the ID is not a string type.
func RecordIDString(id surrealmodels.RecordID) (string, error) {
	s, ok := id.ID.(string)
	if !ok {
		return "", fmt.Errorf("unexpected ID type: %T (expected string)", id.ID)
	}
	return s, nil
}

// MustRecordIDString extracts the string ID, panicking if not a string.
// Use only after store operations that are known to return string ids.
func MustRecordIDString(id surrealmodels.RecordID) string {
	s, err := RecordIDString(id)
	if err != nil {
		panic(err)
	}
	return s
}

// SessionTitle derives a listing title from the latest question text:
// newlines flattened, truncated to 60 characters.
func SessionTitle(lastQuestion string) string {
	if lastQuestion == "" {
		return "(no question)"
	}
	title := strings.NewReplacer("\n", " ", "\r", " ").Replace(lastQuestion)
	if len(title) > 60 {
		title = title[:57] + "..."
	}
	return title
}
