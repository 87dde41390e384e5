package client

import (
	"strings"
)

// FormField is one key=value pair of a form-encoded request body.
// Field order is preserved: the scheduling endpoints are picky about
// receiving the raw ampersand-joined byte form rather than a canonical
// urlencoded or JSON body.
type FormField struct {
	Key   string
	Value string
}

// encodeForm joins fields into the raw "k=v&k=v" byte body the
// scheduling endpoints accept.
func encodeForm(fields []FormField) []byte {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Key+"="+f.Value)
	}
	return []byte(strings.Join(parts, "&"))
}
