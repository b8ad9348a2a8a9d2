// Package output provides machine-readable output for reap commands.
package output

import (
	"encoding/json"
	"fmt"
	"io"
)

// WriteJSON writes the value as pretty-printed JSON to w.
func WriteJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
