package handlers

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/safetrade/marketplace/backend/internal/realtime"
)

// writeSSE writes ev as one "event:/data:" frame.
func writeSSE(w io.Writer, ev realtime.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}
