package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Samura1T/College-project-js/internal/domain/port"
)

const maxJSONBody = 50 << 20 // streamed frames arrive base64-encoded in JSON

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// historyFilterFromQuery reads the optional camera_id, from and to query
// parameters. Timestamps are RFC 3339.
func historyFilterFromQuery(r *http.Request) (port.HistoryFilter, error) {
	filter := port.HistoryFilter{CameraID: r.URL.Query().Get("camera_id")}

	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errors.New("invalid 'from' timestamp, want RFC3339")
		}
		filter.From = &t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errors.New("invalid 'to' timestamp, want RFC3339")
		}
		filter.To = &t
	}
	return filter, nil
}
