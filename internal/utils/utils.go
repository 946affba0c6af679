package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const maxBodyBytes = 1 << 20

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to write JSON", "error", err)
	}
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]any{
		"error":   http.StatusText(status),
		"message": msg,
	})
}

// DecodeJSONObject reads a JSON object body of at most 1 MiB.
func DecodeJSONObject(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var out map[string]any
	dec := json.NewDecoder(body)
	if err := dec.Decode(&out); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("request body is empty")
		}
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	if out == nil {
		return nil, fmt.Errorf("request body must be a JSON object")
	}
	if dec.More() {
		return nil, fmt.Errorf("request body must contain a single JSON object")
	}
	return out, nil
}
