package controllers

import (
	"errors"
	"io"
	"net/http"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/MrMoose/rescue/internal/namespace"
)

// Helper functions for common HTTP responses

var marshaler = protojson.MarshalOptions{EmitUnpopulated: true, UseProtoNames: true}

// writeProtoJSON writes a protobuf message as JSON with the given status.
func writeProtoJSON(w http.ResponseWriter, status int, msg proto.Message) {
	data, err := marshaler.Marshal(msg)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeObject writes a JSON object built from plain Go values.
func writeObject(w http.ResponseWriter, status int, fields map[string]any) {
	body, err := structpb.NewStruct(fields)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	writeProtoJSON(w, status, body)
}

// writeError writes an error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeObject(w, status, map[string]any{"error": message})
}

// writeJSON writes a 200 response.
func writeJSON(w http.ResponseWriter, fields map[string]any) {
	writeObject(w, http.StatusOK, fields)
}

// writeCreated writes a 201 Created response.
func writeCreated(w http.ResponseWriter, fields map[string]any) {
	writeObject(w, http.StatusCreated, fields)
}

// readObject decodes a JSON object request body.
func readObject(r *http.Request) (*structpb.Struct, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	body := &structpb.Struct{}
	if err := protojson.Unmarshal(data, body); err != nil {
		return nil, err
	}
	return body, nil
}

// listValues unwraps a list value, or nil when v is not a list.
func listValues(v *structpb.Value) []any {
	list := v.GetListValue()
	if list == nil {
		return nil
	}
	return list.AsSlice()
}

func anyList(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// namespaceStatus maps namespace policy errors to HTTP status codes.
func namespaceStatus(err error) int {
	switch {
	case errors.Is(err, namespace.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, namespace.ErrNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, namespace.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, namespace.ErrLimit):
		return http.StatusTooManyRequests
	default:
		return http.StatusServiceUnavailable
	}
}
