package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
)

// ErrInvalidBody is returned when a POST, PUT or PATCH body is not a JSON object.
var ErrInvalidBody = errors.New("request body must be a JSON object")

// CarriesBody reports whether method forwards a JSON body upstream.
func CarriesBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

// DecodeBody validates the inbound body for method. Methods without a body
// get nil whatever was sent.
func DecodeBody(method string, raw []byte) (json.RawMessage, error) {
	if !CarriesBody(method) {
		return nil, nil
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return nil, ErrInvalidBody
	}
	return json.RawMessage(trimmed), nil
}
