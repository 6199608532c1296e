package mpcasossdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReassignFiscal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/casos/7/reasignar-fiscal", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var body map[string]int64
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(3), body["idNuevoFiscal"])
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"outcome":"success","message":"Fiscal reasignado exitosamente"}`))
	}))
	defer srv.Close()

	res, err := New(srv.URL, "tok").ReassignFiscal(context.Background(), 7, 3)
	require.NoError(t, err)
	assert.Equal(t, "success", res.Outcome)
	assert.Equal(t, "Fiscal reasignado exitosamente", res.Message)
}

func TestErrorEnvelopeIsParsed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"kind":"business-rule-violation","code":"BUSINESS_RULE_VIOLATION","message":"El fiscal no está activo","http_status":400,"display_message":"No se pudo asignar el fiscal: El fiscal no está activo"}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "tok").AssignFiscal(context.Background(), 1, 2)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.True(t, apiErr.Rejected())
	assert.Equal(t, "El fiscal no está activo", apiErr.Message)
	assert.Equal(t, "No se pudo asignar el fiscal: El fiscal no está activo", apiErr.DisplayMessage)
}

func TestNonEnvelopeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").ListFiscales(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.False(t, apiErr.Rejected())
	assert.Contains(t, apiErr.Body, "bad gateway")
}
