package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniclass/search-gateway/internal/gateway"
)

func TestInflightGuard_RejectsWhenSaturated(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})

	guard := inflightGuard(1)
	handler := guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		handler.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/search", nil))
		close(done)
	}()
	<-entered

	// The slot is held, so the next request is turned away immediately.
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/search", nil))
	assert.Equal(t, http.StatusServiceUnavailable, second.Code)

	var envelope gateway.Error
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &envelope))
	assert.Equal(t, gateway.CodeServiceUnavailable, envelope.Code)

	close(release)
	<-done
	assert.Equal(t, http.StatusOK, first.Code)
}

func TestHTTPStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, httpStatus(gateway.CodeAuthRequired))
	assert.Equal(t, http.StatusUnauthorized, httpStatus(gateway.CodeInvalidAPIKey))
	assert.Equal(t, http.StatusTooManyRequests, httpStatus(gateway.CodeRateLimited))
	assert.Equal(t, http.StatusPaymentRequired, httpStatus(gateway.CodeQuotaExceeded))
	assert.Equal(t, http.StatusBadRequest, httpStatus(gateway.CodeMissingParam))
	assert.Equal(t, http.StatusNotFound, httpStatus(gateway.CodeNotFound))
	assert.Equal(t, http.StatusServiceUnavailable, httpStatus(gateway.CodeQuotaUnavailable))
	assert.Equal(t, http.StatusBadGateway, httpStatus(gateway.CodeSearchFailed))
	assert.Equal(t, http.StatusInternalServerError, httpStatus(gateway.CodeCreateFailed))
}
