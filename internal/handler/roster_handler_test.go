package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/MAZGOURA/attestation-api/internal/roster"
	"github.com/MAZGOURA/attestation-api/internal/service"
	"github.com/MAZGOURA/attestation-api/pkg/response"
)

func newRosterHandler() *RosterHandler {
	index := testIndex()
	matcher := roster.NewMatcher(index, roster.DefaultSuggestDistance)
	return NewRosterHandler(service.NewRosterService(index, matcher, nil, time.Minute, nil, nil))
}

func TestRosterHandlerCheckIdentityValid(t *testing.T) {
	handler := newRosterHandler()
	w, c := postJSON(t, IdentityCheckRequest{
		FirstName: "Hana",
		LastName:  "El Hani",
		GroupCode: "ID103",
	}, "/identity/check")

	handler.CheckIdentity(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data service.IdentityCheckResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.True(t, envelope.Data.Valid)
}

func TestRosterHandlerCheckIdentitySuggests(t *testing.T) {
	handler := newRosterHandler()
	w, c := postJSON(t, IdentityCheckRequest{
		FirstName: "Hanna",
		LastName:  "El Hani",
		GroupCode: "ID103",
	}, "/identity/check")

	handler.CheckIdentity(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data service.IdentityCheckResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.False(t, envelope.Data.Valid)
	require.NotEmpty(t, envelope.Data.Suggestions)
}

func TestRosterHandlerCheckIdentityMissingFields(t *testing.T) {
	handler := newRosterHandler()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/identity/check", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.CheckIdentity(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRosterHandlerGroupEntries(t *testing.T) {
	handler := newRosterHandler()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/roster/groups/ID103", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "group", Value: "ID103"}}

	handler.GroupEntries(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Nil(t, envelope.Error)
}

func TestRosterHandlerGroupEntriesUnknown(t *testing.T) {
	handler := newRosterHandler()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/roster/groups/ZZ999", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "group", Value: "ZZ999"}}

	handler.GroupEntries(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}
