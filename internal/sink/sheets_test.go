package sink

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSheetsAppendRequestShape(t *testing.T) {
	var gotPath, gotQuery string
	var got appendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	s := NewSheetsSinkWithClient(srv.Client(), srv.URL, "sheet-123")
	err := s.Append(context.Background(), "events", [][]string{
		{"2025-04-04T12:00:00Z", "sent", "T1"},
	})
	require.NoError(t, err)

	assert.Equal(t, "/v4/spreadsheets/sheet-123/values/events:append", gotPath)
	assert.Contains(t, gotQuery, "valueInputOption=USER_ENTERED")
	require.Len(t, got.Values, 1)
	assert.Equal(t, "T1", got.Values[0][2])
}

func TestSheetsAppendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"PERMISSION_DENIED"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewSheetsSinkWithClient(srv.Client(), srv.URL, "sheet-123")
	err := s.Append(context.Background(), "events", [][]string{{"a"}})
	require.Error(t, err)

	var serr *Error
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, http.StatusForbidden, serr.StatusCode)
	assert.True(t, serr.Permanent())
	assert.Contains(t, serr.Error(), "events")
}

func TestSheetsAppendEmptyRowsSkipsCall(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	s := NewSheetsSinkWithClient(srv.Client(), srv.URL, "sheet-123")
	require.NoError(t, s.Append(context.Background(), "events", nil))
	assert.False(t, called)
}
