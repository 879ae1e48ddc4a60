package webfetch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetchConvertsHTMLToMarkdown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<h1>Hello</h1><p>World</p>"))
	}))
	defer server.Close()

	tool := New()
	input, err := json.Marshal(Input{URL: server.URL})
	require.NoError(t, err)

	raw, err := tool.Call(context.Background(), input)
	require.NoError(t, err)

	var out Output
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Contains(t, out.Markdown, "Hello")
	require.Contains(t, out.Markdown, "World")
}

func TestFetchRejectsEmptyURL(t *testing.T) {
	tool := New()
	input, _ := json.Marshal(Input{URL: "   "})
	_, err := tool.Call(context.Background(), input)
	require.Error(t, err)
}

func TestFetchSurfacesNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	tool := New()
	input, _ := json.Marshal(Input{URL: server.URL})
	_, err := tool.Call(context.Background(), input)
	require.Error(t, err)
}
