package runs

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arclane/assistants-executor/domain/assistants"
)

func TestActionExecutor_GetSendsParamsAsQueryString(t *testing.T) {
	var gotQuery string
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"fact-1"}`))
	}))
	defer srv.Close()

	tool := &assistants.ActionTool{Domain: srv.URL, Path: "/fact", Method: "GET", OperationID: "get_fact"}
	ex := NewActionExecutor(testLogger())

	result, err := ex.Execute(t.Context(), tool, `{"category":"random"}`)
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Equal(t, "category=random", gotQuery)
	assert.Contains(t, result.Body, "fact-1")
	assert.Equal(t, http.StatusOK, result.StatusCode)
}

func TestActionExecutor_PostSendsParamsAsJSONBody(t *testing.T) {
	var gotBody string
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		gotBody = string(buf)
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tool := &assistants.ActionTool{Domain: srv.URL, Path: "/submit", Method: "POST", OperationID: "submit"}
	ex := NewActionExecutor(testLogger())

	result, err := ex.Execute(t.Context(), tool, `{"name":"bob"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"bob"}`, gotBody)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, http.StatusCreated, result.StatusCode)
}

func TestActionExecutor_NonSuccessStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	tool := &assistants.ActionTool{Domain: srv.URL, Path: "/fail", Method: "GET", OperationID: "fail"}
	ex := NewActionExecutor(testLogger())

	result, err := ex.Execute(t.Context(), tool, "")
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, http.StatusInternalServerError, result.StatusCode)
}

func TestActionExecutor_CustomHeadersApplied(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Api-Key")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tool := &assistants.ActionTool{
		Domain: srv.URL, Path: "/secure", Method: "GET", OperationID: "secure",
		Headers: map[string]string{"X-Api-Key": "secret"},
	}
	ex := NewActionExecutor(testLogger())

	_, err := ex.Execute(t.Context(), tool, "")
	require.NoError(t, err)
	assert.Equal(t, "secret", gotHeader)
}
