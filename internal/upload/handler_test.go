package upload

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blood-report-agent/internal/platform/logger"
	"blood-report-agent/internal/report"
)

func newUploadServer(loader *stubLoader, renderer *stubRenderer) *httptest.Server {
	h := NewHandler(newService(loader, renderer, nil), logger.NewNop())
	r := chi.NewRouter()
	RegisterRoutes(r, h)
	return httptest.NewServer(r)
}

func postFile(t *testing.T, url, field, name string, content []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	resp, err := http.Post(url+"/upload", writer.FormDataContentType(), &buf)
	require.NoError(t, err)
	return resp
}

func TestUploadEndpointSuccess(t *testing.T) {
	srv := newUploadServer(&stubLoader{text: reportText}, &stubRenderer{refs: []string{"a.png"}})
	defer srv.Close()

	resp := postFile(t, srv.URL, "file", "report.pdf", []byte("%PDF-1.4 fake"))
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, StatusFull, res.Status)
	require.NotNil(t, res.Report)
	assert.Len(t, res.Report.Tests, 2)
	assert.Equal(t, []string{"a.png"}, res.PlotRefs)

	// The report must round-trip through the chat boundary unchanged.
	raw, err := res.Report.Encode()
	require.NoError(t, err)
	_, err = report.Decode(raw)
	require.NoError(t, err)
}

func TestUploadEndpointNoParseableContent(t *testing.T) {
	srv := newUploadServer(&stubLoader{text: "just a cover letter"}, &stubRenderer{})
	defer srv.Close()

	resp := postFile(t, srv.URL, "file", "letter.pdf", []byte("%PDF"))
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Contains(t, out["error"], "no lab values recognized")
}

func TestUploadEndpointMissingFileField(t *testing.T) {
	srv := newUploadServer(&stubLoader{text: reportText}, &stubRenderer{})
	defer srv.Close()

	resp := postFile(t, srv.URL, "document", "report.pdf", []byte("%PDF"))
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadEndpointEmptyFile(t *testing.T) {
	srv := newUploadServer(&stubLoader{text: reportText}, &stubRenderer{})
	defer srv.Close()

	resp := postFile(t, srv.URL, "file", "report.pdf", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadEndpointPartialOnPlotFailure(t *testing.T) {
	srv := newUploadServer(&stubLoader{text: reportText},
		&stubRenderer{err: assert.AnError})
	defer srv.Close()

	resp := postFile(t, srv.URL, "file", "report.pdf", []byte("%PDF"))
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, StatusPartial, res.Status)
	assert.Contains(t, res.Degraded, "plots")
}
