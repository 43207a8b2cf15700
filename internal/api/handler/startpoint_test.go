package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"epubinspect/internal/drm"
	"epubinspect/internal/epub"
	"epubinspect/internal/inspect"
	"epubinspect/internal/license"
	"epubinspect/internal/llm"
	"epubinspect/internal/storage"
)

type fakeService struct {
	decision llm.Decision
	err      error
	got      inspect.Request
}

func (f *fakeService) FindStartPoint(_ context.Context, req inspect.Request) (llm.Decision, error) {
	f.got = req
	return f.decision, f.err
}

func post(t *testing.T, h *StartPointHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/start-point", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.HandleStartPoint(w, req)
	return w
}

const validBody = `{"bucket":"books","key":"item-1.epub","item_id":"item-1","use_full_toc":true}`

func TestHandleStartPoint_OK(t *testing.T) {
	svc := &fakeService{decision: llm.Decision{
		StartFile: "OEBPS/ch1.xhtml", Anchor: "top", Confidence: 0.9,
	}}
	w := post(t, NewStartPointHandler(svc), validBody)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"start_file":"OEBPS/ch1.xhtml"`)
	assert.Equal(t, "books", svc.got.Bucket)
	assert.True(t, svc.got.UseFullToc)
}

func TestHandleStartPoint_Validation(t *testing.T) {
	h := NewStartPointHandler(&fakeService{})

	w := post(t, h, `{"bucket":"books"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(t, h, `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/start-point", nil)
	rec := httptest.NewRecorder()
	h.HandleStartPoint(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleStartPoint_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("fetch: %w", storage.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("key: %w", license.ErrKeyNotFound), http.StatusUnprocessableEntity},
		{fmt.Errorf("derive: %w", drm.ErrKeyFormat), http.StatusUnprocessableEntity},
		{fmt.Errorf("toc: %w", epub.ErrMissingToc), http.StatusUnprocessableEntity},
		{fmt.Errorf("zip: %w", drm.ErrFormat), http.StatusBadRequest},
		{fmt.Errorf("hmac: %w", drm.ErrIntegrity), http.StatusBadRequest},
		{fmt.Errorf("opf: %w", epub.ErrFormat), http.StatusBadRequest},
		{fmt.Errorf("range: %w", storage.ErrRetrieval), http.StatusBadGateway},
		{fmt.Errorf("acl: %w", storage.ErrDenied), http.StatusBadGateway},
		{llm.ErrInvalidJSON, http.StatusInternalServerError},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := post(t, NewStartPointHandler(&fakeService{err: tc.err}), validBody)
		assert.Equal(t, tc.want, w.Code, "error %v", tc.err)
	}
}

func TestHandleStartPoint_ErrorBodyHidesInternalDetail(t *testing.T) {
	err := fmt.Errorf("unlock books/item-1.epub: %w",
		&drm.EntryError{Entry: "OEBPS/secret-chapter.xhtml", Err: drm.ErrIntegrity})
	w := post(t, NewStartPointHandler(&fakeService{err: err}), validBody)

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := w.Body.String()
	assert.NotContains(t, body, "secret-chapter")
	assert.NotContains(t, body, "unlock")
	assert.Equal(t, "container failed integrity check\n", body)

	w = post(t, NewStartPointHandler(&fakeService{err: fmt.Errorf("license lookup: pq: relation does not exist")}), validBody)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal error\n", w.Body.String())
}

func TestHandleHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	HandleHealthz(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
}
