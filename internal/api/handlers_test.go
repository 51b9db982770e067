package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/donbr/treat-or-hell/internal/core"
	"github.com/donbr/treat-or-hell/internal/store"
)

type fakeAngel struct {
	gotMessage string
	text       string
	err        error
}

func (f *fakeAngel) Respond(_ context.Context, userMessage string) (string, error) {
	f.gotMessage = userMessage
	return f.text, f.err
}

type fakeStore struct {
	saved *store.Record
	err   error
}

func (f *fakeStore) Save(_ context.Context, rec *store.Record) error {
	if f.err != nil {
		return f.err
	}
	f.saved = rec
	return nil
}

func (f *fakeStore) Load(_ context.Context) (*store.Record, error) { return f.saved, nil }

func newTestRouter(angel *fakeAngel, st store.Store) http.Handler {
	logger, _ := test.NewNullLogger()
	return NewRouter(NewAPIHandler(angel, st, logger), logger)
}

func postJSON(t *testing.T, router http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func postForm(t *testing.T, router http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestChatAngelSuccess(t *testing.T) {
	angel := &fakeAngel{text: "Oh, my beautiful soul!"}
	router := newTestRouter(angel, &fakeStore{})

	rr := postJSON(t, router, "/chat/angel", `{"message": "I forgot my homework"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "Oh, my beautiful soul!", resp.Response)
	require.Equal(t, "I forgot my homework", angel.gotMessage)
}

func TestChatAngelRejectsEmptyMessage(t *testing.T) {
	router := newTestRouter(&fakeAngel{}, &fakeStore{})

	for _, body := range []string{`{"message": ""}`, `{"message": "   "}`, `{}`} {
		rr := postJSON(t, router, "/chat/angel", body)
		require.Equal(t, http.StatusBadRequest, rr.Code, "body %s", body)
	}
}

func TestChatAngelRejectsMalformedBody(t *testing.T) {
	router := newTestRouter(&fakeAngel{}, &fakeStore{})

	rr := postJSON(t, router, "/chat/angel", `{"message": `)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestChatAngelErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "rate limited after retries",
			err:        &core.CompletionError{Transient: true, RateLimited: true, Err: errors.New("429")},
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "transient exhausted",
			err:        &core.CompletionError{Transient: true, Err: errors.New("503")},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "permanent",
			err:        &core.CompletionError{Err: errors.New("401")},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "unexpected",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(&fakeAngel{err: tc.err}, &fakeStore{})

			rr := postJSON(t, router, "/chat/angel", `{"message": "hello"}`)
			require.Equal(t, tc.wantStatus, rr.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			require.NotEmpty(t, resp.Error)
		})
	}
}

func TestQuestionsFormRenders(t *testing.T) {
	router := newTestRouter(&fakeAngel{}, &fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/questions", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	require.Contains(t, rr.Body.String(), `action="/questions/submit"`)
	require.Contains(t, rr.Body.String(), `name="q4"`)
}

func TestSubmitQuestionsSavesRecord(t *testing.T) {
	st := &fakeStore{}
	router := newTestRouter(&fakeAngel{}, st)

	rr := postForm(t, router, "/questions/submit", url.Values{
		"q1": {"Submitted early"},
		"q2": {"Asked ChatGPT"},
		"q3": {"I keep my camera on"},
		"q4": {"More than 10 hours"},
	})

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "Success!")
	require.Equal(t, &store.Record{
		Q1: "Submitted early",
		Q2: "Asked ChatGPT",
		Q3: "I keep my camera on",
		Q4: "More than 10 hours",
	}, st.saved)
}

func TestSubmitQuestionsRejectsMissingAnswer(t *testing.T) {
	st := &fakeStore{}
	router := newTestRouter(&fakeAngel{}, st)

	rr := postForm(t, router, "/questions/submit", url.Values{
		"q1": {"Submitted early"},
		"q2": {"Asked ChatGPT"},
		"q4": {"More than 10 hours"},
	})

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Nil(t, st.saved)
}

func TestSubmitQuestionsStorageFailure(t *testing.T) {
	st := &fakeStore{err: store.ErrUnavailable}
	router := newTestRouter(&fakeAngel{}, st)

	rr := postForm(t, router, "/questions/submit", url.Values{
		"q1": {"a"}, "q2": {"b"}, "q3": {"c"}, "q4": {"d"},
	})

	require.Equal(t, http.StatusInternalServerError, rr.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Contains(t, resp.Error, "Failed to save")
}

func TestMetaAndHealthEndpoints(t *testing.T) {
	router := newTestRouter(&fakeAngel{}, &fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "TreatOrHell API")

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}
