package console

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeAPI counts hits so validation tests can prove no request was issued.
type fakeAPI struct {
	hits    atomic.Int64
	handler http.HandlerFunc
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.hits.Add(1)
	if f.handler != nil {
		f.handler(w, r)
		return
	}
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(`{"detail": "not found"}`))
}

func newConsole(api *fakeAPI) (*httptest.Server, func()) {
	apiSrv := httptest.NewServer(api)
	srv := NewServer(NewClient(apiSrv.URL))
	consoleSrv := httptest.NewServer(srv.Routes())
	return consoleSrv, func() {
		consoleSrv.Close()
		apiSrv.Close()
	}
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return string(b)
}

func TestPage_ExactlyOneActiveTab(t *testing.T) {
	ts, done := newConsole(&fakeAPI{})
	defer done()

	for _, tab := range []string{"", "upload", "bogus"} {
		resp, err := http.Get(ts.URL + "/?tab=" + tab)
		require.NoError(t, err)
		html := body(t, resp)
		require.Equal(t, 1, strings.Count(html, `class="tab-button active"`), "tab=%q", tab)
		require.Equal(t, 1, strings.Count(html, `class="tab-content active"`), "tab=%q", tab)
	}
}

func TestTrackPanel_EmptyInputNoRequest(t *testing.T) {
	api := &fakeAPI{}
	ts, done := newConsole(api)
	defer done()

	resp, err := http.Get(ts.URL + "/panel/track?tracking_number=%20%20")
	require.NoError(t, err)
	html := body(t, resp)
	require.Contains(t, html, "Error: Please enter a tracking number")
	require.Zero(t, api.hits.Load())
}

func TestTrackPanel_ServerDetail(t *testing.T) {
	ts, done := newConsole(&fakeAPI{}) // default 404 {"detail": "not found"}
	defer done()

	resp, err := http.Get(ts.URL + "/panel/track?tracking_number=5859187246")
	require.NoError(t, err)
	require.Contains(t, body(t, resp), "Error: not found")
}

func TestTrackPanel_Success(t *testing.T) {
	api := &fakeAPI{handler: func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tracking/single/5859187246", r.URL.Path)
		_, _ = w.Write([]byte(`{"tracking_number": "5859187246", "status": "Delivered", "is_successful": true}`))
	}}
	ts, done := newConsole(api)
	defer done()

	resp, err := http.Get(ts.URL + "/panel/track?tracking_number=5859187246")
	require.NoError(t, err)
	html := body(t, resp)
	require.Contains(t, html, "5859187246")
	require.Contains(t, html, "Delivered")
	require.Contains(t, html, "Yes")
	require.Contains(t, html, "N/A") // origin, destination absent
}

func TestTrackPanel_MalformedSuccessBody(t *testing.T) {
	api := &fakeAPI{handler: func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}}
	ts, done := newConsole(api)
	defer done()

	resp, err := http.Get(ts.URL + "/panel/track?tracking_number=5859187246")
	require.NoError(t, err)
	require.Contains(t, body(t, resp), "No tracking data returned")
}

func uploadRequest(t *testing.T, url string, withFile bool) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if withFile {
		part, err := mw.CreateFormFile("file", "waybills.csv")
		require.NoError(t, err)
		_, err = part.Write([]byte("waybill\n5859187246\n"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	resp, err := http.Post(url+"/panel/upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	return resp
}

func TestUploadPanel_SpecScenario(t *testing.T) {
	api := &fakeAPI{handler: func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"batch_id": "B1", "total_requested": 2, "successful": 2, "failed": 0,
			"processing_time": 1.234, "results": [{"tracking_number": "T1", "status": "Delivered"}]}`))
	}}
	ts, done := newConsole(api)
	defer done()

	html := body(t, uploadRequest(t, ts.URL, true))
	require.Contains(t, html, "1.23s")
	require.Contains(t, html, "T1")
	require.Contains(t, html, "Delivered")
	require.Contains(t, html, "N/A")
}

func TestUploadPanel_NoFileNoRequest(t *testing.T) {
	api := &fakeAPI{}
	ts, done := newConsole(api)
	defer done()

	html := body(t, uploadRequest(t, ts.URL, false))
	require.Contains(t, html, "Error: Please select a file")
	require.Zero(t, api.hits.Load())
}

func TestUploadPanel_EmptyResultsNamesBatch(t *testing.T) {
	api := &fakeAPI{handler: func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"batch_id": "B7", "total_requested": 5, "results": []}`))
	}}
	ts, done := newConsole(api)
	defer done()

	html := body(t, uploadRequest(t, ts.URL, true))
	require.Contains(t, html, "B7")
	require.NotContains(t, html, "<table")
}

func TestBatchPanel_UnavailableShowsHint(t *testing.T) {
	ts, done := newConsole(&fakeAPI{}) // 404 from history endpoint
	defer done()

	resp, err := http.Get(ts.URL + "/panel/batch?batch_id=B1")
	require.NoError(t, err)
	require.Contains(t, body(t, resp), "export panel")
}

func TestBatchPanel_ReplacesWithRows(t *testing.T) {
	api := &fakeAPI{handler: func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"batch_id": "B1", "count": 1, "results": [{"tracking_number": "T9"}]}`))
	}}
	ts, done := newConsole(api)
	defer done()

	resp, err := http.Get(ts.URL + "/panel/batch?batch_id=B1")
	require.NoError(t, err)
	require.Contains(t, body(t, resp), "T9")
}

func TestExportPanel_Flow(t *testing.T) {
	api := &fakeAPI{handler: func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"file_name": "tracking_report_x.csv", "record_count": 2}`))
	}}
	ts, done := newConsole(api)
	defer done()

	resp, err := http.PostForm(ts.URL+"/panel/export", map[string][]string{
		"tracking_numbers_text": {"A1\nA2"},
		"format":                {"csv"},
	})
	require.NoError(t, err)
	html := body(t, resp)
	require.Contains(t, html, "tracking_report_x.csv")
	require.Contains(t, html, "Download")
}

func TestExportPanel_EmptyInputNoRequest(t *testing.T) {
	api := &fakeAPI{}
	ts, done := newConsole(api)
	defer done()

	resp, err := http.PostForm(ts.URL+"/panel/export", map[string][]string{"tracking_numbers_text": {"  "}})
	require.NoError(t, err)
	require.Contains(t, body(t, resp), "Error: Please enter tracking numbers")
	require.Zero(t, api.hits.Load())
}

func TestExportsPanel_EmptyList(t *testing.T) {
	api := &fakeAPI{handler: func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"exports": []}`))
	}}
	ts, done := newConsole(api)
	defer done()

	resp, err := http.Get(ts.URL + "/panel/exports")
	require.NoError(t, err)
	html := body(t, resp)
	require.Contains(t, html, "No export files found")
	require.NotContains(t, html, "<li>")
}

func TestPanels_IdempotentRendering(t *testing.T) {
	api := &fakeAPI{handler: func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/stats":
			_, _ = w.Write([]byte(`{"total_tracking_records": 3}`))
		case "/tracking/usage":
			_, _ = w.Write([]byte(`{"date": "2026-01-15", "daily_limit": 250}`))
		}
	}}
	ts, done := newConsole(api)
	defer done()

	for _, path := range []string{"/panel/stats", "/panel/usage"} {
		r1, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		r2, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		require.Equal(t, body(t, r1), body(t, r2))
	}
}
