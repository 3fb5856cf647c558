package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/debtools/madison/internal/madison"
)

type fakeEngine struct {
	results map[string]madison.Result
	err     error
	mode    madison.Mode
}

func (f *fakeEngine) Query(ctx context.Context, name string, mode madison.Mode) (madison.Result, error) {
	f.mode = mode
	if f.err != nil {
		return madison.Result{}, f.err
	}
	return f.results[name], nil
}

func newTestServer(engine Engine) *httptest.Server {
	return httptest.NewServer(NewHandler(engine, nil))
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf [4096]byte
	n, _ := resp.Body.Read(buf[:])
	return resp, string(buf[:n])
}

func TestHandleQuery(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{results: map[string]madison.Result{
		"systemd": {Rows: []madison.Row{
			{Package: "systemd", Version: "245.4-4ubuntu3", Suite: "focal", Architectures: []string{"source"}},
		}},
	}}
	ts := newTestServer(engine)
	defer ts.Close()

	resp, body := get(t, ts.URL+"/?package=systemd")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "systemd | 245.4-4ubuntu3 | focal | source\n", body)
	require.Equal(t, madison.ModeSource, engine.mode)
}

func TestHandleQueryMultiplePackages(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{results: map[string]madison.Result{
		"a": {Rows: []madison.Row{{Package: "a", Version: "1", Suite: "focal", Architectures: []string{"source"}}}},
		"b": {Rows: []madison.Row{{Package: "b", Version: "2", Suite: "jammy", Architectures: []string{"source"}}}},
	}}
	ts := newTestServer(engine)
	defer ts.Close()

	resp, body := get(t, ts.URL+"/?package=a+b")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "a | 1 | focal | source\nb | 2 | jammy | source\n", body)
}

func TestHandleQueryBinaryMode(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{}
	ts := newTestServer(engine)
	defer ts.Close()

	resp, _ := get(t, ts.URL+"/?package=systemd&mode=binary")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, madison.ModeBinary, engine.mode)
}

func TestHandleQueryEmptyResultIsOK(t *testing.T) {
	t.Parallel()

	ts := newTestServer(&fakeEngine{})
	defer ts.Close()

	resp, body := get(t, ts.URL+"/?package=no-such-package")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, body)
}

func TestHandleQueryBadRequests(t *testing.T) {
	t.Parallel()

	ts := newTestServer(&fakeEngine{})
	defer ts.Close()

	resp, _ := get(t, ts.URL+"/")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = get(t, ts.URL+"/?package=x&mode=fuzzy")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleQueryEngineFailure(t *testing.T) {
	t.Parallel()

	ts := newTestServer(&fakeEngine{err: errors.New("boom")})
	defer ts.Close()

	resp, _ := get(t, ts.URL+"/?package=x")
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	ts := newTestServer(&fakeEngine{})
	defer ts.Close()

	resp, body := get(t, ts.URL+"/healthz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok\n", body)
}
