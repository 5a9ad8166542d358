package inspector

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/superx/catalog"
	"github.com/hazyhaar/superx/fetcher"
	"github.com/hazyhaar/superx/locate"
	"github.com/hazyhaar/superx/xpathgen"
)

func testServer(t *testing.T) (*Service, *httptest.Server) {
	t.Helper()
	svc := testService(t)
	return svc, serveHTTP(t, svc)
}

func testHTTP(t *testing.T, mutate ...func(*Config)) *httptest.Server {
	t.Helper()
	return serveHTTP(t, testService(t, mutate...))
}

func serveHTTP(t *testing.T, svc *Service) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	svc.RegisterHTTP(r)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

func TestHTTP_Health(t *testing.T) {
	_, ts := testServer(t)
	code, body := doJSON(t, http.MethodGet, ts.URL+"/health", nil)
	if code != http.StatusOK || !strings.Contains(string(body), `"ok"`) {
		t.Errorf("got %d %s", code, body)
	}
}

func TestHTTP_Generate(t *testing.T) {
	_, ts := testServer(t)
	code, body := doJSON(t, http.MethodPost, ts.URL+"/api/generate", map[string]any{
		"html": testPage, "kind": "css", "value": "li.sale",
	})
	if code != http.StatusOK {
		t.Fatalf("status: got %d (%s)", code, body)
	}
	var resp GenerateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Elements) != 1 || resp.Elements[0].FullPath != "/html/body/ul/li[3]" {
		t.Errorf("got %+v", resp.Elements)
	}
}

func TestHTTP_QueryStatuses(t *testing.T) {
	_, ts := testServer(t)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"ok", map[string]any{"html": testPage, "expr": "//li"}, http.StatusOK},
		{"no match", map[string]any{"html": testPage, "expr": "//table"}, http.StatusOK},
		{"invalid", map[string]any{"html": testPage, "expr": "//li[@"}, http.StatusBadRequest},
		{"no source", map[string]any{"expr": "//li"}, http.StatusBadRequest},
		{"bad render", map[string]any{"url": "https://x.test", "render": "magic", "expr": "//li"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := doJSON(t, http.MethodPost, ts.URL+"/api/query", tt.body)
			if code != tt.want {
				t.Errorf("status: got %d, want %d (%s)", code, tt.want, body)
			}
		})
	}

	code, _ := doJSON(t, http.MethodPost, ts.URL+"/api/query", nil)
	if code != http.StatusBadRequest {
		t.Errorf("empty body: got %d", code)
	}
}

func TestHTTP_PathSources(t *testing.T) {
	dir := t.TempDir()
	secret := filepath.Join(dir, "secret.html")
	if err := os.WriteFile(secret, []byte("<html><body><p>TOP-SECRET-TOKEN</p></body></html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	query := map[string]any{"path": secret, "expr": "//body", "preview": true}

	_, ts := testServer(t)
	for _, route := range []string{"/api/query", "/api/generate", "/api/annotate"} {
		body := map[string]any{"path": secret, "expr": "//p", "kind": "css", "value": "p", "preview": true}
		code, out := doJSON(t, http.MethodPost, ts.URL+route, body)
		if code != http.StatusBadRequest {
			t.Errorf("%s without files root: got %d, want 400", route, code)
		}
		if strings.Contains(string(out), "TOP-SECRET-TOKEN") {
			t.Errorf("%s: file content leaked", route)
		}
	}
	code, _ := doJSON(t, http.MethodPost, ts.URL+"/api/query", map[string]any{"url": "http://127.0.0.1:1/", "expr": "//p"})
	if code != http.StatusBadRequest {
		t.Errorf("loopback url: got %d, want 400", code)
	}

	rooted := testHTTP(t, func(c *Config) { c.Fetch.FilesRoot = dir })
	code, out := doJSON(t, http.MethodPost, rooted.URL+"/api/query", map[string]any{"path": "secret.html", "expr": "//p"})
	if code != http.StatusOK || !strings.Contains(string(out), `"count":1`) {
		t.Errorf("under files root: got %d (%s)", code, out)
	}
	code, _ = doJSON(t, http.MethodPost, rooted.URL+"/api/query", map[string]any{"path": "../../../etc/hosts", "expr": "//p"})
	if code == http.StatusOK {
		t.Error("path outside files root should not load")
	}

	open := testHTTP(t, func(c *Config) { c.Fetch.AllowFiles = true })
	if code, out := doJSON(t, http.MethodPost, open.URL+"/api/query", query); code != http.StatusOK {
		t.Errorf("allow_files: got %d (%s)", code, out)
	}
}

func TestHTTP_Annotate(t *testing.T) {
	_, ts := testServer(t)
	data, _ := json.Marshal(map[string]any{"html": testPage, "expr": "//li"})
	resp, err := http.Post(ts.URL+"/api/annotate", "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d (%s)", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type: got %q", ct)
	}
	if got := resp.Header.Get("X-Superx-Count"); got != "3" {
		t.Errorf("count header: got %q", got)
	}
	if !strings.Contains(string(body), "xpath-query-match") {
		t.Error("body not annotated")
	}
}

func TestHTTP_Locators(t *testing.T) {
	_, ts := testServer(t)

	code, body := doJSON(t, http.MethodPost, ts.URL+"/api/locators", map[string]any{
		"url": "https://shop.test/", "html": testPage, "kind": "css", "value": "button",
	})
	if code != http.StatusCreated {
		t.Fatalf("create: got %d (%s)", code, body)
	}
	var saved catalog.Locator
	if err := json.Unmarshal(body, &saved); err != nil {
		t.Fatal(err)
	}

	code, body = doJSON(t, http.MethodGet, ts.URL+"/api/locators?page_url=https://shop.test/", nil)
	if code != http.StatusOK || !strings.Contains(string(body), saved.ID) {
		t.Errorf("list: got %d %s", code, body)
	}

	code, _ = doJSON(t, http.MethodGet, ts.URL+"/api/locators/"+saved.ID, nil)
	if code != http.StatusOK {
		t.Errorf("get: got %d", code)
	}

	code, body = doJSON(t, http.MethodPost, ts.URL+"/api/locators/"+saved.ID+"/verify", map[string]any{"html": testPage})
	if code != http.StatusOK {
		t.Fatalf("verify: got %d (%s)", code, body)
	}
	var vr VerifyResult
	if err := json.Unmarshal(body, &vr); err != nil {
		t.Fatal(err)
	}
	if !vr.OK {
		t.Errorf("verify: %+v", vr)
	}

	code, body = doJSON(t, http.MethodGet, ts.URL+"/api/locators/"+saved.ID+"/checks", nil)
	if code != http.StatusOK || !strings.Contains(string(body), `"ok":true`) {
		t.Errorf("checks: got %d %s", code, body)
	}

	code, _ = doJSON(t, http.MethodDelete, ts.URL+"/api/locators/"+saved.ID, nil)
	if code != http.StatusOK {
		t.Errorf("delete: got %d", code)
	}
	code, _ = doJSON(t, http.MethodGet, ts.URL+"/api/locators/"+saved.ID, nil)
	if code != http.StatusNotFound {
		t.Errorf("get after delete: got %d", code)
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{xpathgen.Evaluate("//a[", nil).Err, http.StatusBadRequest},
		{fmt.Errorf("locate: %w", locate.ErrUnknownKind), http.StatusBadRequest},
		{fmt.Errorf("%w: css", locate.ErrNoMatch), http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: loc_x", catalog.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: 503", fetcher.ErrStatus), http.StatusBadGateway},
		{fetcher.ErrNoBrowser, http.StatusNotImplemented},
		{fetcher.ErrFilesDisabled, http.StatusBadRequest},
		{fmt.Errorf("%w: \"x\"", fetcher.ErrPathTraversal), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := errorStatus(tt.err); got != tt.want {
			t.Errorf("errorStatus(%v): got %d, want %d", tt.err, got, tt.want)
		}
	}
}
