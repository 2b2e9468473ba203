// Package httpapi tests drive the full handler stack over httptest.
package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/miikkis-gh/glassfile/internal/auth"
	"github.com/miikkis-gh/glassfile/internal/config"
	"github.com/miikkis-gh/glassfile/internal/session"
	"github.com/miikkis-gh/glassfile/internal/store"
	"github.com/spf13/afero"
)

const testPassword = "hunter2"

type fixture struct {
	ts       *httptest.Server
	client   *http.Client
	sessions *session.Memory
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()

	hash, err := auth.HashPassword(testPassword, auth.DefaultArgon2Params())
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	cfg := config.Config{}
	cfg.Storage.Directory = "/srv/files"
	cfg.Storage.MaxFileSizeMB = 1
	cfg.Security.AdminPasswordHash = hash
	cfg.Security.APIKeys = []string{"testkey"}
	cfg.Security.SessionLifetimeSeconds = 3600
	cfg.Security.LoginAttemptsPerMinute = 100
	if mutate != nil {
		mutate(&cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.New(cfg.Storage.Directory, store.Options{
		Fs:                afero.NewMemMapFs(),
		MaxSize:           cfg.MaxFileSizeBytes(),
		AllowedExtensions: cfg.Storage.AllowedExtensions,
		Logger:            logger,
	})
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}

	sessions := session.NewMemory(time.Duration(cfg.Security.SessionLifetimeSeconds) * time.Second)
	t.Cleanup(sessions.Stop)
	gate := auth.NewGate(auth.Policy{
		AdminPasswordHash: cfg.Security.AdminPasswordHash,
		APIKeys:           cfg.Security.APIKeys,
		IPWhitelist:       cfg.Security.IPWhitelist,
		SessionLifetime:   time.Duration(cfg.Security.SessionLifetimeSeconds) * time.Second,
	}, sessions, logger)

	srv := &Server{Cfg: cfg, Store: st, Gate: gate, Logger: logger}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &fixture{
		ts:       ts,
		client:   &http.Client{Jar: jar},
		sessions: sessions,
	}
}

func (f *fixture) login(t *testing.T, password string) *http.Response {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"password": password})
	res, err := f.client.Post(f.ts.URL+"/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return res
}

func decodeEnvelope(t *testing.T, res *http.Response) (bool, map[string]any, string) {
	t.Helper()
	defer res.Body.Close()
	var env struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
		Error   *string        `json:"error"`
	}
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	msg := ""
	if env.Error != nil {
		msg = *env.Error
	}
	return env.Success, env.Data, msg
}

func (f *fixture) upload(t *testing.T, filename, content string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	_ = mw.Close()
	res, err := f.client.Post(f.ts.URL+"/api/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return res
}

// TestLoginFlow rejects a bad password and accepts the right one.
func TestLoginFlow(t *testing.T) {
	f := newFixture(t, nil)

	res := f.login(t, "wrong")
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong password status=%d", res.StatusCode)
	}
	ok, _, msg := decodeEnvelope(t, res)
	if ok || msg != "Invalid password" {
		t.Fatalf("envelope ok=%v msg=%q", ok, msg)
	}

	res = f.login(t, testPassword)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login status=%d", res.StatusCode)
	}
	ok, _, _ = decodeEnvelope(t, res)
	if !ok {
		t.Fatalf("expected success envelope")
	}

	// The session cookie now authenticates API calls.
	res, err := f.client.Get(f.ts.URL + "/api/files")
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("files status=%d", res.StatusCode)
	}
	_, data, _ := decodeEnvelope(t, res)
	if data["total"].(float64) != 0 {
		t.Fatalf("expected empty list, got %v", data)
	}
}

// TestLoginRequiresJSON rejects form posts with 400.
func TestLoginRequiresJSON(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.client.Post(f.ts.URL+"/login", "application/x-www-form-urlencoded",
		strings.NewReader("password=hunter2"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d", res.StatusCode)
	}
}

// TestAPIRequiresAuth denies anonymous and bad-key API calls.
func TestAPIRequiresAuth(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.client.Get(f.ts.URL + "/api/files")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous status=%d", res.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, f.ts.URL+"/api/files", nil)
	req.Header.Set("X-API-Key", "bogus")
	res, err = f.client.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	_, _, msg := decodeEnvelope(t, res)
	if res.StatusCode != http.StatusUnauthorized || msg != "Invalid API key" {
		t.Fatalf("status=%d msg=%q", res.StatusCode, msg)
	}

	req, _ = http.NewRequest(http.MethodGet, f.ts.URL+"/api/files", nil)
	req.Header.Set("X-API-Key", "testkey")
	res, err = f.client.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("valid key status=%d", res.StatusCode)
	}
}

// TestUploadCollisionAndRenameConflict walks the §8-style end-to-end
// sequence: duplicate upload suffixing, rename conflict, delete, info.
func TestUploadCollisionAndRenameConflict(t *testing.T) {
	f := newFixture(t, nil)
	f.login(t, testPassword).Body.Close()

	res := f.upload(t, "a.txt", "first")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("upload status=%d", res.StatusCode)
	}
	_, data, _ := decodeEnvelope(t, res)
	if data["name"] != "a.txt" {
		t.Fatalf("first upload name=%v", data["name"])
	}

	res = f.upload(t, "a.txt", "second")
	_, data, _ = decodeEnvelope(t, res)
	if data["name"] != "a_1.txt" {
		t.Fatalf("second upload name=%v", data["name"])
	}

	// Rename onto the suffixed file must conflict.
	body, _ := json.Marshal(map[string]string{"new_name": "a_1.txt"})
	req, _ := http.NewRequest(http.MethodPut, f.ts.URL+"/api/files/a.txt", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.client.Do(req)
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("rename conflict status=%d", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodDelete, f.ts.URL+"/api/files/a.txt", nil)
	resp, err = f.client.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status=%d", resp.StatusCode)
	}

	resp, err = f.client.Get(f.ts.URL + "/api/files/a.txt/info")
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("info after delete status=%d", resp.StatusCode)
	}
}

// TestDownload serves stored bytes without auth and hides traversal.
func TestDownload(t *testing.T) {
	f := newFixture(t, nil)
	f.login(t, testPassword).Body.Close()
	f.upload(t, "doc.txt", "download me").Body.Close()

	anon := &http.Client{}
	res, err := anon.Get(f.ts.URL + "/files/doc.txt")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("download status=%d", res.StatusCode)
	}
	if cd := res.Header.Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Fatalf("content-disposition %q", cd)
	}
	b, _ := io.ReadAll(res.Body)
	if string(b) != "download me" {
		t.Fatalf("content %q", b)
	}

	res, err = anon.Get(f.ts.URL + "/files/../../etc/passwd")
	if err != nil {
		t.Fatalf("traversal get: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("traversal status=%d", res.StatusCode)
	}
	b, _ = io.ReadAll(res.Body)
	if strings.Contains(string(b), "root:") {
		t.Fatalf("leaked file content")
	}

	res, err = anon.Get(f.ts.URL + "/files/missing.txt")
	if err != nil {
		t.Fatalf("missing get: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("missing status=%d", res.StatusCode)
	}
}

// TestSessionExpiry rejects and clears a stale session.
func TestSessionExpiry(t *testing.T) {
	f := newFixture(t, nil)
	f.sessions.Put("staletok", session.Session{
		Authenticated: true,
		LastActivity:  time.Now().Add(-2 * time.Hour),
	})

	req, _ := http.NewRequest(http.MethodGet, f.ts.URL+"/api/files", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "staletok"})
	res, err := f.client.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	_, _, msg := decodeEnvelope(t, res)
	if res.StatusCode != http.StatusUnauthorized || msg != "Session expired" {
		t.Fatalf("status=%d msg=%q", res.StatusCode, msg)
	}
	if _, ok := f.sessions.Get("staletok"); ok {
		t.Fatalf("stale session should be cleared")
	}
}

// TestIPWhitelistBlocksBeforeAuth rejects non-listed IPs with 403 even
// when credentials are valid.
func TestIPWhitelistBlocksBeforeAuth(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.Security.IPWhitelist = []string{"10.9.9.9"}
	})

	req, _ := http.NewRequest(http.MethodGet, f.ts.URL+"/api/files", nil)
	req.Header.Set("X-API-Key", "testkey")
	res, err := f.client.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("status=%d", res.StatusCode)
	}
}

// TestSecurityHeaders checks every response carries the header set.
func TestSecurityHeaders(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.client.Get(f.ts.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer res.Body.Close()

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"X-XSS-Protection":       "1; mode=block",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	} {
		if got := res.Header.Get(header); got != want {
			t.Fatalf("%s=%q, want %q", header, got, want)
		}
	}
	if res.Header.Get("Content-Security-Policy") == "" {
		t.Fatalf("missing content-security-policy")
	}
}

// TestHealth reports storage status without auth.
func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.client.Get(f.ts.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer res.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "healthy" || body["storage_writable"] != true {
		t.Fatalf("health body %v", body)
	}
}

// TestLoginRateLimit throttles repeated attempts from one IP.
func TestLoginRateLimit(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.Security.LoginAttemptsPerMinute = 2
	})

	f.login(t, "wrong").Body.Close()
	f.login(t, "wrong").Body.Close()
	res := f.login(t, "wrong")
	defer res.Body.Close()
	if res.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status=%d", res.StatusCode)
	}
	if res.Header.Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}
}

// TestBrowserGetsRedirectedToLogin sends navigations to the login view.
func TestBrowserGetsRedirectedToLogin(t *testing.T) {
	f := newFixture(t, nil)
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	res, err := client.Get(f.ts.URL + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusFound {
		t.Fatalf("status=%d", res.StatusCode)
	}
	if loc := res.Header.Get("Location"); loc != "/login" {
		t.Fatalf("location=%q", loc)
	}
}
