package httpapi

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/HyeBin-Hub/Film-Storyboard-Web-1/internal/casting"
	"github.com/HyeBin-Hub/Film-Storyboard-Web-1/internal/http/handlers"
	"github.com/HyeBin-Hub/Film-Storyboard-Web-1/internal/infra"
	"github.com/HyeBin-Hub/Film-Storyboard-Web-1/internal/runcomfy"
	"github.com/HyeBin-Hub/Film-Storyboard-Web-1/internal/wizard"
)

type fakeDeployment struct {
	mu    sync.Mutex
	auths []string
}

func (d *fakeDeployment) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	base := "http://" + r.Host
	switch {
	case strings.HasPrefix(r.URL.Path, "/img/"):
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG\r\n\x1a\n" + r.URL.Path))
	case strings.HasSuffix(r.URL.Path, "/inference"):
		d.mu.Lock()
		d.auths = append(d.auths, r.Header.Get("Authorization"))
		d.mu.Unlock()
		var body struct {
			Overrides map[string]map[string]map[string]any `json:"overrides"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		id := "face"
		if body.Overrides["27"]["inputs"]["steps"] == float64(casting.SceneSteps) {
			id = "scene"
		}
		fmt.Fprintf(w, `{"request_id":%q}`, id)
	case strings.HasSuffix(r.URL.Path, "/status"):
		fmt.Fprint(w, `{"status":"Completed"}`)
	case strings.HasSuffix(r.URL.Path, "/face/result"):
		fmt.Fprintf(w, `{"outputs":{"84":{"images":[{"url":"%[1]s/img/f1.png"},{"url":"%[1]s/img/f2.png"}]}}}`, base)
	case strings.HasSuffix(r.URL.Path, "/scene/result"):
		fmt.Fprintf(w, `{"outputs":{"54":{"images":[{"url":"%[1]s/img/s1.png"}]}}}`, base)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (d *fakeDeployment) authorizations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.auths...)
}

func newTestRouter(t *testing.T, cfg *infra.Config) (http.Handler, *fakeDeployment) {
	t.Helper()
	d := &fakeDeployment{}
	ts := httptest.NewServer(d)
	t.Cleanup(ts.Close)

	client := runcomfy.NewClient(runcomfy.Options{BaseURL: ts.URL, PollInterval: time.Millisecond})
	svc := wizard.NewService(wizard.Options{Client: client, EmbedFace: true})
	if cfg.DefaultLocale == "" {
		cfg.DefaultLocale = "en"
	}
	return NewRouter(handlers.NewApp(svc, cfg, nil), nil), d
}

func do(t *testing.T, h http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeSession(t *testing.T, rr *httptest.ResponseRecorder) wizard.Session {
	t.Helper()
	var sess wizard.Session
	if err := json.NewDecoder(rr.Body).Decode(&sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return sess
}

func TestWizardRoundTrip(t *testing.T) {
	h, d := newTestRouter(t, &infra.Config{RunComfyAPIKey: "cfg-key", DeploymentID: "dep"})

	rr := do(t, h, http.MethodPost, "/v1/sessions", nil, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rr.Code, rr.Body)
	}
	sess := decodeSession(t, rr)
	base := "/v1/sessions/" + sess.ID

	rr = do(t, h, http.MethodPost, base+"/candidates", map[string]any{"prompt": "noir detective", "batch_size": 2, "shot": "close-up"}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("candidates status = %d: %s", rr.Code, rr.Body)
	}
	sess = decodeSession(t, rr)
	if sess.State != wizard.StateSelecting || len(sess.Candidates) != 2 || sess.Face.Shot != "Close-up" {
		t.Fatalf("unexpected session after casting: %+v", sess)
	}

	rr = do(t, h, http.MethodPost, base+"/selection", map[string]string{"url": sess.Candidates[1]}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("selection status = %d: %s", rr.Code, rr.Body)
	}

	rr = do(t, h, http.MethodPost, base+"/scene", map[string]string{"outfit_prompt": "trench coat"}, map[string]string{
		handlers.HeaderAPIKey: "user-key",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("scene status = %d: %s", rr.Code, rr.Body)
	}
	sess = decodeSession(t, rr)
	if sess.State != wizard.StateDone || len(sess.Scenes) != 1 {
		t.Fatalf("unexpected session after shooting: %+v", sess)
	}
	auths := d.authorizations()
	if len(auths) != 2 || auths[0] != "Bearer cfg-key" || auths[1] != "Bearer user-key" {
		t.Fatalf("authorizations = %v", auths)
	}

	rr = do(t, h, http.MethodGet, base+"/archive", nil, nil)
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "application/zip" {
		t.Fatalf("archive status = %d type %q", rr.Code, rr.Header().Get("Content-Type"))
	}
	zr, err := zip.NewReader(bytes.NewReader(rr.Body.Bytes()), int64(rr.Body.Len()))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != 1 || zr.File[0].Name != "scene-01.png" {
		t.Fatalf("archive entries = %v", zr.File)
	}

	rr = do(t, h, http.MethodPost, base+"/restart", nil, nil)
	if rr.Code != http.StatusOK || decodeSession(t, rr).State != wizard.StateCasting {
		t.Fatalf("restart failed: %d", rr.Code)
	}

	rr = do(t, h, http.MethodDelete, base, nil, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rr.Code)
	}
	rr = do(t, h, http.MethodGet, base, nil, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", rr.Code)
	}
}

func TestErrorResponses(t *testing.T) {
	h, d := newTestRouter(t, &infra.Config{})

	sess := decodeSession(t, do(t, h, http.MethodPost, "/v1/sessions", nil, nil))
	base := "/v1/sessions/" + sess.ID

	tests := []struct {
		name    string
		method  string
		path    string
		body    any
		headers map[string]string
		status  int
		code    string
		message string
	}{
		{
			name:   "missing credentials",
			method: http.MethodPost,
			path:   base + "/candidates",
			body:   map[string]any{"prompt": "p"},
			status: http.StatusBadRequest,
			code:   "missing_credentials",
		},
		{
			name:    "invalid option",
			method:  http.MethodPost,
			path:    base + "/candidates",
			body:    map[string]any{"prompt": "p", "eyes_color": "Purple"},
			headers: map[string]string{handlers.HeaderAPIKey: "k", handlers.HeaderDeploymentID: "dep"},
			status:  http.StatusBadRequest,
			code:    "invalid_request",
		},
		{
			name:   "scene before selection",
			method: http.MethodPost,
			path:   base + "/scene",
			body:   map[string]string{"outfit_prompt": "suit"},
			status: http.StatusConflict,
			code:   "invalid_step",
		},
		{
			name:    "unknown session in korean",
			method:  http.MethodGet,
			path:    "/v1/sessions/nope",
			headers: map[string]string{"Accept-Language": "ko-KR"},
			status:  http.StatusNotFound,
			code:    "not_found",
			message: "세션을 찾을 수 없습니다.",
		},
		{
			name:   "archive without scenes",
			method: http.MethodGet,
			path:   base + "/archive",
			status: http.StatusConflict,
			code:   "no_scenes",
		},
		{
			name:   "unknown field",
			method: http.MethodPost,
			path:   base + "/selection",
			body:   map[string]string{"face": "x"},
			status: http.StatusBadRequest,
			code:   "bad_request",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, h, tc.method, tc.path, tc.body, tc.headers)
			if rr.Code != tc.status {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tc.status, rr.Body)
			}
			var body struct {
				Error   string `json:"error"`
				Message string `json:"message"`
			}
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error != tc.code {
				t.Fatalf("error = %q, want %q", body.Error, tc.code)
			}
			if tc.message != "" && body.Message != tc.message {
				t.Fatalf("message = %q, want %q", body.Message, tc.message)
			}
		})
	}
	if n := len(d.authorizations()); n != 0 {
		t.Fatalf("rejected requests reached the deployment %d times", n)
	}
}

func TestHealthAndOptions(t *testing.T) {
	h, _ := newTestRouter(t, &infra.Config{})

	rr := do(t, h, http.MethodGet, "/v1/healthz", nil, nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Fatalf("healthz = %d %s", rr.Code, rr.Body)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing request id header")
	}

	rr = do(t, h, http.MethodGet, "/v1/options", nil, nil)
	var catalog casting.Catalog
	if err := json.NewDecoder(rr.Body).Decode(&catalog); err != nil {
		t.Fatalf("decode options: %v", err)
	}
	if catalog.Shot.Default != casting.DefaultShot || catalog.MaxBatchSize != casting.MaxBatchSize {
		t.Fatalf("unexpected catalog: %+v", catalog)
	}
}

func TestCORSPreflight(t *testing.T) {
	h, _ := newTestRouter(t, &infra.Config{CORSOrigins: []string{"https://studio.example"}})

	req := httptest.NewRequest(http.MethodOptions, "/v1/sessions", nil)
	req.Header.Set("Origin", "https://studio.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "https://studio.example" {
		t.Fatalf("allow origin = %q", rr.Header().Get("Access-Control-Allow-Origin"))
	}
	if !strings.Contains(rr.Header().Get("Access-Control-Allow-Headers"), handlers.HeaderAPIKey) {
		t.Fatalf("credential header not allowed: %q", rr.Header().Get("Access-Control-Allow-Headers"))
	}
}

func TestRateLimitKeysOnPeerUnlessProxyTrusted(t *testing.T) {
	tests := []struct {
		name   string
		trust  bool
		passed int
	}{
		{name: "untrusted forwarded headers", trust: false, passed: 1},
		{name: "trusted proxy", trust: true, passed: 5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h, _ := newTestRouter(t, &infra.Config{RateLimitPerMin: 1, TrustProxyHeaders: tc.trust})
			passed := 0
			for i := 0; i < 5; i++ {
				rr := do(t, h, http.MethodGet, "/v1/options", nil, map[string]string{
					"X-Forwarded-For": fmt.Sprintf("203.0.113.%d", i+1),
				})
				if rr.Code == http.StatusOK {
					passed++
				}
			}
			if passed != tc.passed {
				t.Fatalf("%d requests passed, want %d", passed, tc.passed)
			}
		})
	}
}
