package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"RUNCOMFY_API_KEY", "DEPLOYMENT_ID", "RUNCOMFY_BASE_URL", "RUNCOMFY_POLL_INTERVAL_SECONDS",
		"RUNCOMFY_MAX_WAIT_SECONDS", "RUNCOMFY_EMBED_FACE", "RUNCOMFY_SCENE_OUTPUT_NODE", "CORS_ALLOWED_ORIGINS",
		"RUNCOMFY_REQUEST_TIMEOUT_SECONDS", "HTTP_WRITE_TIMEOUT_SECONDS", "TRUST_PROXY_HEADERS",
	} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.RunComfyBaseURL != "https://api.runcomfy.net/prod/v1" {
		t.Fatalf("RunComfyBaseURL mismatch: %q", cfg.RunComfyBaseURL)
	}
	if cfg.RunComfyTimeout != 60*time.Second || cfg.RunComfyPollInterval != 2*time.Second || cfg.RunComfyMaxWait != 10*time.Minute {
		t.Fatalf("timing defaults mismatch: %+v", cfg)
	}
	if cfg.FaceOutputNode != "84" || cfg.SceneOutputNode != "54" || !cfg.EmbedFaceImage {
		t.Fatalf("workflow defaults mismatch: %+v", cfg)
	}
	if cfg.HasRunComfyCredentials() {
		t.Fatalf("expected no credentials")
	}
	if cfg.TrustProxyHeaders {
		t.Fatalf("proxy headers must not be trusted by default")
	}
	// submit + max wait + result + face download, plus slack
	if want := 10*time.Minute + 3*time.Minute + 30*time.Second; cfg.HTTPWriteTimeout != want {
		t.Fatalf("HTTPWriteTimeout = %s, want %s", cfg.HTTPWriteTimeout, want)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://localhost:3000" {
		t.Fatalf("CORSOrigins mismatch: %#v", cfg.CORSOrigins)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("RUNCOMFY_API_KEY", "  key-123 ")
	t.Setenv("DEPLOYMENT_ID", "dep-9")
	t.Setenv("RUNCOMFY_MAX_WAIT_SECONDS", "-1")
	t.Setenv("RUNCOMFY_EMBED_FACE", "false")
	t.Setenv("RUNCOMFY_SCENE_OUTPUT_NODE", "*")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("RUNCOMFY_POLL_INTERVAL_SECONDS", "not-a-number")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if !cfg.HasRunComfyCredentials() || cfg.RunComfyAPIKey != "key-123" {
		t.Fatalf("credentials not loaded: %+v", cfg)
	}
	if cfg.RunComfyMaxWait >= 0 {
		t.Fatalf("expected negative max wait, got %s", cfg.RunComfyMaxWait)
	}
	if cfg.EmbedFaceImage || cfg.SceneOutputNode != "*" {
		t.Fatalf("workflow overrides ignored: %+v", cfg)
	}
	if cfg.RunComfyPollInterval != 2*time.Second {
		t.Fatalf("invalid interval should fall back, got %s", cfg.RunComfyPollInterval)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.CORSOrigins) != len(want) {
		t.Fatalf("CORSOrigins mismatch: %#v", cfg.CORSOrigins)
	}
	for i := range want {
		if cfg.CORSOrigins[i] != want[i] {
			t.Fatalf("CORSOrigins[%d] = %q, want %q", i, cfg.CORSOrigins[i], want[i])
		}
	}
}

func TestWriteTimeoutFollowsStepBudget(t *testing.T) {
	tests := []struct {
		name    string
		maxWait string
		timeout string
		write   string
		want    time.Duration
	}{
		{name: "derived", maxWait: "120", timeout: "10", want: 120*time.Second + 30*time.Second + 30*time.Second},
		{name: "unbounded polling", maxWait: "-1", timeout: "60", want: 0},
		{name: "explicit", maxWait: "600", timeout: "60", write: "90", want: 90 * time.Second},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("RUNCOMFY_MAX_WAIT_SECONDS", tc.maxWait)
			t.Setenv("RUNCOMFY_REQUEST_TIMEOUT_SECONDS", tc.timeout)
			t.Setenv("HTTP_WRITE_TIMEOUT_SECONDS", tc.write)

			cfg, err := LoadConfig()
			if err != nil {
				t.Fatalf("LoadConfig returned error: %v", err)
			}
			if cfg.HTTPWriteTimeout != tc.want {
				t.Fatalf("HTTPWriteTimeout = %s, want %s", cfg.HTTPWriteTimeout, tc.want)
			}
			if tc.write == "" && cfg.HTTPWriteTimeout != 0 && cfg.HTTPWriteTimeout <= cfg.RunComfyMaxWait+cfg.RunComfyTimeout {
				t.Fatalf("write timeout %s does not cover a step", cfg.HTTPWriteTimeout)
			}
		})
	}
}
