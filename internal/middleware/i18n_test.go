package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDetectLocale(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *http.Request)
		fallback string
		lookup   CountryLookup
		want     string
	}{
		{
			name: "x-locale overrides",
			setup: func(r *http.Request) {
				r.Header.Set("X-Locale", "ko-KR")
				r.Header.Set("Accept-Language", "en-US")
			},
			want: "ko",
		},
		{
			name: "accept-language english",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "en-US,en;q=0.9")
			},
			fallback: "ko",
			want:     "en",
		},
		{
			name: "accept-language korean preference",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en;q=0.5")
			},
			want: "ko",
		},
		{
			name: "unsupported language uses country header",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "fr-FR")
				r.Header.Set("CF-IPCountry", "kr")
			},
			fallback: "en",
			want:     "ko",
		},
		{
			name:     "geoip lookup",
			lookup:   func(ip string) (string, error) { return "KR", nil },
			fallback: "en",
			want:     "ko",
		},
		{
			name:     "geoip non-korean country",
			lookup:   func(ip string) (string, error) { return "us", nil },
			fallback: "ko",
			want:     "en",
		},
		{
			name:     "lookup failure falls back",
			lookup:   func(ip string) (string, error) { return "", errors.New("no db") },
			fallback: "ko",
			want:     "ko",
		},
		{
			name: "default to en",
			want: "en",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.setup != nil {
				tc.setup(req)
			}
			var got string
			handler := I18N(tc.fallback, tc.lookup)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = LocaleFromContext(r.Context())
			}))
			handler.ServeHTTP(httptest.NewRecorder(), req)
			if got != tc.want {
				t.Fatalf("locale = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNormalizeLocale(t *testing.T) {
	cases := map[string]string{
		"ko":    "ko",
		"KO-kr": "ko",
		"en-GB": "en",
		"id":    "en",
		"":      "en",
		"!!":    "en",
	}
	for in, want := range cases {
		if got := normalizeLocale(in); got != want {
			t.Fatalf("normalizeLocale(%q) = %q, want %q", in, got, want)
		}
	}
}
