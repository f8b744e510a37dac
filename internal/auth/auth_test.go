package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danmuck/stridelink/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
)

func TestStaticTokenValidate(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name    string
		stored  string
		input   string
		wantErr error
	}{
		{name: "empty token denied", stored: "", input: "abc", wantErr: ErrUnauthorized},
		{name: "mismatched token denied", stored: "abc", input: "xyz", wantErr: ErrUnauthorized},
		{name: "matching token accepted", stored: "abc", input: "abc", wantErr: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := (StaticToken{Token: tc.stored}).Validate(tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected err %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"Bearer abc":   "abc",
		"bearer  xyz ": "xyz",
	}
	for header, want := range cases {
		if got, ok := BearerToken(header); !ok || got != want {
			t.Fatalf("BearerToken(%q)=%q,%v", header, got, ok)
		}
	}
	for _, header := range []string{"", "Basic abc", "Bearer", "Bearer   "} {
		if _, ok := BearerToken(header); ok {
			t.Fatalf("BearerToken(%q) accepted", header)
		}
	}
}

func TestRequire(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.PUT("/guarded", Require(StaticToken{Token: "ok"}), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.PUT("/open", Require(nil), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	cases := []struct {
		path   string
		header string
		want   int
	}{
		{"/guarded", "", http.StatusUnauthorized},
		{"/guarded", "Bearer bad", http.StatusUnauthorized},
		{"/guarded", "Bearer ok", http.StatusNoContent},
		{"/open", "", http.StatusNoContent},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPut, tc.path, nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s %q: status=%d want %d", tc.path, tc.header, rec.Code, tc.want)
		}
	}
}
