package imageproxy

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"portal-server/internal/config"
	"portal-server/internal/observability"
)

func newTestHandler(allowHosts ...string) Handler {
	return New(config.ImageProxyConfig{AllowHosts: allowHosts}, observability.NewLogger())
}

func doProxy(t *testing.T, handler Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	requestURL := "/img-proxy"
	if target != "" {
		requestURL += "?u=" + url.QueryEscape(target)
	}
	c.Request = httptest.NewRequest(http.MethodGet, requestURL, nil)
	handler.HandleProxy(c)
	return recorder
}

func TestHandleProxy_MissingURL(t *testing.T) {
	recorder := doProxy(t, newTestHandler(), "")
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "INVALID_INPUT") {
		t.Errorf("expected INVALID_INPUT code in body, got %q", recorder.Body.String())
	}
}

func TestHandleProxy_RejectsNonHTTPScheme(t *testing.T) {
	recorder := doProxy(t, newTestHandler(), "ftp://cdn.example.com/a.png")
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", recorder.Code)
	}
}

func TestHandleProxy_DisallowedHost(t *testing.T) {
	upstreamHit := false
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamHit = true
	}))
	defer upstream.Close()

	recorder := doProxy(t, newTestHandler("cdn.allowed.example"), upstream.URL+"/a.png")
	if recorder.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", recorder.Code)
	}
	if upstreamHit {
		t.Error("expected no upstream request for disallowed host")
	}
}

func TestHandleProxy_StreamsAllowedImage(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != browserUserAgent {
			t.Errorf("expected browser user agent, got %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Cache-Control", "max-age=3600")
		w.Header().Set("ETag", `"abc"`)
		w.Write([]byte("jpegbytes"))
	}))
	defer upstream.Close()

	parsed, _ := url.Parse(upstream.URL)
	recorder := doProxy(t, newTestHandler(parsed.Hostname()), upstream.URL+"/a.jpg")

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if got := recorder.Header().Get("Content-Type"); got != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %q", got)
	}
	if got := recorder.Header().Get("Cache-Control"); got != "max-age=3600" {
		t.Errorf("expected cache header passthrough, got %q", got)
	}
	if recorder.Body.String() != "jpegbytes" {
		t.Errorf("expected body passthrough, got %q", recorder.Body.String())
	}
}

func TestHandleProxy_UpstreamUnreachable(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	parsed, _ := url.Parse(upstream.URL)
	upstream.Close()

	recorder := doProxy(t, newTestHandler(parsed.Hostname()), upstream.URL+"/a.png")
	if recorder.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "UPSTREAM_ERROR") {
		t.Errorf("expected UPSTREAM_ERROR code in body, got %q", recorder.Body.String())
	}
}

func TestHandleProxy_HTMLContentTypeRewritten(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html>blocked</html>"))
	}))
	defer upstream.Close()

	parsed, _ := url.Parse(upstream.URL)
	recorder := doProxy(t, newTestHandler(parsed.Hostname()), upstream.URL+"/a.png")

	if got := recorder.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("expected html rewritten to image/png, got %q", got)
	}
}

func TestHandleProxy_SuffixAllowList(t *testing.T) {
	handler := New(config.ImageProxyConfig{AllowSuffixes: []string{".cdn.example"}}, observability.NewLogger())

	if !handler.hostAllowed("img1.cdn.example") {
		t.Error("expected suffix match to allow host")
	}
	if handler.hostAllowed("cdn.example.evil.com") {
		t.Error("expected non-suffix host rejected")
	}
}

func TestRefererFor(t *testing.T) {
	if got := refererFor("blogfiles.pstatic.net"); !strings.HasPrefix(got, "https://blog.naver.com") {
		t.Errorf("expected naver referer, got %q", got)
	}
	if got := refererFor("cdn.other.example"); got != "" {
		t.Errorf("expected no referer, got %q", got)
	}
}
