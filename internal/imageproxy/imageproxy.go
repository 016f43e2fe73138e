// Package imageproxy fetches whitelisted remote images on behalf of portal
// pages, working around hotlink protection on the upstream CDNs.
package imageproxy

import (
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"portal-server/internal/apierrors"
	"portal-server/internal/config"
	"portal-server/internal/observability"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// passthroughHeaders are copied from the upstream response so browsers can
// cache proxied images.
var passthroughHeaders = []string{"Cache-Control", "ETag", "Last-Modified"}

type Handler struct {
	allowHosts    map[string]struct{}
	allowSuffixes []string
	h2Client      *http.Client
	h1Client      *http.Client
	logger        *observability.Logger
}

func New(cfg config.ImageProxyConfig, logger *observability.Logger) Handler {
	hosts := make(map[string]struct{}, len(cfg.AllowHosts))
	for _, host := range cfg.AllowHosts {
		hosts[strings.ToLower(host)] = struct{}{}
	}
	suffixes := make([]string, 0, len(cfg.AllowSuffixes))
	for _, suffix := range cfg.AllowSuffixes {
		suffixes = append(suffixes, strings.ToLower(suffix))
	}

	dialer := &net.Dialer{Timeout: 5 * time.Second}
	h2Transport := &http.Transport{
		DialContext:       dialer.DialContext,
		ForceAttemptHTTP2: true,
	}
	// Some upstream CDNs advertise h2 but reset mid-stream; the fallback
	// client never negotiates h2.
	h1Transport := &http.Transport{
		DialContext:       dialer.DialContext,
		ForceAttemptHTTP2: false,
		TLSNextProto:      map[string]func(string, *tls.Conn) http.RoundTripper{},
	}

	return Handler{
		allowHosts:    hosts,
		allowSuffixes: suffixes,
		h2Client:      &http.Client{Transport: h2Transport, Timeout: 10 * time.Second},
		h1Client:      &http.Client{Transport: h1Transport, Timeout: 10 * time.Second},
		logger:        logger,
	}
}

// HandleProxy handles GET /img-proxy?u=
func (h *Handler) HandleProxy(c *gin.Context) {
	ctx := c.Request.Context()

	raw := c.Query("u")
	if raw == "" {
		apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "u is required"))
		return
	}
	target, err := url.Parse(raw)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") {
		apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "u must be an http or https URL"))
		return
	}
	host := strings.ToLower(target.Hostname())
	if !h.hostAllowed(host) {
		apierrors.RespondWithError(c, apierrors.Forbidden("host not allowed"))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "invalid target URL"))
		return
	}
	req.Header.Set("User-Agent", browserUserAgent)
	if referer := refererFor(host); referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := h.h2Client.Do(req)
	if err != nil {
		// Retry once over HTTP/1.1; h2 stream resets are the usual cause.
		h.logger.WarnWithError(ctx, "image fetch failed over h2, retrying with http/1.1", err)
		retry := req.Clone(ctx)
		resp, err = h.h1Client.Do(retry)
	}
	if err != nil {
		h.logger.Error(ctx, "failed to fetch upstream image", err)
		apierrors.RespondWithError(c, apierrors.BadGateway("failed to fetch image", err))
		return
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || strings.Contains(strings.ToLower(contentType), "html") {
		// Hotlink blockers answer 200 with an HTML error page.
		contentType = "image/png"
	}
	for _, header := range passthroughHeaders {
		if v := resp.Header.Get(header); v != "" {
			c.Header(header, v)
		}
	}

	c.Status(resp.StatusCode)
	c.Header("Content-Type", contentType)
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		h.logger.WarnWithError(ctx, "failed to stream image body", err)
	}
}

func (h *Handler) hostAllowed(host string) bool {
	if _, ok := h.allowHosts[host]; ok {
		return true
	}
	for _, suffix := range h.allowSuffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

// refererFor spoofs the referer the upstream expects for hotlinked assets.
func refererFor(host string) string {
	if strings.HasSuffix(host, ".pstatic.net") || strings.HasSuffix(host, ".naver.com") || strings.HasSuffix(host, ".naver.net") {
		return "https://blog.naver.com/"
	}
	return ""
}
