package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/storefront-finder/internal/metrics"
)

const allowAllRobots = "User-agent: *\nAllow: /"

// robotsFallbackTransport treats a robots.txt probe that times out as
// allow-all so a slow robots endpoint does not hide the storefront itself.
type robotsFallbackTransport struct {
	base   http.RoundTripper
	logger *zap.Logger
}

func (t *robotsFallbackTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("robots transport received nil request")
	}
	resp, err := t.base.RoundTrip(req)
	if err == nil {
		return resp, nil
	}
	if isRobotsTxtRequest(req) && isTimeout(err) {
		metrics.ObserveRobotsFallback()
		if t.logger != nil {
			t.logger.Debug("robots.txt probe timed out; assuming allow-all",
				zap.String("host", req.URL.Host), zap.Error(err))
		}
		return syntheticRobotsAllowAllResponse(req), nil
	}
	return nil, fmt.Errorf("robots transport base roundtrip: %w", err)
}

func isRobotsTxtRequest(req *http.Request) bool {
	if req == nil || req.URL == nil {
		return false
	}
	return strings.EqualFold(req.URL.Path, "/robots.txt")
}

func syntheticRobotsAllowAllResponse(req *http.Request) *http.Response {
	return &http.Response{
		StatusCode:    http.StatusOK,
		Status:        "200 OK",
		Body:          io.NopCloser(strings.NewReader(allowAllRobots)),
		ContentLength: int64(len(allowAllRobots)),
		Header:        make(http.Header),
		Request:       req,
	}
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "tls: handshake timeout")
}
