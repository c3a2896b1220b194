package mediafetch

import (
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

const defaultTimeout = 30 * time.Second

// Fetch downloads media bytes from a URL, enforcing maxSize when positive.
// Adapters use it to turn URL-based media requests into the raw bytes their
// upload protocols want.
func Fetch(url string, maxSize int64) (data []byte, contentType string, err error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)

	if err := fasthttp.DoTimeout(req, resp, defaultTimeout); err != nil {
		return nil, "", fmt.Errorf("failed to fetch media from %s: %w", url, err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, "", fmt.Errorf("media fetch from %s returned status %d", url, resp.StatusCode())
	}

	body := resp.Body()
	if maxSize > 0 && int64(len(body)) > maxSize {
		return nil, "", fmt.Errorf("media from %s exceeds size limit (%d > %d bytes)", url, len(body), maxSize)
	}

	out := make([]byte, len(body))
	copy(out, body)
	return out, string(resp.Header.ContentType()), nil
}
