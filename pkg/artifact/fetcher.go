package artifact

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mixdeskhq/mixdesk/internal/studio/client"
	"github.com/mixdeskhq/mixdesk/pkg/metrics"
)

// Fetcher streams finished mashup files from the composer. The editors
// carry the tunnel bypass header so a download works through the same
// ngrok funnel as the API calls.
type Fetcher struct {
	client  *http.Client
	editors []client.RequestEditorFn
}

func NewFetcher(httpClient *http.Client, editors ...client.RequestEditorFn) *Fetcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Fetcher{client: httpClient, editors: editors}
}

// Fetch downloads url into dst. When the composer announces a
// Content-Length, a short body is an error.
func (f *Fetcher) Fetch(ctx context.Context, url string, dst io.Writer) error {
	metrics.IncreaseArtifactDownloadsTotalMetric(metrics.DownloadStarted)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		metrics.IncreaseArtifactDownloadsTotalMetric(metrics.DownloadFailed)
		return errors.Wrap(err, "failed to build artifact request")
	}
	for _, editor := range f.editors {
		if err := editor(ctx, req); err != nil {
			metrics.IncreaseArtifactDownloadsTotalMetric(metrics.DownloadFailed)
			return errors.Wrap(err, "failed to apply artifact request editor")
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		metrics.IncreaseArtifactDownloadsTotalMetric(metrics.DownloadFailed)
		return errors.Wrapf(err, "failed to fetch artifact %q", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.IncreaseArtifactDownloadsTotalMetric(metrics.DownloadFailed)
		return fmt.Errorf("failed to fetch artifact %q, status code: %d", url, resp.StatusCode)
	}

	totalSize := int64(0)
	if n, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64); err == nil {
		totalSize = n
	}

	newCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	mw := newWrapper(newCtx, dst, totalSize)

	if _, err := io.Copy(mw, resp.Body); err != nil {
		metrics.IncreaseArtifactDownloadsTotalMetric(metrics.DownloadFailed)
		return errors.Wrapf(err, "failed to fetch artifact %q", url)
	}

	if mw.total > 0 && mw.total != mw.downloadedBytes {
		metrics.IncreaseArtifactDownloadsTotalMetric(metrics.DownloadFailed)
		return fmt.Errorf("failed to download the entire artifact. expected bytes %d received %d", mw.total, mw.downloadedBytes)
	}

	metrics.IncreaseArtifactDownloadsTotalMetric(metrics.DownloadCompleted)
	return nil
}

// wrapper is a wrapper around the io.Writer to get metrics about download progress.
type wrapper struct {
	downloadedBytes int64
	total           int64
	w               io.Writer
}

func newWrapper(ctx context.Context, w io.Writer, totalBytesToDownload int64) *wrapper {
	mw := &wrapper{w: w, total: totalBytesToDownload}
	go mw.start(ctx)

	return mw
}

func (m *wrapper) start(ctx context.Context) {
	oldValue := int64(0)
	ticker := time.NewTicker(5 * time.Second)
	for {
		select {
		case <-ctx.Done():
			ticker.Stop()
			return
		case <-ticker.C:
			if m.total == 0 {
				progress := fmt.Sprintf("%.2f Mb", float32(m.downloadedBytes)/(1024*1024))
				zap.S().Named("artifact").Debugw("artifact downloading", "progress", progress)
				continue
			}

			progress := fmt.Sprintf("%.2f%%", 100*(float32(m.downloadedBytes)/float32(m.total)))
			rate := fmt.Sprintf("%.2f MB/s", (float32(m.downloadedBytes)-float32(oldValue))/(1024*1024*5))
			zap.S().Named("artifact").Debugw("artifact downloading", "progress", progress, "rate", rate)
			oldValue = m.downloadedBytes
		}
	}
}

func (m *wrapper) Write(p []byte) (n int, err error) {
	n, err = m.w.Write(p)
	if err == nil {
		m.downloadedBytes += int64(n)
	}
	return
}
