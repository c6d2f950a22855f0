// Package download drains asset downloads sequentially with a fixed minimum
// spacing between transfers, keeping within host rate and UX limits.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"media-studio-server/modules/common/imagex"
)

// DefaultDelay - minimum spacing between successive downloads
const DefaultDelay = 500 * time.Millisecond

// Task - one asset to fetch and store
type Task struct {
	SessionID string
	URL       string
	Filename  string
}

// Queue - single-consumer rate-limited download queue
type Queue struct {
	dir    string
	delay  time.Duration
	tasks  chan Task
	log    *zap.SugaredLogger
	onDone func(task Task, path string, err error)
	http   *http.Client
}

// NewQueue - onDone may be nil; it is invoked after each task, successful
// or not, before the spacing delay starts.
func NewQueue(dir string, delay time.Duration, log *zap.SugaredLogger, onDone func(Task, string, error)) *Queue {
	return &Queue{
		dir:    dir,
		delay:  delay,
		tasks:  make(chan Task, 64),
		log:    log,
		onDone: onDone,
		http:   &http.Client{Timeout: 60 * time.Second},
	}
}

// Enqueue - queue a download; returns an error when the queue is saturated
// instead of blocking the caller.
func (q *Queue) Enqueue(task Task) error {
	select {
	case q.tasks <- task:
		return nil
	default:
		return fmt.Errorf("download queue is full")
	}
}

// Start - run the consumer loop until ctx is cancelled. Downloads are
// strictly sequential; after each one the loop waits the configured delay
// before picking up the next task.
func (q *Queue) Start(ctx context.Context) {
	go func() {
		q.log.Info("🔄 Download queue worker starting...")
		for {
			select {
			case <-ctx.Done():
				q.log.Info("👋 Download queue worker stopped")
				return
			case task := <-q.tasks:
				path, err := q.download(ctx, task)
				if err != nil {
					q.log.Warnf("⚠️  Download failed for %s: %v", task.Filename, err)
				} else {
					q.log.Infof("📥 Downloaded %s", path)
				}
				if q.onDone != nil {
					q.onDone(task, path, err)
				}

				select {
				case <-ctx.Done():
					return
				case <-time.After(q.delay):
				}
			}
		}
	}()
}

func (q *Queue) download(ctx context.Context, task Task) (string, error) {
	if err := os.MkdirAll(q.dir, 0o755); err != nil {
		return "", err
	}

	name := filepath.Base(task.Filename)
	if name == "" || name == "." || name == "/" {
		name = fmt.Sprintf("asset_%d", time.Now().UnixMilli())
	}
	path := filepath.Join(q.dir, name)

	// Inline assets skip the network entirely.
	if strings.HasPrefix(task.URL, "data:") {
		data, _, err := imagex.DecodeDataURL(task.URL)
		if err != nil {
			return "", err
		}
		return path, os.WriteFile(path, data, 0o644)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, task.URL, nil)
	if err != nil {
		return "", err
	}
	resp, err := q.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return "", err
	}
	return path, nil
}
