package composite

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/productcomposite/pkg/httpclient"
)

// ヘルスチェックの状態。
const (
	StatusUp   = "UP"
	StatusDown = "DOWN"
)

// ServiceHealth はひとつのバックエンドサービスのヘルス状態。
type ServiceHealth struct {
	Status string `json:"status"`
	URL    string `json:"url"`
	Error  string `json:"error,omitempty"`
}

// HealthReport はバックエンドサービス全体のヘルス状態。
// すべてのサービスがUPの場合のみStatusがUPになる。
type HealthReport struct {
	Status   string                   `json:"status"`
	Services map[string]ServiceHealth `json:"services"`
}

// HealthChecker はバックエンドサービスの/healthを並行に問い合わせる。
type HealthChecker struct {
	services map[string]*httpclient.Client
	timeout  time.Duration
}

// NewHealthChecker は新しいHealthCheckerを生成する。
func NewHealthChecker(services map[string]*httpclient.Client, timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthChecker{services: services, timeout: timeout}
}

// Check はすべてのバックエンドサービスの状態を取得する。
func (h *HealthChecker) Check(ctx context.Context) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var mu sync.Mutex
	report := HealthReport{Status: StatusUp, Services: make(map[string]ServiceHealth, len(h.services))}

	var g errgroup.Group
	for name, client := range h.services {
		g.Go(func() error {
			sh := probe(ctx, client)
			mu.Lock()
			defer mu.Unlock()
			report.Services[name] = sh
			if sh.Status != StatusUp {
				report.Status = StatusDown
			}
			return nil
		})
	}
	_ = g.Wait()
	return report
}

// probe はひとつのサービスの/healthを問い合わせる。
func probe(ctx context.Context, client *httpclient.Client) ServiceHealth {
	var body struct {
		Status string `json:"status"`
	}
	sh := ServiceHealth{Status: StatusDown, URL: client.BaseURL()}
	if err := client.GetJSON(ctx, "/health", &body); err != nil {
		sh.Error = err.Error()
		return sh
	}
	if body.Status != "ok" {
		sh.Error = "unexpected status: " + body.Status
		return sh
	}
	sh.Status = StatusUp
	return sh
}
