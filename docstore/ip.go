package docstore

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"profitcal/logger"
)

// 操作日志里记录的客户端公网 IP。失败时退化为 "unknown"，不影响主流程。
var (
	ipOnce   sync.Once
	cachedIP string
)

const ipLookupURL = "https://api.ipify.org"

// PublicIP 查询并缓存本机公网 IP
func PublicIP(ctx context.Context) string {
	ipOnce.Do(func() {
		cachedIP = "unknown"

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ipLookupURL, nil)
		if err != nil {
			return
		}
		client := &http.Client{Timeout: 5 * time.Second}
		resp, err := client.Do(req)
		if err != nil {
			logger.Debug("查询公网 IP 失败: %v", err)
			return
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
		if err != nil || resp.StatusCode != http.StatusOK {
			return
		}
		ip := strings.TrimSpace(string(body))
		if ip != "" {
			cachedIP = ip
		}
	})
	return cachedIP
}
