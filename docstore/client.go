package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"profitcal/ledger"
	"profitcal/logger"
)

// Client 文档存储客户端。整个账本文档作为一个 JSON blob 读写，
// 没有增量接口，每次写入都是整体覆盖。
type Client struct {
	baseURL    string
	masterKey  string
	httpClient *http.Client

	// 写入限速，避免触发远端的配额限制
	writeLimiter *rate.Limiter
}

// Options 客户端构建参数
type Options struct {
	BaseURL     string
	MasterKey   string
	Timeout     time.Duration
	WritesPerMin int
}

// NewClient 创建文档存储客户端
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	writesPerMin := opts.WritesPerMin
	if writesPerMin <= 0 {
		writesPerMin = 30
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		masterKey:  opts.MasterKey,
		httpClient: &http.Client{Timeout: timeout},
		writeLimiter: rate.NewLimiter(rate.Limit(float64(writesPerMin)/60.0), 1),
	}
}

// envelope 远端的响应包裹：文档在 record 字段里
type envelope struct {
	Record json.RawMessage `json:"record"`
}

// FetchRaw 读取整份文档的原始 JSON
func (c *Client) FetchRaw(ctx context.Context, binID string) (json.RawMessage, error) {
	if binID == "" {
		return nil, fmt.Errorf("文档 ID 为空")
	}

	url := fmt.Sprintf("%s/b/%s/latest", c.baseURL, binID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("构建请求失败: %w", err)
	}
	req.Header.Set("X-Master-Key", c.masterKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("读取文档失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("读取文档失败: HTTP %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	if len(env.Record) == 0 {
		return nil, fmt.Errorf("响应中缺少 record 字段")
	}
	return env.Record, nil
}

// Fetch 读取并解析整份账本文档
func (c *Client) Fetch(ctx context.Context, binID string) (*ledger.ProfitData, error) {
	raw, err := c.FetchRaw(ctx, binID)
	if err != nil {
		return nil, err
	}

	doc := ledger.NewProfitData()
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("解析账本文档失败: %w", err)
	}
	if doc.Data == nil {
		doc.Data = map[string]*ledger.UserData{}
	}
	doc.SyncUsers()
	return doc, nil
}

// Put 整体覆盖写入文档，返回远端回显的文档内容。
// 写入前经过限速器，ctx 取消时立即返回。
func (c *Client) Put(ctx context.Context, binID string, doc *ledger.ProfitData) (*ledger.ProfitData, error) {
	if binID == "" {
		return nil, fmt.Errorf("文档 ID 为空")
	}
	if err := c.writeLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("写入限速等待被取消: %w", err)
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("序列化文档失败: %w", err)
	}

	url := fmt.Sprintf("%s/b/%s", c.baseURL, binID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("构建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Master-Key", c.masterKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("写入文档失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("写入文档失败: HTTP %d: %s", resp.StatusCode, truncate(body, 200))
	}

	// 以远端回显为准覆盖本地，保证镜像与远端一致
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil || len(env.Record) == 0 {
		logger.Warn("⚠️ 写入成功但回显解析失败，保留本地文档")
		return doc, nil
	}

	echoed := ledger.NewProfitData()
	if err := json.Unmarshal(env.Record, echoed); err != nil {
		logger.Warn("⚠️ 写入成功但回显文档解析失败: %v", err)
		return doc, nil
	}
	if echoed.Data == nil {
		echoed.Data = map[string]*ledger.UserData{}
	}
	echoed.SyncUsers()
	return echoed, nil
}

func truncate(b []byte, n int) string {
	s := string(b)
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
