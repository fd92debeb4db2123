package metrics

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"profitcal/logger"
)

// SystemMetrics 系统资源快照（状态接口返回用）
type SystemMetrics struct {
	Timestamp     time.Time `json:"timestamp"`
	CPUPercent    float64   `json:"cpuPercent"`
	MemoryMB      float64   `json:"memoryMb"`
	MemoryPercent float64   `json:"memoryPercent"`
	Goroutines    int       `json:"goroutines"`
	ProcessID     int       `json:"processId"`
}

// CollectSystemMetrics 采集当前进程的资源占用
func CollectSystemMetrics() (*SystemMetrics, error) {
	pid := os.Getpid()
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, fmt.Errorf("获取进程失败: %w", err)
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		// 进程级获取失败时退回系统级
		percentages, cerr := cpu.Percent(time.Second, false)
		if cerr != nil || len(percentages) == 0 {
			return nil, fmt.Errorf("获取CPU占用率失败: %w", err)
		}
		cpuPercent = percentages[0]
	}

	memInfo, err := p.MemoryInfo()
	if err != nil {
		return nil, fmt.Errorf("获取内存信息失败: %w", err)
	}
	memoryMB := float64(memInfo.RSS) / 1024 / 1024

	var memoryPercent float64
	if memStat, err := mem.VirtualMemory(); err == nil && memStat.Total > 0 {
		memoryPercent = (float64(memInfo.RSS) / float64(memStat.Total)) * 100
	}

	return &SystemMetrics{
		Timestamp:     time.Now(),
		CPUPercent:    cpuPercent,
		MemoryMB:      memoryMB,
		MemoryPercent: memoryPercent,
		Goroutines:    runtime.NumGoroutine(),
		ProcessID:     pid,
	}, nil
}

// SystemCollector 周期性采集系统指标并写入 Prometheus
type SystemCollector struct {
	interval time.Duration
	cancel   context.CancelFunc
}

// NewSystemCollector 创建系统指标采集器
func NewSystemCollector(interval time.Duration) *SystemCollector {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &SystemCollector{interval: interval}
}

// Start 启动采集循环
func (sc *SystemCollector) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	sc.cancel = cancel

	go func() {
		ticker := time.NewTicker(sc.interval)
		defer ticker.Stop()

		sc.collect()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sc.collect()
			}
		}
	}()
}

// Stop 停止采集
func (sc *SystemCollector) Stop() {
	if sc.cancel != nil {
		sc.cancel()
	}
}

func (sc *SystemCollector) collect() {
	m, err := CollectSystemMetrics()
	if err != nil {
		logger.Debug("采集系统指标失败: %v", err)
		return
	}
	SetSystemStats(m.CPUPercent, m.MemoryMB, m.Goroutines)
}
