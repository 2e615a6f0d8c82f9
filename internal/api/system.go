package api

import (
	"net/http"
	"os"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/tphakala/quack-go/internal/logger"
)

// SystemInfo is the body of GET /system.
type SystemInfo struct {
	Version       string  `json:"version"`
	GoVersion     string  `json:"goVersion"`
	PID           int32   `json:"pid"`
	MemoryRSS     uint64  `json:"memoryRss"`
	CPUPercent    float64 `json:"cpuPercent"`
	Goroutines    int     `json:"goroutines"`
	Streams       int64   `json:"streams"`
	HostUptime    uint64  `json:"hostUptime"`    // seconds
	HostMemoryUse float64 `json:"hostMemoryUse"` // percent
}

// GetSystem reports process and host resource usage. Host figures that
// cannot be read are left at zero.
func (s *Server) GetSystem(c echo.Context) error {
	ctx := c.Request().Context()

	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())) //nolint:gosec // pid fits in int32
	if err != nil {
		return s.HandleError(c, err, "Failed to inspect process", http.StatusInternalServerError)
	}

	info := SystemInfo{
		Version:    s.version,
		GoVersion:  runtime.Version(),
		PID:        proc.Pid,
		Goroutines: runtime.NumGoroutine(),
		Streams:    s.streams.Load(),
	}

	if memInfo, err := proc.MemoryInfoWithContext(ctx); err == nil {
		info.MemoryRSS = memInfo.RSS
	} else {
		s.logger.Debug("process memory unavailable", logger.Error(err))
	}
	if pct, err := proc.CPUPercentWithContext(ctx); err == nil {
		info.CPUPercent = pct
	}
	if uptime, err := host.UptimeWithContext(ctx); err == nil {
		info.HostUptime = uptime
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.HostMemoryUse = vm.UsedPercent
	}

	return c.JSON(http.StatusOK, info)
}
