package api

import (
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"runtime"
	"runtime/debug"

	ckanAPIHelper "github.com/geromet/CKAN/utils/api"
	ckanLogger "github.com/geromet/CKAN/utils/logger"

	"github.com/gofiber/fiber/v2"
)

func mb(b uint64) string {
	return fmt.Sprintf("%.1f", float64(b)/1024/1024)
}

func handleMemStats() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		return c.JSON(fiber.Map{
			"alloc_mb":         mb(m.Alloc),
			"total_alloc_mb":   mb(m.TotalAlloc),
			"sys_mb":           mb(m.Sys),
			"heap_alloc_mb":    mb(m.HeapAlloc),
			"heap_sys_mb":      mb(m.HeapSys),
			"heap_idle_mb":     mb(m.HeapIdle),
			"heap_inuse_mb":    mb(m.HeapInuse),
			"heap_released_mb": mb(m.HeapReleased),
			"heap_objects":     m.HeapObjects,
			"goroutines":       runtime.NumGoroutine(),
			"num_gc":           m.NumGC,
			"gc_cpu_fraction":  fmt.Sprintf("%.4f", m.GCCPUFraction),
		})
	}
}

func handleFreeMem() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var before runtime.MemStats
		runtime.ReadMemStats(&before)

		runtime.GC()
		debug.FreeOSMemory()

		var after runtime.MemStats
		runtime.ReadMemStats(&after)

		// Signed so a heap that grew during collection reads as negative
		// instead of wrapping.
		freed := float64(before.HeapAlloc) - float64(after.HeapAlloc)
		return c.JSON(fiber.Map{
			"before_heap_mb":   mb(before.HeapAlloc),
			"after_heap_mb":    mb(after.HeapAlloc),
			"freed_mb":         fmt.Sprintf("%.1f", freed/1024/1024),
			"heap_released_mb": mb(after.HeapReleased),
		})
	}
}

// RegisterDebugRoutes exposes runtime statistics and the Go pprof
// endpoints. Only wired up when the backend runs with debug enabled.
func RegisterDebugRoutes(apiHelper *ckanAPIHelper.RegistryRouterHelpers) {
	logger := ckanLogger.NewLogger("Debug", "DEBUG", nil)

	go func() {
		logger.Infof("Starting pprof server on :6060")
		if err := http.ListenAndServe(":6060", nil); err != nil {
			logger.Errorf("pprof server failed: %v", err)
		}
	}()

	apiHelper.Router.Get("/debug/memstats", handleMemStats())
	apiHelper.Router.Post("/debug/freemem", handleFreeMem())
}
