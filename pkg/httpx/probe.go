package httpx

import (
	"context"
	"sync"
	"time"
)

// Probe is one readiness dependency. Check returns nil when the dependency
// is usable.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// PingProbe adapts anything with a Ping method.
func PingProbe(name string, p interface{ Ping(context.Context) error }) Probe {
	return Probe{Name: name, Check: p.Ping}
}

// RunProbes runs every probe concurrently, each bounded by timeout. The
// result maps probe names to "ok" or "error: ..."; ready is false when any
// probe failed.
func RunProbes(ctx context.Context, timeout time.Duration, probes ...Probe) (results map[string]string, ready bool) {
	results = make(map[string]string, len(probes))
	ready = true

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, p := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			status := "ok"
			if err := p.Check(pctx); err != nil {
				status = "error: " + err.Error()
			}

			mu.Lock()
			defer mu.Unlock()
			results[p.Name] = status
			if status != "ok" {
				ready = false
			}
		}()
	}
	wg.Wait()
	return results, ready
}
