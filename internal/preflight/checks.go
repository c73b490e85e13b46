package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"ltpexport/internal/fieldconfig"
	"ltpexport/internal/queue"
)

const hostTimeout = 5 * time.Second

// CheckHost verifies that the backend host answers HTTP. Any response counts
// as reachable; authentication is exercised by the first real ingest.
func CheckHost(ctx context.Context, name, host string) Result {
	base := strings.TrimRight(strings.TrimSpace(host), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing host"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, hostTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid host (%v)", err)}
	}
	client := &http.Client{
		Timeout: hostTimeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeHostError(err)}
	}
	defer resp.Body.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable (%d)", base, resp.StatusCode)}
}

// CheckFieldConfiguration verifies the field configuration parses and maps at
// least one content type.
func CheckFieldConfiguration(text string) Result {
	const name = "Field configuration"

	mapping, err := fieldconfig.Parse(text)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	types := mapping.ContentTypes()
	if len(types) == 0 {
		return Result{Name: name, Detail: "no content types configured"}
	}
	return Result{Name: name, Passed: true, Detail: strings.Join(types, ", ")}
}

// CheckRedis verifies the Redis queue backend answers a ping.
func CheckRedis(ctx context.Context, url, prefix string) Result {
	const name = "Redis queue"

	q, err := queue.OpenRedis(url, prefix)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer q.Close()
	stats, err := q.Stats(ctx)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d items (%d pending, %d claimed)", stats.Total(), stats.Pending, stats.Claimed)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

func summarizeHostError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out (host unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out (host unreachable)"
	}
	return err.Error()
}
