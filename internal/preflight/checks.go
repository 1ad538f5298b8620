package preflight

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"cdrip/internal/cdrom"
)

// Requirement names an external command cdrip may invoke.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// CheckBinary reports whether req's command is on PATH.
func CheckBinary(req Requirement) Result {
	result := Result{Name: req.Name, Optional: req.Optional}
	cmd := strings.TrimSpace(req.Command)
	if cmd == "" {
		result.Detail = "command not configured"
		return result
	}
	path, err := exec.LookPath(cmd)
	if err != nil {
		result.Detail = fmt.Sprintf("binary %q not found", cmd)
		if req.Description != "" {
			result.Detail += "; " + strings.ToLower(req.Description[:1]) + req.Description[1:]
		}
		return result
	}
	result.Passed = true
	result.Detail = path
	return result
}

// CheckDevice verifies the drive node exists and is readable.
func CheckDevice(device string) Result {
	const name = "Drive"
	device = strings.TrimSpace(device)
	if device == "" {
		return Result{Name: name, Detail: "drive.device not configured"}
	}
	if _, err := os.Stat(device); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", device, err)}
	}
	if err := unix.Access(device, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v; join the cdrom group)", device, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (readable)", device)}
}

// CheckDisc reports whether the drive holds a disc.
func CheckDisc(device string, status cdrom.StatusFunc) Result {
	const name = "Disc"
	if status == nil || strings.TrimSpace(device) == "" {
		return Result{Name: name, Detail: "unknown"}
	}
	st, err := status(device)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("status unavailable (%v)", err)}
	}
	switch st {
	case cdrom.DriveStatusDiscOK:
		return Result{Name: name, Passed: true, Detail: "disc present"}
	case cdrom.DriveStatusTrayOpen:
		return Result{Name: name, Detail: "tray open"}
	case cdrom.DriveStatusNoDisc:
		return Result{Name: name, Detail: "no disc"}
	default:
		return Result{Name: name, Detail: st.String()}
	}
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

// CheckNtfy verifies the ntfy server behind topic answers. The topic itself
// is not published to.
func CheckNtfy(ctx context.Context, topic string) Result {
	const name = "ntfy"
	u, err := url.Parse(strings.TrimSpace(topic))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Result{Name: name, Optional: true, Detail: fmt.Sprintf("invalid topic url %q", topic)}
	}
	health := url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/v1/health"}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, health.String(), nil)
	if err != nil {
		return Result{Name: name, Optional: true, Detail: fmt.Sprintf("health check failed (%v)", err)}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Result{Name: name, Optional: true, Detail: fmt.Sprintf("unreachable (%v)", err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{Name: name, Optional: true, Detail: fmt.Sprintf("health check failed (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Optional: true, Detail: u.Host + " reachable"}
}
