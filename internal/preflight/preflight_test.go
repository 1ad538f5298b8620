package preflight

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cdrip/internal/cdrom"
	"cdrip/internal/testsupport"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		path string
		pass bool
	}{
		{"directory", dir, true},
		{"missing", filepath.Join(dir, "nope"), false},
		{"file", file, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckDirectoryAccess("test", tt.path)
			if result.Passed != tt.pass || result.Detail == "" {
				t.Fatalf("unexpected result: %+v", result)
			}
		})
	}
}

func TestCheckBinary(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	if got := CheckBinary(Requirement{Name: "Present", Command: present}); !got.Passed || got.Detail != present {
		t.Fatalf("present binary: %+v", got)
	}
	missing := CheckBinary(Requirement{Name: "Missing", Command: "clearly-not-present-binary", Description: "Opens the tray", Optional: true})
	if missing.Passed || !missing.Optional || !strings.Contains(missing.Detail, "opens the tray") {
		t.Fatalf("missing binary: %+v", missing)
	}
	if got := CheckBinary(Requirement{Name: "Empty"}); got.Passed || got.Detail != "command not configured" {
		t.Fatalf("empty command: %+v", got)
	}
}

func TestCheckDevice(t *testing.T) {
	if got := CheckDevice(""); got.Passed {
		t.Fatalf("empty device passed: %+v", got)
	}
	if got := CheckDevice(filepath.Join(t.TempDir(), "sr9")); got.Passed {
		t.Fatalf("missing device passed: %+v", got)
	}
	node := filepath.Join(t.TempDir(), "sr0")
	if err := os.WriteFile(node, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if got := CheckDevice(node); !got.Passed {
		t.Fatalf("readable device failed: %+v", got)
	}
}

func TestCheckDisc(t *testing.T) {
	tests := []struct {
		name   string
		status cdrom.DriveStatus
		err    error
		pass   bool
		detail string
	}{
		{"disc", cdrom.DriveStatusDiscOK, nil, true, "disc present"},
		{"tray open", cdrom.DriveStatusTrayOpen, nil, false, "tray open"},
		{"empty", cdrom.DriveStatusNoDisc, nil, false, "no disc"},
		{"not ready", cdrom.DriveStatusNotReady, nil, false, "not_ready"},
		{"error", cdrom.DriveStatusNoInfo, errors.New("EACCES"), false, "status unavailable (EACCES)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := func(string) (cdrom.DriveStatus, error) { return tt.status, tt.err }
			got := CheckDisc("/dev/sr0", check)
			if got.Passed != tt.pass || got.Detail != tt.detail {
				t.Fatalf("CheckDisc = %+v", got)
			}
		})
	}
	if got := CheckDisc("/dev/sr0", nil); got.Passed {
		t.Fatalf("nil status func passed: %+v", got)
	}
}

func TestCheckNtfy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if got := CheckNtfy(context.Background(), srv.URL+"/cdrip"); !got.Passed {
		t.Fatalf("healthy server failed: %+v", got)
	}
	if got := CheckNtfy(context.Background(), "not a url"); got.Passed || !got.Optional {
		t.Fatalf("invalid url passed: %+v", got)
	}
}

func TestRunAll(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDevice(filepath.Join(t.TempDir(), "missing-sr0")))
	results := RunAll(context.Background(), cfg, func(string) (cdrom.DriveStatus, error) {
		return cdrom.DriveStatusNoDisc, nil
	})

	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Name)
	}
	want := "Drive,Disc,Output directory,State directory,Log directory,eject"
	if got := strings.Join(names, ","); got != want {
		t.Fatalf("checks = %s, want %s", got, want)
	}

	failed := Failed(results)
	if len(failed) != 2 || failed[0].Name != "Drive" || failed[1].Name != "Disc" {
		t.Fatalf("failed = %+v", failed)
	}
	if RunAll(context.Background(), nil, nil) != nil {
		t.Fatal("nil config should yield no results")
	}
}
