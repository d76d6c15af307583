package device

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oshokin/cpx-bridge/internal/domain/host"
	"github.com/oshokin/cpx-bridge/internal/logger"
)

const (
	macVolumesDir   = "/Volumes"
	defaultTimeout  = 5 * time.Second
	mountPointStart = " on "
	mountPointEnd   = " type "
	volumeLabelMark = " is "
)

// Detector finds the mount point of a drive by its volume label.
type Detector struct {
	// platform is an OS tag from the host package.
	platform string
	// driveName is the volume label to look for.
	driveName string
	// runner executes mount and vol.
	runner CommandRunner
	// stat checks candidate paths.
	stat func(string) (os.FileInfo, error)
	// volumesDir is where macOS mounts removable drives.
	volumesDir string
	// timeout bounds each host command.
	timeout time.Duration
}

// Option configures a Detector.
type Option func(*Detector)

// WithPlatform overrides the detected OS tag.
func WithPlatform(platform string) Option {
	return func(d *Detector) {
		d.platform = platform
	}
}

// WithRunner replaces the command runner.
func WithRunner(runner CommandRunner) Option {
	return func(d *Detector) {
		if runner != nil {
			d.runner = runner
		}
	}
}

// WithStat replaces the filesystem probe.
func WithStat(stat func(string) (os.FileInfo, error)) Option {
	return func(d *Detector) {
		if stat != nil {
			d.stat = stat
		}
	}
}

// WithVolumesDir overrides the macOS volumes directory.
func WithVolumesDir(dir string) Option {
	return func(d *Detector) {
		d.volumesDir = dir
	}
}

// WithTimeout bounds every host command.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Detector) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// NewDetector returns a detector for the CIRCUITPY drive on the current host.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		platform:   host.CurrentPlatform(),
		driveName:  host.CPXDriveName,
		runner:     ExecRunner{},
		stat:       os.Stat,
		volumesDir: macVolumesDir,
		timeout:    defaultTimeout,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Platform returns the OS tag the detector searches on.
func (d *Detector) Platform() string {
	return d.platform
}

// Detect returns the mount point of the drive. It fails with a
// *host.NotDetectedError when the drive is absent and with a
// *host.UnsupportedOSError on platforms without a detection method.
func (d *Detector) Detect(ctx context.Context) (string, error) {
	var (
		path string
		err  error
	)

	switch d.platform {
	case host.MacOS:
		path = d.detectMac()
	case host.LinuxOS:
		path, err = d.detectLinux(ctx)
	case host.WindowsOS:
		path = d.detectWindows(ctx)
	default:
		return "", &host.UnsupportedOSError{OS: d.platform}
	}

	if err != nil {
		return "", err
	}

	if path == "" {
		logger.WarnKV(ctx, host.NoCPXDetectedErrorTitle, "os", d.platform, "drive", d.driveName)

		return "", &host.NotDetectedError{OS: d.platform}
	}

	logger.InfoKV(ctx, "Device drive detected", "path", path, "os", d.platform)

	return path, nil
}

func (d *Detector) detectMac() string {
	candidate := filepath.Join(d.volumesDir, d.driveName)

	info, err := d.stat(candidate)
	if err != nil || !info.IsDir() {
		return ""
	}

	return candidate
}

// detectLinux scans `mount` output, whose lines read
// "<device> on <mount point> type <fs> (<options>)".
func (d *Detector) detectLinux(ctx context.Context) (string, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	out, err := d.runner.Output(cmdCtx, host.MountCommand)
	if err != nil {
		return "", fmt.Errorf("run %s: %w", host.MountCommand, err)
	}

	return findMountPoint(out, d.driveName), nil
}

func findMountPoint(out []byte, driveName string) string {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()

		start := strings.Index(line, mountPointStart)
		if start < 0 {
			continue
		}

		rest := line[start+len(mountPointStart):]

		end := strings.LastIndex(rest, mountPointEnd)
		if end < 0 {
			continue
		}

		mountPoint := rest[:end]
		if filepath.Base(mountPoint) == driveName {
			return mountPoint
		}
	}

	return ""
}

// detectWindows probes drive letters and reads their labels with `vol`.
func (d *Detector) detectWindows(ctx context.Context) string {
	for letter := 'A'; letter <= 'Z'; letter++ {
		drive := string(letter) + ":"

		if _, err := d.stat(drive + `\`); err != nil {
			continue
		}

		cmdCtx, cancel := context.WithTimeout(ctx, d.timeout)
		out, err := d.runner.Output(cmdCtx, "cmd", "/C", "vol", drive)

		cancel()

		if err != nil {
			logger.DebugKV(ctx, "Unable to read volume label", "drive", drive, "error", err)
			continue
		}

		if volumeLabel(out) == d.driveName {
			return drive + `\`
		}
	}

	return ""
}

// volumeLabel extracts the label from " Volume in drive E is CIRCUITPY".
func volumeLabel(out []byte) string {
	firstLine, _, _ := strings.Cut(string(out), "\n")

	idx := strings.LastIndex(firstLine, volumeLabelMark)
	if idx < 0 {
		return ""
	}

	return strings.TrimSpace(firstLine[idx+len(volumeLabelMark):])
}
