package deployer

import (
	"bytes"
	"context"
	"crypto"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/cpx-bridge/internal/domain/board"
	"github.com/oshokin/cpx-bridge/internal/domain/host"
	"github.com/oshokin/cpx-bridge/internal/logger"

	// Register SHA-512 for checksum verification.
	_ "crypto/sha512"
)

const (
	// CodeFilename is the file CircuitPython runs on boot.
	CodeFilename = "code.py"
	// LibDirname is where CircuitPython looks for libraries on the drive.
	LibDirname = "lib"

	// checksumFunction verifies every applied file.
	checksumFunction = crypto.SHA512
	// fileMode is applied to files written on the drive.
	fileMode fs.FileMode = 0o644
	dirMode  fs.FileMode = 0o755

	waveExt = ".wav"
)

var errHashUnavailable = errors.New("hash function unavailable")

// Detector finds the device drive.
type Detector interface {
	Detect(ctx context.Context) (string, error)
}

// Options describes one deployment.
type Options struct {
	// File is the user program, written to code.py.
	File string
	// LibDir is an optional directory copied into lib/ on the drive.
	LibDir string
	// Device is the active device; only CPX can be deployed to.
	Device string
}

// Result reports what was written.
type Result struct {
	// Drive is the mount point of the device.
	Drive string
	// Files lists the written paths on the drive.
	Files []string
}

// Deployer writes files to the device drive.
type Deployer struct {
	detector Detector
}

// New returns a deployer using detector to locate the drive.
func New(detector Detector) *Deployer {
	return &Deployer{
		detector: detector,
	}
}

// Deploy detects the drive and writes opts.File as code.py, then the library directory.
func (d *Deployer) Deploy(ctx context.Context, opts *Options) (*Result, error) {
	ctx = logger.WithName(ctx, "deployer")

	if opts == nil || strings.TrimSpace(opts.File) == "" {
		return nil, host.ErrNoFile
	}

	if opts.Device != "" && opts.Device != host.CPX {
		return nil, fmt.Errorf("deploy to %s: %w", opts.Device, host.ErrDeviceNotImplemented)
	}

	// The library is checked in full before anything touches the drive.
	libFiles, err := libraryFiles(opts.LibDir)
	if err != nil {
		return nil, err
	}

	drive, err := d.detector.Detect(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Drive: drive,
	}

	target := filepath.Join(drive, CodeFilename)
	if err = applyFile(opts.File, target); err != nil {
		return nil, fmt.Errorf("deploy %s: %w", opts.File, err)
	}

	result.Files = append(result.Files, target)
	logger.InfoKV(ctx, "Program deployed", "source", opts.File, "target", target)

	if opts.LibDir == "" {
		return result, nil
	}

	libTarget := filepath.Join(drive, LibDirname)

	for _, rel := range libFiles {
		src := filepath.Join(opts.LibDir, rel)
		dst := filepath.Join(libTarget, rel)

		if err = os.MkdirAll(filepath.Dir(dst), dirMode); err != nil {
			return nil, fmt.Errorf("deploy %s: %w", src, err)
		}

		if err = applyFile(src, dst); err != nil {
			return nil, fmt.Errorf("deploy %s: %w", src, err)
		}

		result.Files = append(result.Files, dst)
	}

	logger.InfoKV(ctx, "Libraries deployed", "source", opts.LibDir, "files", len(result.Files)-1)

	return result, nil
}

// libraryFiles lists the files under libDir relative to it. Sounds the board
// cannot play are rejected here, since they would only fail at runtime.
func libraryFiles(libDir string) ([]string, error) {
	if libDir == "" {
		return nil, nil
	}

	var files []string

	err := filepath.WalkDir(libDir, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if entry.IsDir() {
			return nil
		}

		if strings.EqualFold(filepath.Ext(path), waveExt) {
			if err := board.CheckWaveFile(path); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
		}

		rel, err := filepath.Rel(libDir, path)
		if err != nil {
			return err
		}

		files = append(files, rel)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// applyFile replaces dst with the contents of src, verified by checksum.
func applyFile(src, dst string) error {
	data, err := os.ReadFile(filepath.Clean(src))
	if err != nil {
		return err
	}

	sum, err := checksum(data)
	if err != nil {
		return err
	}

	// The updater renames the existing target aside, so it has to exist.
	if _, err = os.Stat(dst); errors.Is(err, os.ErrNotExist) {
		f, err := os.OpenFile(filepath.Clean(dst), os.O_CREATE|os.O_WRONLY, fileMode)
		if err != nil {
			return err
		}

		if err = f.Close(); err != nil {
			return err
		}
	}

	options := goupdate.Options{
		TargetPath: dst,
		TargetMode: fileMode,
		Checksum:   sum,
		Hash:       checksumFunction,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return err
	}

	// Apply leaves the previous version next to the target on some platforms.
	_ = os.Remove(filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+".old"))

	return nil
}

func checksum(data []byte) ([]byte, error) {
	if !checksumFunction.Available() {
		return nil, errHashUnavailable
	}

	hasher := checksumFunction.New()
	_, _ = hasher.Write(data)

	return hasher.Sum(nil), nil
}
