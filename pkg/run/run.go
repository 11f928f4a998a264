// Package run manages the timestamped output directory of a logging run.
package run

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ajitpratap0/dflog/pkg/errors"
)

const (
	// DefaultBaseDir is where run directories are created
	DefaultBaseDir = "./logs"
	// ManifestFile is the name of the run manifest
	ManifestFile = "run.json"

	timeLayout = "2006-01-02_15-04-05"

	// maxAttempts bounds the numbered names tried when a run name is taken.
	maxAttempts = 1000
)

// DefaultCopyPrefixes selects the files copied into a new run directory.
var DefaultCopyPrefixes = []string{"1_", "2_"}

// DirName returns the run directory name for now, e.g.
// "2024-03-01_14-05-09" or "2024-03-01_14-05-09-baseline".
func DirName(now time.Time, suffix string) string {
	name := now.Format(timeLayout)
	if suffix != "" {
		name += "-" + suffix
	}
	return name
}

// Dir is a run output directory.
type Dir struct {
	path string
	log  *zap.Logger
}

// Create creates a new directory <baseDir>/<DirName(now, suffix)> and its
// parents. The run directory itself is never shared: when the name is taken,
// for example by another run started in the same second, "-1", "-2", ... is
// appended until an unused name is found.
func Create(baseDir string, now time.Time, suffix string, log *zap.Logger) (*Dir, error) {
	if baseDir == "" {
		baseDir = DefaultBaseDir
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil { //nolint:gosec
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create base directory").
			WithDetail("path", baseDir)
	}

	name := DirName(now, suffix)
	path := filepath.Join(baseDir, name)
	for attempt := 1; ; attempt++ {
		err := os.Mkdir(path, 0o755) //nolint:gosec
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) || attempt >= maxAttempts {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create run directory").
				WithDetail("path", path)
		}
		path = filepath.Join(baseDir, name+"-"+strconv.Itoa(attempt))
	}
	d := Attach(path, log)
	d.log.Info("created run directory", zap.String("path", path))
	return d, nil
}

// Attach wraps an existing directory without touching the filesystem.
func Attach(path string, log *zap.Logger) *Dir {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dir{path: path, log: log}
}

// String returns the directory path.
func (d *Dir) String() string { return d.path }

// Path joins name onto the directory.
func (d *Dir) Path(name string) string { return filepath.Join(d.path, name) }

// CopyMatching copies the regular files in srcDir that match the glob pattern
// and whose base name starts with one of prefixes. An empty prefix list
// copies every match. It returns the destination paths in sorted order.
func (d *Dir) CopyMatching(srcDir, pattern string, prefixes []string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}
	matches, err := filepath.Glob(filepath.Join(srcDir, pattern))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid copy pattern").
			WithDetail("pattern", pattern)
	}
	sort.Strings(matches)

	var copied []string
	for _, src := range matches {
		name := filepath.Base(src)
		if !hasAnyPrefix(name, prefixes) {
			continue
		}
		info, err := os.Stat(src)
		if err != nil {
			return copied, errors.Wrap(err, errors.ErrorTypeFile, "failed to stat config file").
				WithDetail("path", src)
		}
		if !info.Mode().IsRegular() {
			continue
		}

		dst := d.Path(name)
		if err := copyFile(src, dst, info.Mode().Perm()); err != nil {
			return copied, err
		}
		d.log.Info("copied config file", zap.String("src", src), zap.String("dst", dst))
		copied = append(copied, dst)
	}
	return copied, nil
}

func hasAnyPrefix(name string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

func copyFile(src, dst string, perm os.FileMode) (err error) {
	in, err := os.Open(src) //nolint:gosec // source comes from the configured glob
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to open config file").
			WithDetail("path", src)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm) //nolint:gosec
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create config copy").
			WithDetail("path", dst)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, errors.ErrorTypeFile, "failed to close config copy")
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to copy config file").
			WithDetail("src", src).
			WithDetail("dst", dst)
	}
	return nil
}

// Manifest describes a run. It is written as run.json.
type Manifest struct {
	Name      string          `json:"name"`
	Columns   []string        `json:"columns"`
	Separator string          `json:"separator"`
	LogFile   string          `json:"log_file"`
	StartedAt time.Time       `json:"started_at"`
	Copied    []string        `json:"copied_files,omitempty"`
	Options   json.RawMessage `json:"options,omitempty"`
}

// WriteManifest writes m to run.json as indented JSON.
func (d *Dir) WriteManifest(m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeValidation, "failed to encode run manifest")
	}
	path := d.Path(ManifestFile)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil { //nolint:gosec
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write run manifest").
			WithDetail("path", path)
	}
	return nil
}

// ReadManifest reads run.json. A missing manifest is reported as a file
// error; callers that tolerate older runs check for os.ErrNotExist.
func (d *Dir) ReadManifest() (*Manifest, error) {
	path := d.Path(ManifestFile)
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read run manifest").
			WithDetail("path", path)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeParse, "failed to decode run manifest").
			WithDetail("path", path)
	}
	return &m, nil
}
