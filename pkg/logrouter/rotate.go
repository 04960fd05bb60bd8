package logrouter

import (
	"compress/gzip"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	stampLayout = "2006-01-02_15-04-05.000000000"
	logSuffix   = ".log"
	gzipSuffix  = ".gz"
)

func rotatedName(prefix string, t time.Time) string {
	return prefix + "_" + t.Format(stampLayout) + logSuffix
}

// stampOf reports the timestamp embedded in a file name produced by
// rotatedName for exactly this prefix. "gest" does not match
// "gest_errors_<stamp>.log".
func stampOf(prefix, name string) (string, bool) {
	rest, ok := strings.CutPrefix(name, prefix+"_")
	if !ok {
		return "", false
	}
	rest = strings.TrimSuffix(rest, gzipSuffix)
	rest, ok = strings.CutSuffix(rest, logSuffix)
	if !ok {
		return "", false
	}
	if _, err := time.Parse(stampLayout, rest); err != nil {
		return "", false
	}
	return rest, true
}

type logFile struct {
	path  string
	stamp string
}

// rotatedFiles lists this prefix's files in dir, oldest first, skipping the
// active file.
func rotatedFiles(dir, prefix, active string) ([]logFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []logFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		stamp, ok := stampOf(prefix, e.Name())
		if !ok {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if p == active {
			continue
		}
		files = append(files, logFile{path: p, stamp: stamp})
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].stamp == files[j].stamp {
			return files[i].path < files[j].path
		}
		return files[i].stamp < files[j].stamp
	})
	return files, nil
}

// pruneRotated deletes the oldest rotated files until at most keep remain.
// keep == 0 disables pruning.
func pruneRotated(dir, prefix, active string, keep int) error {
	if keep <= 0 {
		return nil
	}
	files, err := rotatedFiles(dir, prefix, active)
	if err != nil {
		return err
	}
	var errs []error
	for len(files) > keep {
		if err := os.Remove(files[0].path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
		files = files[1:]
	}
	return errors.Join(errs...)
}

// compressFile replaces path with path.gz.
func compressFile(path string) (err error) {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(path+gzipSuffix, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			dst.Close()
			os.Remove(path + gzipSuffix)
		}
	}()

	zw := gzip.NewWriter(dst)
	zw.Name = filepath.Base(path)
	if _, err = io.Copy(zw, src); err != nil {
		return err
	}
	if err = zw.Close(); err != nil {
		return err
	}
	if err = dst.Close(); err != nil {
		return err
	}
	src.Close()
	return os.Remove(path)
}
