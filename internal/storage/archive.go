package storage

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/spaolacci/murmur3"
)

// Archived object suffixes.
const (
	SuffixCSV    = ".csv"
	SuffixSnappy = ".sz"
)

// Archive stores raw upload files under date-partitioned keys.
type Archive struct {
	store    ObjectStorage
	prefix   string
	compress bool
	now      func() time.Time
}

// NewArchive creates an archive writing under prefix. With compress set,
// bodies are written in the snappy framing format.
func NewArchive(store ObjectStorage, prefix string, compress bool) *Archive {
	return &Archive{
		store:    store,
		prefix:   strings.Trim(prefix, "/"),
		compress: compress,
		now:      time.Now,
	}
}

// Entry describes one archived file.
type Entry struct {
	Path        string `json:"path"`
	Fingerprint string `json:"fingerprint"`
	Size        int64  `json:"size"`
}

// Fingerprint returns the hex murmur3 128-bit hash of r.
func Fingerprint(r io.Reader) (string, error) {
	h := murmur3.New128()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FingerprintFile hashes the file at p.
func FingerprintFile(p string) (string, int64, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	fp, err := Fingerprint(f)
	if err != nil {
		return "", 0, err
	}
	info, err := f.Stat()
	if err != nil {
		return "", 0, err
	}
	return fp, info.Size(), nil
}

// Key returns the object key for an upload.
func (a *Archive) Key(kind, uploadID, fingerprint string) string {
	name := uploadID
	if len(fingerprint) >= 16 {
		name += "-" + fingerprint[:16]
	}
	name += SuffixCSV
	if a.compress {
		name += SuffixSnappy
	}
	return path.Join(a.prefix, kind, a.now().UTC().Format("2006/01/02"), name)
}

// Put archives the local file.
func (a *Archive) Put(ctx context.Context, kind, uploadID, localPath string) (*Entry, error) {
	fp, size, err := FingerprintFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to fingerprint %s: %w", filepath.Base(localPath), err)
	}
	entry := &Entry{Path: a.Key(kind, uploadID, fp), Fingerprint: fp, Size: size}

	src := localPath
	if a.compress {
		tmp, err := compressFile(localPath)
		if err != nil {
			return nil, fmt.Errorf("storage: failed to compress upload: %w", err)
		}
		defer os.Remove(tmp)
		src = tmp
	}

	if err := a.store.Upload(ctx, src, entry.Path); err != nil {
		return nil, fmt.Errorf("storage: failed to archive upload: %w", err)
	}
	return entry, nil
}

// Fetch restores an archived file to localPath, decompressing snappy bodies.
func (a *Archive) Fetch(ctx context.Context, objectPath, localPath string) error {
	if !strings.HasSuffix(objectPath, SuffixSnappy) {
		return a.store.Download(ctx, objectPath, localPath)
	}

	tmp, err := os.CreateTemp(filepath.Dir(localPath), ".fetch-*"+SuffixSnappy)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := a.store.Download(ctx, objectPath, tmpPath); err != nil {
		return err
	}
	return decompressFile(tmpPath, localPath)
}

// List returns the archived objects of one kind.
func (a *Archive) List(ctx context.Context, kind string) ([]string, error) {
	return a.store.ListObjects(ctx, path.Join(a.prefix, kind))
}

func compressFile(src string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.CreateTemp("", "qbench-archive-*"+SuffixSnappy)
	if err != nil {
		return "", err
	}
	w := snappy.NewBufferedWriter(out)
	if _, err := io.Copy(w, in); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", err
	}
	if err := w.Close(); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", err
	}
	return out.Name(), nil
}

func decompressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	if _, err := io.Copy(out, snappy.NewReader(in)); err != nil {
		out.Close()
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	return out.Close()
}
