package syncer

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// packArchive writes a tar.gz of srcDir to destPath and returns the
// archive's sha256 and size. Entries are stored relative to srcDir so
// the backend can unpack them under its own event root.
func packArchive(srcDir, destPath string) (sha string, size int64, err error) {
	out, err := os.Create(destPath)
	if err != nil {
		return "", 0, fmt.Errorf("creating archive: %w", err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing archive: %w", cerr)
		}
	}()

	h := sha256.New()
	gz := gzip.NewWriter(io.MultiWriter(out, h))
	tw := tar.NewWriter(gz)

	walkErr := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if walkErr != nil {
		return "", 0, fmt.Errorf("packing %s: %w", srcDir, walkErr)
	}

	if err := tw.Close(); err != nil {
		return "", 0, fmt.Errorf("finalising tar: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", 0, fmt.Errorf("finalising gzip: %w", err)
	}

	st, err := out.Stat()
	if err != nil {
		return "", 0, fmt.Errorf("stat archive: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), st.Size(), nil
}
