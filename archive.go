package main

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/mholt/archives"
)

// ArchiveDirectory zips the regular files at the top level of srcDir into
// zipPath, replacing any earlier archive. It returns the archived names.
func ArchiveDirectory(ctx context.Context, srcDir, zipPath string) ([]string, error) {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", srcDir, err)
	}

	absZip, _ := filepath.Abs(zipPath)

	// disk path -> name in archive
	filenames := map[string]string{}
	var names []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(srcDir, entry.Name())
		if abs, _ := filepath.Abs(path); abs == absZip {
			continue
		}
		filenames[path] = entry.Name()
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	files, err := archives.FilesFromDisk(ctx, &archives.FromDiskOptions{}, filenames)
	if err != nil {
		return nil, fmt.Errorf("failed to collect receipts: %w", err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].NameInArchive < files[j].NameInArchive })

	if err := os.MkdirAll(filepath.Dir(zipPath), 0755); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(zipPath), ".archive-*.zip")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())

	format := archives.Zip{Compression: zip.Deflate}
	if err := format.Archive(ctx, tmp, files); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	if err := os.Rename(tmp.Name(), zipPath); err != nil {
		return nil, fmt.Errorf("failed to replace %s: %w", zipPath, err)
	}
	return names, nil
}
