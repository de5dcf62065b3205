// Package archive compresses produced log files with zstd.
package archive

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

const Ext = ".zst"

// CompressFile writes path+".zst" next to path and keeps the original.
func CompressFile(path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer in.Close()

	dst := path + Ext
	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		out.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("failed to create zstd writer: %w", err)
	}
	if _, err = io.Copy(enc, in); err != nil {
		enc.Close()
		out.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("failed to compress %s: %w", path, err)
	}
	if err = enc.Close(); err != nil {
		out.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("failed to flush %s: %w", tmp, err)
	}
	if err = out.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	if err = os.Rename(tmp, dst); err != nil {
		return "", fmt.Errorf("failed to move %s to %s: %w", tmp, dst, err)
	}
	return dst, nil
}

// DecompressFile writes the decoded content of src to dst.
func DecompressFile(src string, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	dec, err := zstd.NewReader(in)
	if err != nil {
		return fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer dec.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err = io.Copy(out, dec); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return out.Close()
}
