package cards

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var supportedExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// magic byte sequences for JPEG, PNG, and WebP (RIFF....WEBP), used when
// sniffing extensionless files is enabled.
var magicJPEG = []byte{0xFF, 0xD8, 0xFF}
var magicPNG = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}

func looksLikeImage(head []byte) bool {
	if bytes.HasPrefix(head, magicJPEG) || bytes.HasPrefix(head, magicPNG) {
		return true
	}
	if len(head) >= 12 && bytes.HasPrefix(head, []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WEBP")) {
		return true
	}
	mt := mimetype.Detect(head)
	switch mt.String() {
	case "image/jpeg", "image/png", "image/webp":
		return true
	}
	return false
}

// LoadOptions configures the directory walk (component A).
type LoadOptions struct {
	BuiltinDir               string
	ExtraDirs                []string
	DisableBuiltin           bool
	SniffExtensionlessImages bool
}

// Load walks every configured directory recursively and returns a
// deduplicated, path-sorted sequence of accepted source images. It follows
// symlinks but tracks visited directories to avoid infinite cycles. An
// empty result is a caller error to treat as fatal — the room engine
// cannot run with zero cards.
func Load(opts LoadOptions) ([]SourceRef, error) {
	var dirs []string
	if !opts.DisableBuiltin && opts.BuiltinDir != "" {
		dirs = append(dirs, opts.BuiltinDir)
	}
	dirs = append(dirs, opts.ExtraDirs...)

	seen := map[string]bool{}
	visitedDirs := map[string]bool{}
	var refs []SourceRef

	for _, root := range dirs {
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			// A missing or unreadable extra directory is skipped silently,
			// not fatal: the loader tolerates partial configuration as long
			// as some source produces cards.
			continue
		}
		if err := walkDir(root, visitedDirs, seen, opts.SniffExtensionlessImages, &refs); err != nil {
			return nil, err
		}
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Path < refs[j].Path })

	if len(refs) == 0 {
		return nil, fmt.Errorf("no source images found in any configured directory")
	}
	return refs, nil
}

func walkDir(dir string, visitedDirs, seen map[string]bool, sniff bool, out *[]SourceRef) error {
	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		real = dir
	}
	if visitedDirs[real] {
		return nil
	}
	visitedDirs[real] = true

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			target, err := filepath.EvalSymlinks(full)
			if err != nil {
				continue
			}
			targetInfo, err := os.Stat(target)
			if err != nil {
				continue
			}
			if targetInfo.IsDir() {
				if err := walkDir(full, visitedDirs, seen, sniff, out); err != nil {
					return err
				}
				continue
			}
			full = target
			info = targetInfo
		}
		if info.IsDir() {
			if err := walkDir(full, visitedDirs, seen, sniff, out); err != nil {
				return err
			}
			continue
		}
		if acceptFile(full, sniff) {
			key, err := filepath.Abs(full)
			if err != nil {
				key = full
			}
			if !seen[key] {
				seen[key] = true
				*out = append(*out, SourceRef{Path: full})
			}
		}
	}
	return nil
}

func acceptFile(path string, sniff bool) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if supportedExt[ext] {
		return true
	}
	if !sniff {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	head := make([]byte, 16)
	n, err := io.ReadFull(f, head)
	if err != nil && n == 0 {
		return false
	}
	return looksLikeImage(head[:n])
}
