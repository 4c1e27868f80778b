package deploy

import (
	"archive/zip"
	"strings"

	"github.com/arencloud/sitehost/internal/config"
)

// Member is one entry of an uploaded archive, described by the zip directory
// metadata only. Content is never decompressed during validation.
type Member struct {
	Name string
	Size int64 // uncompressed size as declared by the archive
	Dir  bool
}

func membersFromZip(zr *zip.Reader) []Member {
	out := make([]Member, 0, len(zr.File))
	for _, f := range zr.File {
		out = append(out, Member{
			Name: f.Name,
			Size: int64(f.UncompressedSize64),
			Dir:  f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/"),
		})
	}
	return out
}

// validateArchive checks the archive against the configured limits before any
// extraction or upload. It works on declared sizes, so the check is
// O(members) and a compressed bomb cannot exhaust memory here; the upload
// step re-enforces the per-file cap on the actual bytes.
func validateArchive(members []Member, limits config.Limits) error {
	var total int64
	count := 0
	for _, m := range members {
		if m.Dir {
			continue
		}
		count++
		total += m.Size
		if m.Size > limits.MaxFileSize {
			return validationErrorf("file %s exceeds %dMB limit", m.Name, limits.MaxFileSize>>20)
		}
	}
	if count > limits.MaxFilesInZip {
		return validationErrorf("ZIP contains %d files (max %d)", count, limits.MaxFilesInZip)
	}
	if total > limits.MaxUncompressed {
		return validationErrorf("uncompressed size exceeds %dMB limit", limits.MaxUncompressed>>20)
	}
	return nil
}
