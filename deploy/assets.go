package deploy

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/jameskwon07/deploymaster/domain"
	"github.com/jameskwon07/deploymaster/github"
)

// ErrNoAssets is returned when excluding source archives leaves nothing to
// install.
var ErrNoAssets = errors.New("no installable assets")

// sourceKeywords mark assets that are source archives, not installables.
var sourceKeywords = []string{"sourcecode", "source", "src"}

// platformExtensions lists preferred asset extensions per platform, in
// priority order.
var platformExtensions = map[domain.Platform][]string{
	domain.PlatformWindows: {".exe", ".msi", ".zip"},
	domain.PlatformMacOS:   {".dmg", ".pkg", ".app.zip", ".zip"},
	domain.PlatformLinux:   {".deb", ".rpm", ".tar.gz", ".zip"},
}

// excludeSourceAssets drops assets whose name contains a source-archive
// keyword, case-insensitively.
func excludeSourceAssets(assets []github.Asset) []github.Asset {
	var out []github.Asset
	for _, a := range assets {
		if !isSourceAsset(a.Name) {
			out = append(out, a)
		}
	}
	return out
}

func isSourceAsset(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range sourceKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// selectAsset picks the asset to install. Preferred extensions are checked
// in priority order, and the first asset matching the highest-priority
// extension wins. When nothing matches, the largest asset wins, with ties
// broken by first-seen order.
func selectAsset(assets []github.Asset, platform domain.Platform) (github.Asset, error) {
	if len(assets) == 0 {
		return github.Asset{}, ErrNoAssets
	}

	for _, ext := range platformExtensions[platform] {
		for _, a := range assets {
			if strings.HasSuffix(strings.ToLower(a.Name), ext) {
				return a, nil
			}
		}
	}

	best := assets[0]
	for _, a := range assets[1:] {
		if a.Size > best.Size {
			best = a
		}
	}
	return best, nil
}

// contentTypeExtensions maps declared asset content types to file
// extensions, for assets whose name carries none.
var contentTypeExtensions = map[string]string{
	"application/zip":                              ".zip",
	"application/x-zip-compressed":                 ".zip",
	"application/gzip":                             ".gz",
	"application/x-msdownload":                     ".exe",
	"application/vnd.microsoft.portable-executable": ".exe",
	"application/x-msi":                            ".msi",
	"application/x-apple-diskimage":                ".dmg",
	"application/x-debian-package":                 ".deb",
	"application/x-rpm":                            ".rpm",
}

// assetExtension returns the extension for the staged file name, taken from
// the asset name, or inferred from the declared content type if the name
// has none.
func assetExtension(name, contentType string) string {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".tar.gz") {
		return ".tar.gz"
	}
	if strings.HasSuffix(lower, ".app.zip") {
		return ".app.zip"
	}
	if ext := filepath.Ext(name); ext != "" {
		return ext
	}
	return contentTypeExtensions[contentType]
}
