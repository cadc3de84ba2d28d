package recipe

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ManifestFileName is the manifest file expected inside a package.
const ManifestFileName = "recipe.json"

// Package is a decoded, extracted recipe bundle: a directory tree plus the
// parsed manifest found at its top level.
type Package struct {
	// Root is the directory holding the extracted package contents.
	Root string

	// Manifest is the parsed recipe document.
	Manifest *Manifest

	// Fingerprint is the content identity of the manifest, used to key
	// persisted progress.
	Fingerprint string
}

// dataURIPattern matches an optional data URI prefix on a base64 blob.
var dataURIPattern = regexp.MustCompile(`^data:application/[a-zA-Z0-9.+-]+;base64,`)

// DecodeBlob decodes a base64-encoded package blob, tolerating an optional
// "data:application/<subtype>;base64," prefix. The decoded bytes must be
// non-empty.
func DecodeBlob(blob string) ([]byte, error) {
	blob = strings.TrimSpace(blob)
	blob = dataURIPattern.ReplaceAllString(blob, "")

	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("decoding package blob: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("decoded package blob is empty")
	}
	return raw, nil
}

// Fingerprint returns the stable content identity of manifest bytes.
func Fingerprint(manifest []byte) string {
	sum := sha256.Sum256(manifest)
	return hex.EncodeToString(sum[:])
}

// Open loads a package from an extracted directory tree. The manifest is
// located either at root or inside the single top-level directory the
// archive unpacked to.
func Open(root string) (*Package, error) {
	manifestPath, pkgRoot, err := locateManifest(root)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	m, err := ParseManifest(raw)
	if err != nil {
		return nil, err
	}

	return &Package{
		Root:        pkgRoot,
		Manifest:    m,
		Fingerprint: Fingerprint(raw),
	}, nil
}

// locateManifest finds recipe.json directly under root or under exactly one
// top-level directory.
func locateManifest(root string) (manifestPath, pkgRoot string, err error) {
	direct := filepath.Join(root, ManifestFileName)
	if _, statErr := os.Stat(direct); statErr == nil {
		return direct, root, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return "", "", fmt.Errorf("reading package root: %w", err)
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}

	for _, d := range dirs {
		candidate := filepath.Join(root, d, ManifestFileName)
		if _, statErr := os.Stat(candidate); statErr == nil {
			return candidate, filepath.Join(root, d), nil
		}
	}

	return "", "", fmt.Errorf("no %s found under %s", ManifestFileName, root)
}

// AssetDir resolves an asset-relative path against the package root.
func (p *Package) AssetDir(rel string) string {
	return filepath.Join(p.Root, rel)
}
