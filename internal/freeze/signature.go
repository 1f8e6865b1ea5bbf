// Package freeze implements the render cache for unchanged chapters.
//
// A chapter's fingerprint is computed from its frontmatter and body; the
// build signature combines every chapter fingerprint with the manifest
// configuration hash. Two builds with identical signatures produce identical
// sites, so cached renders can be reused safely.
package freeze

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/inful/mdfp"
)

// ChapterFingerprint identifies one chapter's content state.
type ChapterFingerprint struct {
	Path        string `json:"path"`
	Fingerprint string `json:"fingerprint"`
}

// BuildSignature is the complete signature of a build's inputs.
type BuildSignature struct {
	Chapters   []ChapterFingerprint `json:"chapters"`
	ConfigHash string               `json:"config_hash"`
	BuildHash  string               `json:"build_hash"`
}

// Fingerprint computes the canonical content fingerprint for a chapter from
// its raw frontmatter and body parts.
func Fingerprint(frontmatter, body []byte) string {
	return mdfp.CalculateFingerprintFromParts(string(frontmatter), string(body))
}

// FingerprintBytes fingerprints an opaque document (notebooks) that has no
// frontmatter/body split.
func FingerprintBytes(content []byte) string {
	return mdfp.CalculateFingerprintFromParts("", string(content))
}

// ConfigHash produces a stable hash of any JSON-serializable configuration
// value that should invalidate cached renders when it changes.
func ConfigHash(cfg any) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// ComputeBuildSignature combines chapter fingerprints and the config hash
// into a single build hash. Chapter entries are sorted by path for
// determinism; navigation order is not part of content identity.
func ComputeBuildSignature(chapters []ChapterFingerprint, configHash string) (*BuildSignature, error) {
	sig := &BuildSignature{
		Chapters:   append([]ChapterFingerprint(nil), chapters...),
		ConfigHash: configHash,
	}
	sort.Slice(sig.Chapters, func(i, j int) bool {
		return sig.Chapters[i].Path < sig.Chapters[j].Path
	})

	normalized := struct {
		Chapters   []ChapterFingerprint `json:"chapters"`
		ConfigHash string               `json:"config_hash"`
	}{sig.Chapters, sig.ConfigHash}

	data, err := json.Marshal(normalized)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	sig.BuildHash = hex.EncodeToString(sum[:])
	return sig, nil
}

// Equals reports whether two signatures describe the same build inputs.
func (s *BuildSignature) Equals(other *BuildSignature) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.BuildHash == other.BuildHash
}
