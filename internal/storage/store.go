// Package storage places restoration artifacts on disk.
//
// Layout:
//
//	{originals_root}/{session_token}/{uuid}_{stem}{ext}
//	{processed_root}/{session_token}/{uuid}_{stem}_processed{ext}
//
// Stored paths are relative to their kind root and always start with the
// owning session token, so one session's files live under one directory.
// The store creates directories and files; deletion belongs to its callers.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/photorestore/restore-server-go/internal/model"
)

const (
	dirMode  os.FileMode = 0o750
	fileMode os.FileMode = 0o640

	maxStemLength = 100
	fallbackStem  = "image"
)

var (
	segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9._-]*$`)
	extPattern     = regexp.MustCompile(`^\.[A-Za-z0-9]{1,10}$`)
	unsafeStemRune = regexp.MustCompile(`[^A-Za-z0-9._-]`)
)

type Store struct {
	roots map[model.ArtifactKind]string
}

// NewStore creates both artifact roots if they do not exist yet.
func NewStore(originalsRoot, processedRoot string) (*Store, error) {
	s := &Store{roots: make(map[model.ArtifactKind]string, 2)}

	for kind, root := range map[model.ArtifactKind]string{
		model.ArtifactOriginal:  originalsRoot,
		model.ArtifactProcessed: processedRoot,
	} {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolve %s root: %w", kind, err)
		}
		if err := os.MkdirAll(abs, dirMode); err != nil {
			return nil, fmt.Errorf("create %s root: %w", kind, err)
		}
		s.roots[kind] = abs
	}

	return s, nil
}

// ErrUnknownKind is returned for an ArtifactKind other than originals and
// processed.
var ErrUnknownKind = errors.New("unknown artifact kind")

func (s *Store) rootPath(kind model.ArtifactKind) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w %q", ErrUnknownKind, kind)
	}
	return s.roots[kind], nil
}

// Root returns the base directory for kind, recreating it if it was removed.
func (s *Store) Root(kind model.ArtifactKind) (string, error) {
	root, err := s.rootPath(kind)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(root, dirMode); err != nil {
		return "", fmt.Errorf("create %s root: %w", kind, err)
	}
	return root, nil
}

// SessionDir returns Root(kind)/token, creating it if necessary.
func (s *Store) SessionDir(token string, kind model.ArtifactKind) (string, error) {
	if !validSegment(token) {
		return "", fmt.Errorf("invalid session token %q", token)
	}
	root, err := s.Root(kind)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(root, token)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return "", fmt.Errorf("create session dir: %w", err)
	}
	return dir, nil
}

// SessionDirPath is SessionDir without the side effect, for callers that
// only need to look at or remove the directory.
func (s *Store) SessionDirPath(token string, kind model.ArtifactKind) (string, error) {
	if !validSegment(token) {
		return "", fmt.Errorf("invalid session token %q", token)
	}
	root, err := s.rootPath(kind)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, token), nil
}

// Save writes data atomically as token/name under kind and returns the
// relative path to store in a history record.
func (s *Store) Save(ctx context.Context, token string, kind model.ArtifactKind, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !validSegment(name) {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}

	dir, err := s.SessionDir(token, kind)
	if err != nil {
		return "", err
	}

	if err := writeFileAtomic(filepath.Join(dir, name), data, fileMode); err != nil {
		return "", err
	}

	return path.Join(token, name), nil
}

// Resolve maps a stored relative path to an absolute path under kind's root.
func (s *Store) Resolve(kind model.ArtifactKind, relPath string) (string, error) {
	root, err := s.rootPath(kind)
	if err != nil {
		return "", err
	}
	if _, err := splitRelPath(relPath); err != nil {
		return "", err
	}

	abs := filepath.Join(root, filepath.FromSlash(relPath))
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("artifact path %q escapes %s root", relPath, kind)
	}
	return abs, nil
}

// SessionOf returns the session token segment of a stored relative path.
func SessionOf(relPath string) (string, error) {
	parts, err := splitRelPath(relPath)
	if err != nil {
		return "", err
	}
	return parts[0], nil
}

// BelongsTo reports whether relPath is namespaced under token.
func BelongsTo(relPath, token string) bool {
	owner, err := SessionOf(relPath)
	return err == nil && owner == token
}

// OriginalName builds the stored name for an upload: {uuid}_{stem}{ext}.
func OriginalName(filename string) string {
	stem, ext := splitFilename(filename)
	return fmt.Sprintf("%s_%s%s", uuid.NewString(), stem, ext)
}

// ProcessedName builds the stored name for a result: {uuid}_{stem}_processed{ext}.
func ProcessedName(filename string) string {
	stem, ext := splitFilename(filename)
	return fmt.Sprintf("%s_%s_processed%s", uuid.NewString(), stem, ext)
}

func splitFilename(filename string) (stem, ext string) {
	base := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	if base == "." || base == "/" {
		base = ""
	}

	ext = path.Ext(base)
	stem = strings.TrimSuffix(base, ext)
	if !extPattern.MatchString(ext) {
		ext = ""
	}

	stem = unsafeStemRune.ReplaceAllString(stem, "_")
	stem = strings.Trim(stem, ".")
	if len(stem) > maxStemLength {
		stem = stem[:maxStemLength]
	}
	if stem == "" {
		stem = fallbackStem
	}
	return stem, ext
}

func splitRelPath(relPath string) ([]string, error) {
	if relPath == "" || strings.HasPrefix(relPath, "/") || strings.Contains(relPath, `\`) {
		return nil, fmt.Errorf("invalid artifact path %q", relPath)
	}
	parts := strings.Split(relPath, "/")
	if len(parts) < 2 {
		return nil, fmt.Errorf("artifact path %q has no session segment", relPath)
	}
	for _, p := range parts {
		if !validSegment(p) {
			return nil, fmt.Errorf("invalid artifact path %q", relPath)
		}
	}
	return parts, nil
}

func validSegment(s string) bool {
	return s != "" && s != "." && s != ".." && segmentPattern.MatchString(s)
}
