package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
)

// Template names are bare file names; anything that could address a path is rejected
var templateNamePattern = regexp.MustCompile(`^[A-Za-z0-9_\-]+\.html$`)

// ValidTemplateName reports whether name is a lookup key a provider will accept
func ValidTemplateName(name string) bool {
	return templateNamePattern.MatchString(name)
}

// TemplateResult is the outcome of a template lookup: either Found with content or NotFound
type TemplateResult struct {
	content string
	found   bool
}

func Found(content string) TemplateResult {
	return TemplateResult{content: content, found: true}
}

func NotFound() TemplateResult {
	return TemplateResult{}
}

// Content returns the template body and whether the lookup found one
func (r TemplateResult) Content() (string, bool) {
	return r.content, r.found
}

// TemplateProvider resolves signature templates by name. A non-nil error means the
// backend failed; a missing or invalid name is NotFound with a nil error.
type TemplateProvider interface {
	Resolve(ctx context.Context, name string) (TemplateResult, error)
}

// FileTemplateProvider serves templates from a local directory
type FileTemplateProvider struct {
	dir string
}

func NewFileTemplateProvider(dir string) *FileTemplateProvider {
	return &FileTemplateProvider{dir: dir}
}

func (p *FileTemplateProvider) Resolve(_ context.Context, name string) (TemplateResult, error) {
	if !ValidTemplateName(name) {
		return NotFound(), nil
	}

	data, err := os.ReadFile(filepath.Join(p.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return NotFound(), nil
	}
	if err != nil {
		return NotFound(), fmt.Errorf("failed to read template %s: %w", name, err)
	}
	if len(data) == 0 {
		return NotFound(), nil
	}

	return Found(string(data)), nil
}

// ObjectGetter is the read side of a key/value object store such as
// github.com/gofiber/storage/s3/v2.Storage
type ObjectGetter interface {
	Get(key string) ([]byte, error)
}

// S3TemplateProvider serves templates from an object store bucket, optionally under a key prefix
type S3TemplateProvider struct {
	store  ObjectGetter
	prefix string
	logger *slog.Logger
}

func NewS3TemplateProvider(store ObjectGetter, prefix string, logger *slog.Logger) *S3TemplateProvider {
	return &S3TemplateProvider{store: store, prefix: prefix, logger: logger}
}

func (p *S3TemplateProvider) Resolve(ctx context.Context, name string) (TemplateResult, error) {
	if !ValidTemplateName(name) {
		return NotFound(), nil
	}

	data, err := p.store.Get(p.prefix + name)
	if err != nil {
		// the object store reports missing keys as errors
		p.logger.WarnContext(ctx, "template lookup failed",
			slog.String("template", name),
			slog.Any("error", err),
		)
		return NotFound(), nil
	}
	if len(data) == 0 {
		return NotFound(), nil
	}

	return Found(string(data)), nil
}
