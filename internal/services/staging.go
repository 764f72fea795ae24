package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/seglab/segcase-backend/internal/pkg/logger"
)

// UploadCategory selects the staging subtree a file lands in. Dispatch is on
// this enum, never on raw multipart field names.
type UploadCategory string

const (
	CategoryPrimary      UploadCategory = "primary"
	CategorySupportImage UploadCategory = "supportImage"
	CategorySupportLabel UploadCategory = "supportLabel"
	CategoryMask         UploadCategory = "mask"
)

var allCategories = []UploadCategory{
	CategoryPrimary,
	CategorySupportImage,
	CategorySupportLabel,
	CategoryMask,
}

func (c UploadCategory) Valid() bool {
	switch c {
	case CategoryPrimary, CategorySupportImage, CategorySupportLabel, CategoryMask:
		return true
	}
	return false
}

// dirName maps a category to its subtree under the staging root. Files are
// segregated by category first and case id second so per-case cleanup is one
// recursive delete per category root.
func (c UploadCategory) dirName() string {
	switch c {
	case CategoryPrimary:
		return "primary"
	case CategorySupportImage:
		return "support_images"
	case CategorySupportLabel:
		return "support_labels"
	case CategoryMask:
		return "masks"
	}
	return string(c)
}

var (
	ErrUnsupportedFileType = errors.New("only PNG, JPG, JPEG files are allowed")
	ErrFileTooLarge        = errors.New("file exceeds the maximum allowed size")
)

var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

type StagingService interface {
	Stage(caseID uuid.UUID, category UploadCategory, file *multipart.FileHeader) (string, error)
	// StageAll stages a batch all-or-nothing: if any file fails, files
	// already staged by this call are removed before the error returns.
	StageAll(caseID uuid.UUID, category UploadCategory, files []*multipart.FileHeader) ([]string, error)
	ResolveDir(caseID uuid.UUID, category UploadCategory) string
	// Purge removes every staged file for the case across all categories.
	// Purging a case with no files is a no-op.
	Purge(ctx context.Context, caseID uuid.UUID) error
	Remove(refs []string)
	Root() string
}

type stagingService struct {
	log         *logger.Logger
	root        string
	maxFileSize int64
}

func NewStagingService(baseLog *logger.Logger, root string, maxFileSize int64) (StagingService, error) {
	serviceLog := baseLog.With("service", "StagingService")
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve staging root %q: %w", root, err)
	}
	if err := os.MkdirAll(absRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging root %q: %w", absRoot, err)
	}
	return &stagingService{
		log:         serviceLog,
		root:        absRoot,
		maxFileSize: maxFileSize,
	}, nil
}

func (ss *stagingService) Root() string {
	return ss.root
}

func (ss *stagingService) ResolveDir(caseID uuid.UUID, category UploadCategory) string {
	return filepath.Join(ss.root, category.dirName(), caseID.String())
}

func (ss *stagingService) Stage(caseID uuid.UUID, category UploadCategory, file *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedExtensions[ext] {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, file.Filename)
	}
	if ss.maxFileSize > 0 && file.Size > ss.maxFileSize {
		return "", fmt.Errorf("%w: %q (%d bytes)", ErrFileTooLarge, file.Filename, file.Size)
	}

	dir := ss.ResolveDir(caseID, category)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create staging dir %q: %w", dir, err)
	}

	// Label files carry a distinguishing prefix so an image and its label
	// can never collide by name within the same directory.
	prefix := ""
	if category == CategorySupportLabel {
		prefix = "label_"
	}
	name := prefix + uuid.New().String() + ext
	dst := filepath.Join(dir, name)

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file %q: %w", file.Filename, err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create staged file %q: %w", dst, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return "", fmt.Errorf("failed to write staged file %q: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("failed to close staged file %q: %w", dst, err)
	}

	ss.log.Debug("Staged file", "case_id", caseID, "category", string(category), "ref", dst)
	return dst, nil
}

func (ss *stagingService) StageAll(caseID uuid.UUID, category UploadCategory, files []*multipart.FileHeader) ([]string, error) {
	refs := make([]string, 0, len(files))
	for _, file := range files {
		ref, err := ss.Stage(caseID, category, file)
		if err != nil {
			ss.Remove(refs)
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// Remove deletes previously staged files, ignoring ones already gone.
func (ss *stagingService) Remove(refs []string) {
	for _, ref := range refs {
		if err := os.Remove(ref); err != nil && !os.IsNotExist(err) {
			ss.log.Warn("Failed to remove staged file", "ref", ref, "error", err)
		}
	}
}

func (ss *stagingService) Purge(ctx context.Context, caseID uuid.UUID) error {
	g, _ := errgroup.WithContext(ctx)
	for _, category := range allCategories {
		dir := ss.ResolveDir(caseID, category)
		g.Go(func() error {
			if err := os.RemoveAll(dir); err != nil {
				return fmt.Errorf("failed to purge %q: %w", dir, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	ss.log.Info("Purged staged files", "case_id", caseID)
	return nil
}
