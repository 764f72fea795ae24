package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/seglab/segcase-backend/internal/pkg/apierr"
	"github.com/seglab/segcase-backend/internal/pkg/ctxutil"
	"github.com/seglab/segcase-backend/internal/pkg/logger"
	"github.com/seglab/segcase-backend/internal/repos"
	"github.com/seglab/segcase-backend/internal/types"
)

const maxFilesPerCategory = 20

// UploadBatch maps each category present in an upload request to its files.
// A category absent from the batch leaves the case's existing references for
// that category untouched.
type UploadBatch map[UploadCategory][]*multipart.FileHeader

// CaseService is the only component that mutates a case's status. It owns the
// lifecycle created → uploading → processing → completed|error and translates
// every component failure into the API error taxonomy before it reaches the
// HTTP layer.
type CaseService interface {
	CreateCase(ctx context.Context, details types.PatientDetails) (*types.Case, error)
	UploadFiles(ctx context.Context, caseID uuid.UUID, batch UploadBatch) (*types.Case, error)
	Segment(ctx context.Context, caseID uuid.UUID) (*types.Case, error)
	GetCase(ctx context.Context, caseID uuid.UUID) (*types.Case, error)
	ListCases(ctx context.Context) ([]*types.Case, error)
	DeleteCase(ctx context.Context, caseID uuid.UUID) error
}

type caseService struct {
	db       *gorm.DB
	log      *logger.Logger
	caseRepo repos.CaseRepo
	staging  StagingService
	engine   SegmentationClient
	locks    *caseLocker
}

func NewCaseService(
	db *gorm.DB,
	baseLog *logger.Logger,
	caseRepo repos.CaseRepo,
	staging StagingService,
	engine SegmentationClient,
) CaseService {
	serviceLog := baseLog.With("service", "CaseService")
	return &caseService{
		db:       db,
		log:      serviceLog,
		caseRepo: caseRepo,
		staging:  staging,
		engine:   engine,
		locks:    newCaseLocker(),
	}
}

func (cs *caseService) owner(ctx context.Context) (uuid.UUID, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return uuid.Nil, apierr.New(http.StatusUnauthorized, "unauthorized", errors.New("no caller identity in context"))
	}
	return rd.UserID, nil
}

func (cs *caseService) findOwned(ctx context.Context, caseID, ownerID uuid.UUID) (*types.Case, error) {
	c, err := cs.caseRepo.GetOwned(ctx, nil, caseID, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.New(http.StatusNotFound, "not_found", errors.New("case not found"))
		}
		cs.log.Error("Failed to load case", "case_id", caseID, "error", err)
		return nil, apierr.New(http.StatusInternalServerError, "internal_error", errors.New("failed to load case"))
	}
	return c, nil
}

func (cs *caseService) CreateCase(ctx context.Context, details types.PatientDetails) (*types.Case, error) {
	ownerID, err := cs.owner(ctx)
	if err != nil {
		return nil, err
	}
	if err := details.Validate(); err != nil {
		return nil, apierr.New(http.StatusBadRequest, "validation_error", err)
	}

	c := types.NewCase(ownerID, details)
	if err := cs.caseRepo.Create(ctx, nil, c); err != nil {
		cs.log.Error("Failed to create case", "radiologist_id", ownerID, "error", err)
		return nil, apierr.New(http.StatusInternalServerError, "internal_error", errors.New("failed to create case"))
	}
	cs.log.Info("Case created", "case_id", c.ID, "radiologist_id", ownerID, "modality", string(details.Modality))
	return c, nil
}

func (cs *caseService) UploadFiles(ctx context.Context, caseID uuid.UUID, batch UploadBatch) (*types.Case, error) {
	ownerID, err := cs.owner(ctx)
	if err != nil {
		return nil, err
	}
	c, err := cs.findOwned(ctx, caseID, ownerID)
	if err != nil {
		return nil, err
	}

	if len(batch) == 0 {
		return nil, apierr.New(http.StatusBadRequest, "validation_error", errors.New("no files in upload request"))
	}
	for category, files := range batch {
		if !category.Valid() || category == CategoryMask {
			return nil, apierr.New(http.StatusBadRequest, "validation_error",
				fmt.Errorf("unknown upload category %q", category))
		}
		if len(files) > maxFilesPerCategory {
			return nil, apierr.New(http.StatusBadRequest, "validation_error",
				fmt.Errorf("at most %d files per category per request", maxFilesPerCategory))
		}
	}
	if !c.Status.CanTransitionTo(types.CaseStatusUploading) {
		return nil, apierr.New(http.StatusConflict, "conflict",
			fmt.Errorf("cannot upload while case is %s", c.Status))
	}

	// All-or-nothing across the whole request: a failure in any category
	// removes everything this request staged and leaves the case untouched.
	staged := make(map[UploadCategory][]string, len(batch))
	rollback := func() {
		for _, refs := range staged {
			cs.staging.Remove(refs)
		}
	}
	for category, files := range batch {
		refs, err := cs.staging.StageAll(caseID, category, files)
		if err != nil {
			rollback()
			if errors.Is(err, ErrUnsupportedFileType) || errors.Is(err, ErrFileTooLarge) {
				return nil, apierr.New(http.StatusBadRequest, "validation_error", err)
			}
			cs.log.Error("Staging failed", "case_id", caseID, "category", string(category), "error", err)
			return nil, apierr.New(http.StatusInternalServerError, "staging_failed", errors.New("failed to store uploaded files"))
		}
		staged[category] = refs
	}

	// Replace exactly the lists whose categories were present.
	if refs, ok := staged[CategoryPrimary]; ok {
		c.OriginalImages = datatypes.JSONSlice[string](refs)
	}
	if refs, ok := staged[CategorySupportImage]; ok {
		c.SupportImages = datatypes.JSONSlice[string](refs)
	}
	if refs, ok := staged[CategorySupportLabel]; ok {
		c.SupportLabels = datatypes.JSONSlice[string](refs)
	}
	c.Status = types.CaseStatusUploading

	if err := cs.caseRepo.Update(ctx, nil, c); err != nil {
		rollback()
		cs.log.Error("Failed to persist case after upload", "case_id", caseID, "error", err)
		return nil, apierr.New(http.StatusInternalServerError, "internal_error", errors.New("failed to update case"))
	}
	cs.log.Info("Files uploaded", "case_id", caseID, "categories", len(staged))
	return c, nil
}

func (cs *caseService) Segment(ctx context.Context, caseID uuid.UUID) (*types.Case, error) {
	ownerID, err := cs.owner(ctx)
	if err != nil {
		return nil, err
	}

	// Exclusive section per case id: concurrent segment requests for the
	// same case queue here instead of racing the engine.
	unlock := cs.locks.Lock(caseID)
	defer unlock()

	c, err := cs.findOwned(ctx, caseID, ownerID)
	if err != nil {
		return nil, err
	}

	// Fail fast before any status change.
	if len(c.OriginalImages) == 0 {
		return nil, apierr.New(http.StatusBadRequest, "validation_error", errors.New("no images uploaded for this case"))
	}
	if !c.Status.CanTransitionTo(types.CaseStatusProcessing) {
		return nil, apierr.New(http.StatusConflict, "conflict",
			fmt.Errorf("case is already %s", c.Status))
	}

	// Conditional claim guards against writers outside this process; the
	// update only lands if the status is still what we just read.
	claimed, err := cs.caseRepo.ClaimStatus(ctx, nil, caseID, ownerID, c.Status, types.CaseStatusProcessing)
	if err != nil {
		cs.log.Error("Failed to claim case for processing", "case_id", caseID, "error", err)
		return nil, apierr.New(http.StatusInternalServerError, "internal_error", errors.New("failed to update case"))
	}
	if !claimed {
		return nil, apierr.New(http.StatusConflict, "conflict", errors.New("case is already being processed"))
	}
	c.Status = types.CaseStatusProcessing
	c.ErrorMessage = ""

	masks, segErr := cs.engine.Segment(ctx, c.OriginalImages, c.SupportImages, c.SupportLabels)
	if segErr != nil {
		c.Status = types.CaseStatusError
		c.ErrorMessage = engineMessage(segErr)
		if uErr := cs.caseRepo.Update(ctx, nil, c); uErr != nil {
			cs.log.Error("Failed to persist error state", "case_id", caseID, "error", uErr)
		}
		cs.log.Warn("Segmentation failed", "case_id", caseID, "detail", c.ErrorMessage)
		return nil, apierr.New(http.StatusInternalServerError, "segmentation_failed", errors.New(c.ErrorMessage))
	}

	c.SegmentedImages = datatypes.JSONSlice[string](masks)
	c.Status = types.CaseStatusCompleted
	if err := cs.caseRepo.Update(ctx, nil, c); err != nil {
		cs.log.Error("Failed to persist completed case", "case_id", caseID, "error", err)
		return nil, apierr.New(http.StatusInternalServerError, "internal_error", errors.New("failed to update case"))
	}
	cs.log.Info("Segmentation complete", "case_id", caseID, "masks", len(masks))
	return c, nil
}

// engineMessage picks the detail recorded on the case: the engine's own
// message verbatim when it sent one, otherwise the stable unavailability text.
func engineMessage(err error) string {
	var engErr *EngineError
	if errors.As(err, &engErr) {
		return engErr.Message
	}
	if errors.Is(err, ErrEngineUnavailable) {
		return ErrEngineUnavailable.Error()
	}
	return err.Error()
}

func (cs *caseService) GetCase(ctx context.Context, caseID uuid.UUID) (*types.Case, error) {
	ownerID, err := cs.owner(ctx)
	if err != nil {
		return nil, err
	}
	return cs.findOwned(ctx, caseID, ownerID)
}

func (cs *caseService) ListCases(ctx context.Context) ([]*types.Case, error) {
	ownerID, err := cs.owner(ctx)
	if err != nil {
		return nil, err
	}
	cases, err := cs.caseRepo.ListOwned(ctx, nil, ownerID)
	if err != nil {
		cs.log.Error("Failed to list cases", "radiologist_id", ownerID, "error", err)
		return nil, apierr.New(http.StatusInternalServerError, "internal_error", errors.New("failed to list cases"))
	}
	return cases, nil
}

func (cs *caseService) DeleteCase(ctx context.Context, caseID uuid.UUID) error {
	ownerID, err := cs.owner(ctx)
	if err != nil {
		return err
	}
	if _, err := cs.findOwned(ctx, caseID, ownerID); err != nil {
		return err
	}

	// Files first, then the document: a failed purge keeps the case around
	// so the delete can be retried, never the other way around.
	if err := cs.staging.Purge(ctx, caseID); err != nil {
		cs.log.Error("Failed to purge case files", "case_id", caseID, "error", err)
		return apierr.New(http.StatusInternalServerError, "internal_error", errors.New("failed to delete case files"))
	}
	if err := cs.caseRepo.DeleteOwned(ctx, nil, caseID, ownerID); err != nil {
		cs.log.Error("Failed to delete case", "case_id", caseID, "error", err)
		return apierr.New(http.StatusInternalServerError, "internal_error", errors.New("failed to delete case"))
	}
	cs.log.Info("Case deleted", "case_id", caseID, "radiologist_id", ownerID)
	return nil
}
