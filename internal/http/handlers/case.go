package handlers

import (
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/seglab/segcase-backend/internal/http/response"
	"github.com/seglab/segcase-backend/internal/pkg/logger"
	"github.com/seglab/segcase-backend/internal/services"
	"github.com/seglab/segcase-backend/internal/types"
)

// Multipart field names accepted by the upload endpoint. They are mapped onto
// the staging categories here, at the edge; everything below the handler
// dispatches on the category enum.
const (
	fieldImages        = "images"
	fieldSupportImages = "supportImages"
	fieldSupportLabels = "supportLabels"
)

type CaseHandler struct {
	log         *logger.Logger
	caseService services.CaseService
}

func NewCaseHandler(log *logger.Logger, caseService services.CaseService) *CaseHandler {
	return &CaseHandler{log: log.With("handler", "CaseHandler"), caseService: caseService}
}

func (ch *CaseHandler) caseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("caseId"))
	if err != nil {
		response.RespondError(c, http.StatusNotFound, "not_found", err)
		return uuid.Nil, false
	}
	return id, true
}

func (ch *CaseHandler) Create(c *gin.Context) {
	var req struct {
		PatientDetails types.PatientDetails `json:"patientDetails"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	created, err := ch.caseService.CreateCase(c.Request.Context(), req.PatientDetails)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"message": "case created", "case": created})
}

func (ch *CaseHandler) Upload(c *gin.Context) {
	caseID, ok := ch.caseID(c)
	if !ok {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}

	batch := services.UploadBatch{}
	addCategory(batch, services.CategoryPrimary, form.File[fieldImages])
	addCategory(batch, services.CategorySupportImage, form.File[fieldSupportImages])
	addCategory(batch, services.CategorySupportLabel, form.File[fieldSupportLabels])

	updated, err := ch.caseService.UploadFiles(c.Request.Context(), caseID, batch)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"message": "files uploaded", "case": updated})
}

func addCategory(batch services.UploadBatch, category services.UploadCategory, files []*multipart.FileHeader) {
	if len(files) > 0 {
		batch[category] = files
	}
}

func (ch *CaseHandler) Segment(c *gin.Context) {
	caseID, ok := ch.caseID(c)
	if !ok {
		return
	}
	segmented, err := ch.caseService.Segment(c.Request.Context(), caseID)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"message": "segmentation complete", "case": segmented})
}

func (ch *CaseHandler) List(c *gin.Context) {
	cases, err := ch.caseService.ListCases(c.Request.Context())
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"cases": cases})
}

func (ch *CaseHandler) Get(c *gin.Context) {
	caseID, ok := ch.caseID(c)
	if !ok {
		return
	}
	found, err := ch.caseService.GetCase(c.Request.Context(), caseID)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"case": found})
}

func (ch *CaseHandler) Delete(c *gin.Context) {
	caseID, ok := ch.caseID(c)
	if !ok {
		return
	}
	if err := ch.caseService.DeleteCase(c.Request.Context(), caseID); err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"message": "case deleted successfully"})
}
