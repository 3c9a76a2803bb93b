package handlers

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/visaflow/visaflow-backend/internal/apperr"
	"github.com/visaflow/visaflow-backend/internal/logger"
	"github.com/visaflow/visaflow-backend/internal/services"
	"github.com/visaflow/visaflow-backend/internal/utils"
)

// VisaHandler exposes the application lifecycle over multipart HTTP.
// Requests carry a JSON payload in the "data" form field; every other file
// field is a composite document field name routed by the services layer.
type VisaHandler struct {
	log         *logger.Logger
	visaService services.VisaService
}

func NewVisaHandler(log *logger.Logger, visaService services.VisaService) *VisaHandler {
	handlerLog := log.With("handler", "VisaHandler")
	return &VisaHandler{log: handlerLog, visaService: visaService}
}

func (vh *VisaHandler) Create(c *gin.Context) {
	var input services.CreateVisaInput
	if err := bindDataField(c, &input); err != nil {
		RespondAppError(c, err)
		return
	}
	staged, release, err := vh.stageUploads(c)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	defer release()
	input.Files = staged

	app, err := vh.visaService.Create(c.Request.Context(), input)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondCreated(c, gin.H{"application": app})
}

func (vh *VisaHandler) GetAll(c *gin.Context) {
	apps, err := vh.visaService.GetAll(c.Request.Context())
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"applications": apps})
}

func (vh *VisaHandler) GetByID(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		RespondAppError(c, err)
		return
	}
	app, err := vh.visaService.GetByID(c.Request.Context(), id)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"application": app})
}

func (vh *VisaHandler) Update(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		RespondAppError(c, err)
		return
	}
	var input services.UpdateVisaInput
	if err := bindDataField(c, &input); err != nil {
		RespondAppError(c, err)
		return
	}
	staged, release, err := vh.stageUploads(c)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	defer release()
	input.Files = staged

	app, err := vh.visaService.Update(c.Request.Context(), id, input)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"application": app})
}

func (vh *VisaHandler) Delete(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if err := vh.visaService.Delete(c.Request.Context(), id); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": id})
}

func (vh *VisaHandler) GetSubTraveler(c *gin.Context) {
	visaID, err := pathUUID(c, "id")
	if err != nil {
		RespondAppError(c, err)
		return
	}
	subID, err := pathUUID(c, "subId")
	if err != nil {
		RespondAppError(c, err)
		return
	}
	st, err := vh.visaService.GetSubTraveler(c.Request.Context(), visaID, subID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"subTraveler": st})
}

func (vh *VisaHandler) UpdateSubTraveler(c *gin.Context) {
	visaID, err := pathUUID(c, "id")
	if err != nil {
		RespondAppError(c, err)
		return
	}
	subID, err := pathUUID(c, "subId")
	if err != nil {
		RespondAppError(c, err)
		return
	}
	var input services.UpdateSubTravelerInput
	if err := bindDataField(c, &input); err != nil {
		RespondAppError(c, err)
		return
	}
	staged, release, err := vh.stageUploads(c)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	defer release()
	input.Files = staged

	st, err := vh.visaService.UpdateSubTraveler(c.Request.Context(), visaID, subID, input)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"subTraveler": st})
}

func (vh *VisaHandler) DeleteSubTraveler(c *gin.Context) {
	visaID, err := pathUUID(c, "id")
	if err != nil {
		RespondAppError(c, err)
		return
	}
	subID, err := pathUUID(c, "subId")
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if err := vh.visaService.DeleteSubTraveler(c.Request.Context(), visaID, subID); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": subID})
}

// stageUploads writes every multipart file to local disk under UPLOAD_DIR.
// The returned release func removes whatever the upload pipeline has not
// already consumed, so a failed request leaves no staging litter.
func (vh *VisaHandler) stageUploads(c *gin.Context) (map[string]services.StagedFile, func(), error) {
	staged := map[string]services.StagedFile{}
	release := func() {
		for _, sf := range staged {
			if err := os.Remove(sf.Path); err != nil && !os.IsNotExist(err) {
				vh.log.Warn("failed to remove staged file", "path", sf.Path, "error", err)
			}
		}
	}

	form, err := c.MultipartForm()
	if err != nil {
		// no multipart body at all is fine: scalar-only request
		return staged, release, nil
	}
	if len(form.File) == 0 {
		return staged, release, nil
	}

	uploadDir := utils.GetEnv("UPLOAD_DIR", filepath.Join(os.TempDir(), "visaflow-uploads"), vh.log)
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, release, apperr.Wrap(apperr.KindInternal, "failed to prepare upload staging directory", err)
	}

	for field, headers := range form.File {
		if len(headers) == 0 {
			continue
		}
		fh := headers[0]
		name := fmt.Sprintf("%d-%s", time.Now().UnixNano(), filepath.Base(fh.Filename))
		path := filepath.Join(uploadDir, name)
		if err := c.SaveUploadedFile(fh, path); err != nil {
			release()
			return nil, func() {}, apperr.Wrap(apperr.KindInternal,
				fmt.Sprintf("failed to stage uploaded file for %q", field), err)
		}
		staged[field] = services.StagedFile{Path: path, OriginalName: fh.Filename}
	}
	return staged, release, nil
}

func bindDataField(c *gin.Context, dest interface{}) error {
	raw := c.PostForm("data")
	if raw == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return apperr.Wrap(apperr.KindValidation, "malformed data payload", err)
	}
	return nil
}

func pathUUID(c *gin.Context, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		return uuid.Nil, apperr.Wrap(apperr.KindValidation, fmt.Sprintf("invalid %s", param), err)
	}
	return id, nil
}
