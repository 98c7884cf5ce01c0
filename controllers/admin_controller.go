package controllers

import (
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"form-consent/models"
	"form-consent/services"
	"form-consent/utils"
)

// AdminController serves the backend endpoints behind the admin API key.
type AdminController struct {
	ConsentSvc *services.ConsentService
	FormSvc    *services.FormSettingService
	LogSvc     *services.ConsentLogService
	Storage    *services.FileStorage
}

func NewAdminController(
	consents *services.ConsentService,
	forms *services.FormSettingService,
	logs *services.ConsentLogService,
	storage *services.FileStorage,
) *AdminController {
	return &AdminController{ConsentSvc: consents, FormSvc: forms, LogSvc: logs, Storage: storage}
}

// GET /api/admin/consents?limit=&offset=
func (ac *AdminController) ListConsents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	consents, err := ac.ConsentSvc.List(c.Request.Context(), limit, offset)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, consents)
}

// GET /api/admin/consents/:id
func (ac *AdminController) GetConsent(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	consent, err := ac.ConsentSvc.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, consent)
}

// GET /api/admin/consents/:id/logs
func (ac *AdminController) GetConsentLogs(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	logs, err := ac.LogSvc.List(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, logs)
}

// DELETE /api/admin/consents/:id
func (ac *AdminController) DeleteConsent(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := ac.ConsentSvc.Delete(c.Request.Context(), id); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, gin.H{"message": "consent deleted"})
}

// POST /api/admin/gc
func (ac *AdminController) GarbageCollect(c *gin.Context) {
	n, err := ac.ConsentSvc.GarbageCollect(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, gin.H{"deleted": n})
}

// GET /api/admin/forms/:identifier
func (ac *AdminController) GetForm(c *gin.Context) {
	form, err := ac.FormSvc.Get(c.Request.Context(), c.Param("identifier"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, form)
}

type formSettingPayload struct {
	EmailField      string `json:"emailField"`
	SenderEmail     string `json:"senderEmail" binding:"omitempty,email"`
	SenderName      string `json:"senderName"`
	Subject         string `json:"subject"`
	ApprovalPeriod  int64  `json:"approvalPeriod" binding:"gte=0,lte=315360000"`
	ConfirmationURL string `json:"confirmationUrl" binding:"omitempty,url"`
	WebhookURL      string `json:"webhookUrl" binding:"omitempty,url"`
	ShowDismissLink *bool  `json:"showDismissLink"`
}

// PUT /api/admin/forms/:identifier
func (ac *AdminController) UpsertForm(c *gin.Context) {
	var payload formSettingPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		utils.JSONError(c, http.StatusBadRequest, err.Error())
		return
	}

	form := &models.FormSetting{
		Identifier:      c.Param("identifier"),
		EmailField:      strings.TrimSpace(payload.EmailField),
		SenderEmail:     strings.TrimSpace(payload.SenderEmail),
		SenderName:      strings.TrimSpace(payload.SenderName),
		Subject:         strings.TrimSpace(payload.Subject),
		ApprovalPeriod:  payload.ApprovalPeriod,
		ConfirmationURL: strings.TrimSpace(payload.ConfirmationURL),
		WebhookURL:      strings.TrimSpace(payload.WebhookURL),
		ShowDismissLink: payload.ShowDismissLink == nil || *payload.ShowDismissLink,
	}
	if err := ac.FormSvc.Upsert(c.Request.Context(), form); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, form)
}

// GET /api/admin/files?pointer=
func (ac *AdminController) DownloadFile(c *gin.Context) {
	id, err := ac.ConsentSvc.Hash.ResolveFilePointer(c.Query("pointer"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	f, err := ac.Storage.Files.FindByID(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	file, err := ac.Storage.Open(f)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	defer file.Close()

	contentType := f.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": f.Name})
	c.DataFromReader(http.StatusOK, f.Size, contentType, file, map[string]string{
		"Content-Disposition": disposition,
	})
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id == 0 {
		utils.JSONError(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return uint(id), true
}
