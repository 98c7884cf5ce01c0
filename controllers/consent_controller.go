package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"form-consent/services"
	"form-consent/utils"
)

// ConsentController serves the public submission and confirmation endpoints.
type ConsentController struct {
	ConsentSvc *services.ConsentService
}

func NewConsentController(svc *services.ConsentService) *ConsentController {
	return &ConsentController{ConsentSvc: svc}
}

// POST /api/forms/:identifier/submit
func (cc *ConsentController) Submit(c *gin.Context) {
	var contentElement uint
	if raw := strings.TrimSpace(c.Query("contentElement")); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			utils.JSONError(c, http.StatusBadRequest, "invalid contentElement")
			return
		}
		contentElement = uint(v)
	}

	consent, err := cc.ConsentSvc.Submit(c.Request.Context(), services.SubmitInput{
		FormIdentifier:    c.Param("identifier"),
		ContentElementUID: contentElement,
		Request:           c.Request,
	})
	if err != nil && consent == nil {
		respondServiceError(c, err)
		return
	}

	body := gin.H{
		"id":         consent.ID,
		"validUntil": consent.ValidUntil,
		"mailSent":   err == nil,
	}
	utils.JSONSuccess(c, http.StatusCreated, body)
}

// GET /api/consent/approve?hash=
func (cc *ConsentController) Approve(c *gin.Context) {
	ev, err := cc.ConsentSvc.Approve(c.Request.Context(), c.Query("hash"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if ev.RedirectURL != "" {
		c.Redirect(http.StatusSeeOther, ev.RedirectURL)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, gin.H{
		"status":       "approved",
		"approvalDate": ev.Consent.ApprovalDate,
	})
}

// GET /api/consent/dismiss?hash=
func (cc *ConsentController) Dismiss(c *gin.Context) {
	ev, err := cc.ConsentSvc.Dismiss(c.Request.Context(), c.Query("hash"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if ev.RedirectURL != "" {
		c.Redirect(http.StatusSeeOther, ev.RedirectURL)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, gin.H{"status": "dismissed"})
}

func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrConsentNotFound), errors.Is(err, services.ErrFileNotFound):
		utils.JSONError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrFormNotConfigured):
		utils.JSONError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrAlreadyApproved):
		utils.JSONError(c, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrMissingEmail), errors.Is(err, services.ErrInvalidPointer):
		utils.JSONError(c, http.StatusUnprocessableEntity, err.Error())
	default:
		utils.JSONFromError(c, http.StatusInternalServerError, err)
	}
}
