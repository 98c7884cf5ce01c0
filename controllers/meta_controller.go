package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"form-consent/utils"
)

const (
	consentTable  = "tx_formconsent_domain_model_consent"
	consentPlugin = "Consent"
	consentWidget = "ApprovedConsents"
)

// GET /api/meta/icons
func GetIcons(c *gin.Context) {
	table, err := utils.IconForTable(consentTable)
	if err != nil {
		utils.JSONFromError(c, http.StatusInternalServerError, err)
		return
	}
	plugin, err := utils.IconForPlugin(consentPlugin)
	if err != nil {
		utils.JSONFromError(c, http.StatusInternalServerError, err)
		return
	}
	pluginID, err := utils.IconForPluginIdentifier(consentPlugin)
	if err != nil {
		utils.JSONFromError(c, http.StatusInternalServerError, err)
		return
	}
	widget, err := utils.IconForWidget(consentWidget)
	if err != nil {
		utils.JSONFromError(c, http.StatusInternalServerError, err)
		return
	}
	widgetID, err := utils.IconForWidgetIdentifier(consentWidget)
	if err != nil {
		utils.JSONFromError(c, http.StatusInternalServerError, err)
		return
	}

	utils.JSONSuccess(c, http.StatusOK, gin.H{
		"table":  gin.H{"path": table},
		"plugin": gin.H{"identifier": pluginID, "path": plugin},
		"widget": gin.H{"identifier": widgetID, "path": widget},
	})
}
