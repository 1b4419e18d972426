package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// GetDashboard 返回后台仪表盘数据，range 取 7d/30d/90d/180d/365d。
func (a *API) GetDashboard(c *gin.Context) {
	rangeKey := c.DefaultQuery("range", "7d")

	data, err := a.analytics.Dashboard(rangeKey, time.Now().UTC())
	if err != nil {
		c.Error(err)
		respondError(c, http.StatusInternalServerError, "failed to load analytics")
		return
	}
	c.JSON(http.StatusOK, data)
}
