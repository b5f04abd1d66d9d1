package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-relay/internal/http/middleware"
)

// PurgeResponse confirms a purge.
type PurgeResponse struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message" example:"All messages have been deleted successfully."`
	Deleted int64  `json:"deleted" example:"42"`
}

// PurgeMessages godoc
// @ID          purgeMessages
// @Summary     Delete every message
// @Description Maintenance operation. When the server has a maintenance token configured,
// @Description X-Maintenance-Token must carry it.
// @Tags        Maintenance
// @Produce     json
// @Param       X-Maintenance-Token  header  string  false  "Maintenance token"
// @Success     200  {object}  handlers.PurgeResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /messages [delete]
func (h *Handlers) PurgeMessages(c *gin.Context) {
	if h.MaintenanceToken != "" {
		got := c.GetHeader(middleware.HeaderMaintenanceToken)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.MaintenanceToken)) != 1 {
			fail(c, http.StatusForbidden, ErrCodeForbidden, "maintenance token required")
			return
		}
	}
	n, err := h.msgs.PurgeAll(c.Request.Context())
	if err != nil {
		failErr(c, err, http.StatusInternalServerError, ErrCodePurgeFailed, "Something went wrong while deleting messages.")
		return
	}
	middleware.LoggerFrom(c).Warn().Int64("deleted", n).Msg("all messages purged")
	ok(c, http.StatusOK, PurgeResponse{
		Success: true,
		Message: "All messages have been deleted successfully.",
		Deleted: n,
	})
}
