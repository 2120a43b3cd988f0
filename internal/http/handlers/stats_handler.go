package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetStats godoc
// @ID          getStats
// @Summary     Storage statistics
// @Description Distinct chats, stored messages and live cache entries.
// @Tags        Stats
// @Produce     json
// @Success     200  {object}  repo.Stats
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /stats [get]
func (h *Handlers) GetStats(c *gin.Context) {
	st, err := h.msgSvc.Stats(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrorResponse{Code: ErrCodeInternal, Message: err.Error()})
		return
	}
	ok(c, http.StatusOK, st)
}
