package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health reports liveness only: if the process can answer HTTP, it is up.
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{Status: "ok"})
}
