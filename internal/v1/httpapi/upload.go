package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/azizhankaya/thiscrow/internal/v1/logging"
	"github.com/azizhankaya/thiscrow/internal/v1/upload"
)

func (s *Server) uploadFiles(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed multipart form"})
		return
	}

	var saved []upload.SavedFile
	for field, files := range form.File {
		stored, err := s.uploads.Save(field, files)
		if err != nil {
			if errors.Is(err, upload.ErrUnknownField) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown upload field: " + field})
				return
			}
			logging.Error(c.Request.Context(), "upload failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
			return
		}
		saved = append(saved, stored...)
	}

	c.JSON(http.StatusOK, saved)
}
