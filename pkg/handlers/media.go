package handlers

import (
	"net/http"

	"github.com/ASHISH26940/marketing-ops-api/pkg/storage"
	"github.com/ASHISH26940/marketing-ops-api/pkg/utils"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// UploadMedia stores one multipart "file" and returns its public URL.
func (h *Handlers) UploadMedia(c *gin.Context) {
	if h.Media == nil {
		utils.ResponseWithError(c, http.StatusNotImplemented, "Media storage is not configured", nil)
		return
	}
	// the largest class plus room for the multipart envelope
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxVideoSize+1<<20)

	header, err := c.FormFile("file")
	if err != nil {
		utils.ResponseWithError(c, http.StatusBadRequest, "Missing file in form field 'file'", err.Error())
		return
	}
	upload, err := storage.ValidateUpload(header)
	if err != nil {
		respondErr(c, "File rejected", err)
		return
	}

	f, err := header.Open()
	if err != nil {
		log.Errorf("UploadMedia: failed to open %s: %v", header.Filename, err)
		utils.ResponseWithError(c, http.StatusInternalServerError, "Failed to read upload", nil)
		return
	}
	defer f.Close()

	url, err := h.Media.Upload(c.Request.Context(), f, upload.Filename, upload.ContentType)
	if err != nil {
		log.Errorf("UploadMedia: storing %s failed: %v", upload.Filename, err)
		utils.ResponseWithError(c, http.StatusInternalServerError, "Failed to store file", nil)
		return
	}
	log.Infof("UploadMedia: stored %s (%s, %d bytes)", upload.Filename, upload.Class, upload.Size)
	utils.ResponseWithSuccess(c, http.StatusCreated, "File uploaded", gin.H{
		"url":         url,
		"filename":    upload.Filename,
		"contentType": upload.ContentType,
		"class":       upload.Class,
		"size":        upload.Size,
	})
}
