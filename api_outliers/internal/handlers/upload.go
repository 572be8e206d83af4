package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// MaxUploadBytes caps the whole /process request body.
	MaxUploadBytes = 16 << 20

	uploadField = "file"
)

// UploadError is a rejected upload, reported before any parsing.
type UploadError struct {
	Status  int
	Message string
}

func (e *UploadError) Error() string { return e.Message }

var (
	errNoFile       = &UploadError{Status: http.StatusBadRequest, Message: "No file uploaded"}
	errNoFilename   = &UploadError{Status: http.StatusBadRequest, Message: "No file selected"}
	errNotCSV       = &UploadError{Status: http.StatusBadRequest, Message: "Please upload a CSV file"}
	errFileTooLarge = &UploadError{Status: http.StatusRequestEntityTooLarge, Message: "File too large"}
)

// uploadedFile returns the CSV file posted in the "file" field.
func uploadedFile(c *gin.Context) (*multipart.FileHeader, error) {
	fh, err := c.FormFile(uploadField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, errFileTooLarge
		}
		// Browsers submit an empty file input as a part with filename="",
		// which multipart parsing stores as a plain value.
		if form := c.Request.MultipartForm; form != nil {
			if _, ok := form.Value[uploadField]; ok {
				return nil, errNoFilename
			}
		}
		return nil, errNoFile
	}

	name := strings.TrimSpace(fh.Filename)
	if name == "" {
		return nil, errNoFilename
	}
	if !strings.EqualFold(filepath.Ext(name), ".csv") {
		return nil, errNotCSV
	}
	return fh, nil
}
