package handlers

import (
	"embed"
	"errors"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"casewatch/api_outliers/internal/cases"
	"casewatch/api_outliers/internal/pipeline"
	"casewatch/api_outliers/internal/render"
	"casewatch/pkg/logging"
	"casewatch/pkg/middleware"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses the page templates served by this package.
func Templates() *template.Template {
	return template.Must(template.New("pages").
		Funcs(template.FuncMap{"duration": render.FormatDuration}).
		ParseFS(templateFS, "templates/*.html"))
}

type ProcessHandler struct {
	processor Processor
	logger    logging.Logger
	metrics   *UploadMetrics
}

func NewProcessHandler(processor Processor, logger logging.Logger, metrics *UploadMetrics) *ProcessHandler {
	return &ProcessHandler{
		processor: processor,
		logger:    logger,
		metrics:   metrics,
	}
}

// Register mounts the upload form and the process endpoint. The router must
// have Templates installed.
func (h *ProcessHandler) Register(r gin.IRouter) {
	r.GET("/", h.Index)
	r.POST("/process", middleware.BodyLimitMiddleware(MaxUploadBytes), h.Process)
}

func (h *ProcessHandler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{})
}

func (h *ProcessHandler) Process(c *gin.Context) {
	log := middleware.GetContextLogger(c, h.logger)

	fh, err := uploadedFile(c)
	if err != nil {
		var uploadErr *UploadError
		if !errors.As(err, &uploadErr) {
			uploadErr = errNoFile
		}
		h.metrics.IncProcess("rejected")
		log.WithField("error", uploadErr.Message).Warn("Rejected upload")
		h.fail(c, uploadErr.Status, uploadErr.Message)
		return
	}

	file, err := fh.Open()
	if err != nil {
		h.metrics.IncProcess("error")
		log.WithField("error", err.Error()).Error("Failed to open uploaded file")
		h.fail(c, http.StatusInternalServerError, "Failed to read uploaded file")
		return
	}
	defer func() { _ = file.Close() }()

	outcome, err := h.processor.Process(c.Request.Context(), file)
	if err != nil {
		if cases.IsInputError(err) {
			h.metrics.IncProcess("invalid")
			log.WithFields(logging.Fields{
				"file":  fh.Filename,
				"error": err.Error(),
			}).Warn("Uploaded file could not be processed")
			h.fail(c, http.StatusUnprocessableEntity, "Error processing file: "+err.Error())
			return
		}
		h.metrics.IncProcess("error")
		log.WithField("error", err.Error()).Error("Failed to process upload")
		h.fail(c, http.StatusInternalServerError, "Failed to process file")
		return
	}

	h.metrics.IncProcess("success")
	log.WithFields(logging.Fields{
		"file":     fh.Filename,
		"rows":     outcome.RowsScanned,
		"outliers": len(outcome.Cases),
	}).Info("Processed upload")

	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"result":  outcome,
		})
		return
	}
	c.HTML(http.StatusOK, "results.html", resultsPage(fh.Filename, outcome))
}

func (h *ProcessHandler) fail(c *gin.Context, status int, message string) {
	if wantsJSON(c) {
		c.JSON(status, gin.H{
			"success": false,
			"error":   message,
		})
		return
	}
	c.HTML(status, "index.html", gin.H{"Error": message})
}

func wantsJSON(c *gin.Context) bool {
	return c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON
}

type resultsData struct {
	Filename string
	*pipeline.Outcome
}

func resultsPage(filename string, outcome *pipeline.Outcome) resultsData {
	return resultsData{Filename: filename, Outcome: outcome}
}
