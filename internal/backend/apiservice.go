package backend

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/jo-hoe/bgremover/internal/core"
	"github.com/labstack/echo/v4"
)

const (
	ResponsePNG  = "png"
	ResponseJSON = "json"
)

// APIService exposes background removal for machine clients
type APIService struct {
	coreService *core.CoreService
}

type RemoveRequest struct {
	Response string `query:"response" validate:"omitempty,oneof=png json"`
}

type RemoveResponse struct {
	ID             string  `json:"id"`
	ResultFilename string  `json:"resultFilename"`
	ResultSizeKB   float64 `json:"resultSizeKb"`
	DownloadURL    string  `json:"downloadUrl"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func NewAPIService(coreService *core.CoreService) *APIService {
	return &APIService{
		coreService: coreService,
	}
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	// Set probe route
	e.GET("/probe", s.probeHandler)
	e.POST("/api/remove", s.removeHandler)
}

func (s *APIService) probeHandler(c echo.Context) error {
	if !s.coreService.Ready() {
		slog.Warn("api: probe failed, result index unreachable")
		return c.String(http.StatusServiceUnavailable, "Result index unavailable")
	}
	return c.String(http.StatusOK, "API Service is running")
}

func (s *APIService) removeHandler(c echo.Context) error {
	var request RemoveRequest
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &request); err != nil {
		return err
	}
	if err := c.Validate(&request); err != nil {
		return err
	}

	file, err := core.FormUpload(c.Request())
	if err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return err
		}
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}

	src, err := file.Open()
	if err != nil {
		slog.Error("api: failed to open uploaded file", "error", err, "filename", file.Filename)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to process image: " + err.Error()})
	}
	defer func() {
		_ = src.Close()
	}()

	result, err := s.coreService.RemoveBackground(c.Request().Context(), file.Filename, src)
	if err != nil {
		status, message := errorStatus(err)
		slog.Warn("api: remove request failed", "status", status, "error", err, "filename", file.Filename)
		return c.JSON(status, ErrorResponse{Error: message})
	}

	if request.Response == ResponseJSON {
		return c.JSON(http.StatusOK, RemoveResponse{
			ID:             result.ID,
			ResultFilename: result.ResultFilename,
			ResultSizeKB:   result.ResultSizeKB,
			DownloadURL:    "/download/" + url.PathEscape(result.ResultFilename),
		})
	}

	stored, err := s.coreService.OpenResult(c.Request().Context(), result.ResultFilename)
	if err != nil {
		slog.Error("api: stored result vanished", "error", err, "result", result.ResultFilename)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
	return c.Attachment(stored.Path, stored.Name)
}

// errorStatus maps a removal error to its HTTP status and client message
func errorStatus(err error) (int, string) {
	if core.IsInputError(err) {
		return http.StatusBadRequest, err.Error()
	}
	var processErr *core.ProcessError
	if errors.As(err, &processErr) {
		switch processErr.Kind {
		case core.KindDecode:
			return http.StatusUnprocessableEntity, processErr.UserMessage()
		case core.KindModel:
			return http.StatusBadGateway, processErr.UserMessage()
		default:
			return http.StatusInternalServerError, processErr.UserMessage()
		}
	}
	return http.StatusInternalServerError, "Failed to process image: " + err.Error()
}
