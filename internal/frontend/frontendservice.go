package frontend

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jo-hoe/bgremover/internal/core"
	"github.com/jo-hoe/bgremover/internal/flash"
	"github.com/labstack/echo/v4"
)

const (
	MainPageName   = "index.html"
	ResultPageName = "result.html"
	mimePNG        = "image/png"
)

type FrontendService struct {
	coreService *core.CoreService
	config      *core.ServiceConfig
	flash       *flash.Manager
}

type indexPage struct {
	Messages      []string
	Formats       string
	Accept        string
	MaxUploadSize string
}

type resultPage struct {
	OriginalSrc    template.URL
	ResultSrc      template.URL
	ResultFilename string
	ResultSizeKB   string
	DownloadURL    string
}

func NewFrontendService(config *core.ServiceConfig, coreService *core.CoreService, flashManager *flash.Manager) *FrontendService {
	return &FrontendService{
		coreService: coreService,
		config:      config,
		flash:       flashManager,
	}
}

func (service *FrontendService) SetRoutes(e *echo.Echo) {
	e.Renderer = newTemplate()

	e.GET("/", service.indexHandler)
	e.POST("/remove", service.removeHandler)
	// wildcard so that encoded separators reach the handler and get sanitized there
	e.GET("/download/*", service.downloadHandler)

	e.GET("/icon.svg", service.iconHandler)
	e.GET("/favicon.png", service.faviconHandler)
}

func (service *FrontendService) indexHandler(ctx echo.Context) error {
	extensions := service.config.AllowedExtensions
	accept := make([]string, len(extensions))
	for i, ext := range extensions {
		accept[i] = "." + ext
	}

	service.setNoCache(ctx)
	return ctx.Render(http.StatusOK, MainPageName, indexPage{
		Messages:      service.flash.Consume(ctx),
		Formats:       strings.ToUpper(strings.Join(extensions, "/")),
		Accept:        strings.Join(accept, ","),
		MaxUploadSize: humanize.IBytes(uint64(service.config.MaxUploadBytes())),
	})
}

func (service *FrontendService) removeHandler(ctx echo.Context) error {
	file, err := core.FormUpload(ctx.Request())
	if err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return err
		}
		if core.IsInputError(err) {
			slog.Warn("removeHandler: upload rejected", "status", http.StatusSeeOther, "reason", err)
			return service.redirectWithMessage(ctx, err.Error())
		}
		slog.Error("removeHandler: failed to read upload", "status", http.StatusBadRequest, "error", err)
		return ctx.String(http.StatusBadRequest, "Failed to read upload")
	}

	src, err := file.Open()
	if err != nil {
		slog.Error("removeHandler: failed to open uploaded file",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return service.redirectWithMessage(ctx, "Failed to process image: "+err.Error())
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			slog.Error("removeHandler: failed to close uploaded file reader", "error", cerr, "filename", file.Filename)
		}
	}()

	result, err := service.coreService.RemoveBackground(ctx.Request().Context(), file.Filename, src)
	if err != nil {
		var processErr *core.ProcessError
		switch {
		case core.IsInputError(err):
			slog.Warn("removeHandler: upload rejected", "reason", err, "filename", file.Filename)
			return service.redirectWithMessage(ctx, err.Error())
		case errors.As(err, &processErr):
			slog.Error("removeHandler: processing failed",
				"kind", processErr.Kind.String(), "error", err, "filename", file.Filename)
			return service.redirectWithMessage(ctx, processErr.UserMessage())
		default:
			slog.Error("removeHandler: processing failed", "error", err, "filename", file.Filename)
			return service.redirectWithMessage(ctx, "Failed to process image: "+err.Error())
		}
	}

	service.setNoCache(ctx)
	return ctx.Render(http.StatusOK, ResultPageName, resultPage{
		OriginalSrc:    dataURI(result.OriginalMIME, result.OriginalBase64),
		ResultSrc:      dataURI(mimePNG, result.ResultBase64),
		ResultFilename: result.ResultFilename,
		ResultSizeKB:   strconv.FormatFloat(result.ResultSizeKB, 'f', 1, 64),
		DownloadURL:    "/download/" + url.PathEscape(result.ResultFilename),
	})
}

func (service *FrontendService) downloadHandler(ctx echo.Context) error {
	token := ctx.Param("*")
	// the router matches on the raw path only when the request carries one,
	// otherwise the parameter is already decoded and must not be decoded twice
	if ctx.Request().URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(token); err == nil {
			token = unescaped
		}
	}

	file, err := service.coreService.OpenResult(ctx.Request().Context(), token)
	if err != nil {
		if errors.Is(err, core.ErrResultNotFound) {
			slog.Warn("downloadHandler: result not found", "requested", token)
			return service.redirectWithMessage(ctx, err.Error())
		}
		slog.Error("downloadHandler: failed to open result",
			"status", http.StatusInternalServerError, "error", err, "requested", token)
		return ctx.String(http.StatusInternalServerError, "Failed to open result")
	}

	return ctx.Attachment(file.Path, file.Name)
}

func (service *FrontendService) iconHandler(ctx echo.Context) error {
	data, err := iconSVG()
	if err != nil {
		slog.Error("iconHandler: failed to read icon.svg", "status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to load icon")
	}
	// Cache for 7 days
	ctx.Response().Header().Set("Cache-Control", "public, max-age=604800, immutable")
	return ctx.Blob(http.StatusOK, "image/svg+xml", data)
}

func (service *FrontendService) faviconHandler(ctx echo.Context) error {
	data, err := faviconPNG()
	if err != nil {
		slog.Error("faviconHandler: failed to render favicon", "status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to load icon")
	}
	ctx.Response().Header().Set("Cache-Control", "public, max-age=604800, immutable")
	return ctx.Blob(http.StatusOK, mimePNG, data)
}

// redirectWithMessage flashes message and sends the browser back to the main page
func (service *FrontendService) redirectWithMessage(ctx echo.Context, message string) error {
	if err := service.flash.Add(ctx, message); err != nil {
		slog.Error("redirectWithMessage: failed to store flash message", "error", err, "message", message)
	}
	return ctx.Redirect(http.StatusSeeOther, "/")
}

func (service *FrontendService) setNoCache(ctx echo.Context) {
	ctx.Response().Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	ctx.Response().Header().Set("Pragma", "no-cache")
	ctx.Response().Header().Set("Expires", "0")
}

func dataURI(mimeType, payload string) template.URL {
	return template.URL("data:" + mimeType + ";base64," + payload)
}
