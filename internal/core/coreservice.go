package core

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/jo-hoe/bgremover/internal/backend/commands"
	"github.com/jo-hoe/bgremover/internal/backend/commandstructure"
	"github.com/jo-hoe/bgremover/internal/backend/database"
	"github.com/jo-hoe/bgremover/internal/common"
	"github.com/jo-hoe/bgremover/internal/segmentation"
	"github.com/jo-hoe/bgremover/internal/storage"
)

// ProcessResult is everything the result page needs
type ProcessResult struct {
	ID             string
	OriginalBase64 string
	OriginalExt    string
	// OriginalMIME is the media type used for the original's data URI
	OriginalMIME    string
	ResultBase64    string
	ResultFilename  string
	ResultSizeBytes int64
	ResultSizeKB    float64
}

// ResultFile locates a stored result for download
type ResultFile struct {
	Name string
	Path string
	Size int64
}

type CoreService struct {
	config          *ServiceConfig
	databaseService database.DatabaseService
	uploads         *storage.Directory
	results         *storage.Directory
	pipeline        *commandstructure.CommandInvoker
	segmenter       segmentation.Segmenter
}

func NewCoreService(config *ServiceConfig, segmenter segmentation.Segmenter) (*CoreService, error) {
	uploads, err := storage.NewDirectory(config.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare upload directory: %w", err)
	}
	results, err := storage.NewDirectory(config.ResultDir)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare result directory: %w", err)
	}

	pipeline, err := commandstructure.NewCommandInvokerFromConfigs(commandstructure.DefaultRegistry, pipelineConfigs(config))
	if err != nil {
		return nil, fmt.Errorf("failed to build image pipeline: %w", err)
	}

	databaseService, err := getDatabaseService(config)
	if err != nil {
		return nil, err
	}

	indexed, err := databaseService.CountResults(context.Background())
	if err != nil {
		_ = databaseService.Close()
		return nil, fmt.Errorf("failed to read result index: %w", err)
	}

	slog.Info("core: service initialized",
		"upload_dir", uploads.Root(),
		"result_dir", results.Root(),
		"pipeline", pipeline.Names(),
		"indexed_results", indexed)

	return &CoreService{
		config:          config,
		databaseService: databaseService,
		uploads:         uploads,
		results:         results,
		pipeline:        pipeline,
		segmenter:       segmenter,
	}, nil
}

// pipelineConfigs returns the preparation steps run before the model call
func pipelineConfigs(config *ServiceConfig) []commandstructure.CommandConfig {
	configs := []commandstructure.CommandConfig{{Name: "PngConverterCommand"}}
	if config.Model.MaxDimension > 0 {
		configs = append(configs, commandstructure.CommandConfig{
			Name:   "FitCommand",
			Params: map[string]any{
				"maxDimension": config.Model.MaxDimension,
				"filter":       config.Model.ResampleFilter,
			},
		})
	}
	return configs
}

func getDatabaseService(config *ServiceConfig) (database.DatabaseService, error) {
	databaseService, err := database.NewDatabase(config.Database.Type, config.Database.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("core: database initialized", "type", config.Database.Type)
	return databaseService, nil
}

func (service *CoreService) Config() *ServiceConfig {
	return service.config
}

// ValidateUpload checks the claimed filename and returns its lowercase extension
func (service *CoreService) ValidateUpload(filename string) (string, error) {
	if filename == "" {
		return "", ErrNoSelectedFile
	}
	ext, ok := common.FileExtension(filename)
	if !ok || !service.config.IsAllowedExtension(ext) {
		return "", ErrFileTypeNotAllowed
	}
	return ext, nil
}

// RemoveBackground stores the upload temporarily, runs it through the pipeline and the
// model and persists the result. The temporary upload is removed on every path.
func (service *CoreService) RemoveBackground(ctx context.Context, filename string, upload io.Reader) (*ProcessResult, error) {
	ext, err := service.ValidateUpload(filename)
	if err != nil {
		return nil, err
	}

	id := database.NewResultID()
	uploadName := fmt.Sprintf("%s_orig.%s", id, ext)
	if _, _, err := service.uploads.Write(uploadName, upload); err != nil {
		return nil, &ProcessError{Kind: KindIO, Op: "save upload", Err: err}
	}
	defer func() {
		if err := service.uploads.Remove(uploadName); err != nil {
			slog.Warn("core: failed to remove temporary upload", "file", uploadName, "error", err)
		}
	}()

	original, err := service.uploads.Read(uploadName)
	if err != nil {
		return nil, &ProcessError{Kind: KindIO, Op: "read upload", Err: err}
	}

	prepared, err := service.pipeline.Execute(ctx, original)
	if err != nil {
		kind := KindIO
		if errors.Is(err, commands.ErrDecode) {
			kind = KindDecode
		}
		return nil, &ProcessError{Kind: kind, Op: "prepare image", Err: err}
	}

	start := time.Now()
	output, err := service.segmenter.Remove(ctx, prepared)
	if err != nil {
		return nil, &ProcessError{Kind: KindModel, Op: "remove background", Err: err}
	}
	if err := validateResultPNG(output); err != nil {
		return nil, &ProcessError{Kind: KindModel, Op: "remove background", Err: err}
	}
	slog.Debug("core: model finished", "id", id, "duration", time.Since(start))

	resultName := id + "_result.png"
	_, size, err := service.results.Write(resultName, bytes.NewReader(output))
	if err != nil {
		return nil, &ProcessError{Kind: KindIO, Op: "save result", Err: err}
	}

	record := &database.Result{
		ID:           id,
		Filename:     resultName,
		OriginalName: common.SecureFilename(filename),
		SizeBytes:    size,
		CreatedAt:    time.Now(),
	}
	if err := service.databaseService.CreateResult(ctx, record); err != nil {
		if rmErr := service.results.Remove(resultName); rmErr != nil {
			slog.Warn("core: failed to remove unindexed result", "file", resultName, "error", rmErr)
		}
		return nil, &ProcessError{Kind: KindIO, Op: "index result", Err: err}
	}

	slog.Info("core: background removed",
		"id", id,
		"original", record.OriginalName,
		"result", resultName,
		"size_bytes", size)

	return &ProcessResult{
		ID:              id,
		OriginalBase64:  base64.StdEncoding.EncodeToString(original),
		OriginalExt:     ext,
		OriginalMIME:    mimeTypeForExtension(ext),
		ResultBase64:    base64.StdEncoding.EncodeToString(output),
		ResultFilename:  resultName,
		ResultSizeBytes: size,
		ResultSizeKB:    sizeInKB(size),
	}, nil
}

// OpenResult resolves a user supplied result name inside the result directory
func (service *CoreService) OpenResult(_ context.Context, token string) (*ResultFile, error) {
	name := common.SecureFilename(token)
	if name == "" {
		return nil, ErrResultNotFound
	}
	path, err := service.results.Path(name)
	if err != nil {
		return nil, ErrResultNotFound
	}
	info, err := service.results.Stat(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("failed to stat result %s: %w", name, err)
	}
	return &ResultFile{Name: name, Path: path, Size: info.Size()}, nil
}

// Ready reports whether the result index is reachable
func (service *CoreService) Ready() bool {
	return service.databaseService.DoesDatabaseExist()
}

// Close releases the result index
func (service *CoreService) Close() error {
	return service.databaseService.Close()
}

func mimeTypeForExtension(ext string) string {
	switch ext {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "tif", "tiff":
		return "image/tiff"
	default:
		return "image/" + ext
	}
}

// sizeInKB rounds to one decimal place
func sizeInKB(size int64) float64 {
	return math.Round(float64(size)/1024*10) / 10
}
