package controllers

import (
	"errors"
	"math"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/archivehub/archivehub/internal/domain"
	"github.com/archivehub/archivehub/internal/metrics"
)

// StatusClientClosedRequest mirrors nginx's non-standard code for requests
// aborted by the client.
const StatusClientClosedRequest = 499

// ArchiveController exposes the archive operations behind a single endpoint
// dispatched by an `action` parameter carried in the query string or the
// request body.
type ArchiveController struct {
	archiveService domain.ArchiveService
	metrics        *metrics.ArchiveMetrics
}

type ArchiveControllerDependencies struct {
	ArchiveService domain.ArchiveService
	Metrics        *metrics.ArchiveMetrics
}

func NewArchiveController(deps ArchiveControllerDependencies) *ArchiveController {
	return &ArchiveController{
		archiveService: deps.ArchiveService,
		metrics:        deps.Metrics,
	}
}

func (c *ArchiveController) Dispatch(ctx fiber.Ctx) error {
	action := param(ctx, "action")

	handlers := map[string]func(fiber.Ctx) error{
		"upload":                  c.Upload,
		"create_directory":        c.CreateDirectory,
		"list":                    c.List,
		"get_all_directories":     c.GetAllDirectories,
		"download":                c.Download,
		"move_file":               c.MoveFile,
		"copy_file":               c.CopyFile,
		"delete_file":             c.DeleteFile,
		"delete_directory":        c.DeleteDirectory,
		"bulk_delete_files":       c.BulkDeleteFiles,
		"bulk_delete_directories": c.BulkDeleteDirectories,
	}

	handler, ok := handlers[action]
	if !ok {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid action",
		})
	}

	started := time.Now()

	err := handler(ctx)

	if c.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		c.metrics.RecordOperation(action, status, time.Since(started).Seconds())
	}

	if err != nil {
		return c.sendError(ctx, action, err)
	}

	return nil
}

func (c *ArchiveController) Upload(ctx fiber.Ctx) error {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No file uploaded",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to read uploaded file",
		})
	}
	defer file.Close()

	record, err := c.archiveService.Upload(ctx.RequestCtx(), domain.UploadParams{
		OwnerID:       ctx.FormValue("owner_id"),
		OwnerName:     ctx.FormValue("owner_name"),
		DirectoryPath: ctx.FormValue("directory_path"),
		FileName:      fileHeader.Filename,
		ContentType:   fileHeader.Header.Get(fiber.HeaderContentType),
		Size:          fileHeader.Size,
		Content:       file,
	})
	if err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{
		"success": true,
		"file":    record,
	})
}

func (c *ArchiveController) CreateDirectory(ctx fiber.Ctx) error {
	var req struct {
		OwnerID    string `json:"owner_id" form:"owner_id"`
		OwnerName  string `json:"owner_name" form:"owner_name"`
		Name       string `json:"name" form:"name"`
		ParentPath string `json:"parent_path" form:"parent_path"`
	}

	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	record, err := c.archiveService.CreateDirectory(ctx.RequestCtx(), domain.CreateDirectoryParams{
		OwnerID:    req.OwnerID,
		OwnerName:  req.OwnerName,
		Name:       req.Name,
		ParentPath: req.ParentPath,
	})
	if err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{
		"success":   true,
		"directory": record,
	})
}

func (c *ArchiveController) List(ctx fiber.Ctx) error {
	result, err := c.archiveService.List(ctx.RequestCtx(), domain.ListParams{
		OwnerID:          param(ctx, "owner_id"),
		OwnerName:        param(ctx, "owner_name"),
		Path:             param(ctx, "path"),
		RequestedOwnerID: param(ctx, "requested_owner_id"),
	})
	if err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{
		"success":     true,
		"path":        result.Path,
		"directories": result.Directories,
		"files":       result.Files,
		"is_admin":    result.IsAdmin,
	})
}

func (c *ArchiveController) GetAllDirectories(ctx fiber.Ctx) error {
	entries, err := c.archiveService.GetAllDirectories(ctx.RequestCtx(), param(ctx, "owner_id"))
	if err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{
		"success":     true,
		"directories": entries,
	})
}

func (c *ArchiveController) Download(ctx fiber.Ctx) error {
	result, err := c.archiveService.Download(ctx.RequestCtx(), param(ctx, "id"))
	if err != nil {
		return err
	}

	record := result.Record

	ctx.Set(fiber.HeaderContentType, record.ContentType)
	ctx.Set(fiber.HeaderContentDisposition, `attachment; filename="`+record.DisplayName+`"`)

	// On 32-bit platforms int cannot hold every legal file size; stream
	// with unknown length rather than a truncated one.
	size := -1
	if record.ByteSize > 0 && record.ByteSize <= math.MaxInt {
		size = int(record.ByteSize)
	}

	return ctx.SendStream(result.Content, size)
}

func (c *ArchiveController) MoveFile(ctx fiber.Ctx) error {
	var req struct {
		OwnerID             string `json:"owner_id" form:"owner_id"`
		FileID              string `json:"file_id" form:"file_id"`
		TargetDirectoryPath string `json:"target_directory_path" form:"target_directory_path"`
	}

	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	record, err := c.archiveService.MoveFile(ctx.RequestCtx(), domain.MoveFileParams{
		ActingID:            req.OwnerID,
		FileID:              req.FileID,
		TargetDirectoryPath: req.TargetDirectoryPath,
	})
	if err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{
		"success": true,
		"file":    record,
	})
}

func (c *ArchiveController) CopyFile(ctx fiber.Ctx) error {
	var req struct {
		OwnerID             string `json:"owner_id" form:"owner_id"`
		FileID              string `json:"file_id" form:"file_id"`
		TargetDirectoryPath string `json:"target_directory_path" form:"target_directory_path"`
	}

	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	record, err := c.archiveService.CopyFile(ctx.RequestCtx(), domain.CopyFileParams{
		ActingID:            req.OwnerID,
		FileID:              req.FileID,
		TargetDirectoryPath: req.TargetDirectoryPath,
	})
	if err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{
		"success": true,
		"file":    record,
	})
}

func (c *ArchiveController) DeleteFile(ctx fiber.Ctx) error {
	if err := c.archiveService.DeleteFile(ctx.RequestCtx(), param(ctx, "owner_id"), param(ctx, "id")); err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{
		"success": true,
		"message": "File deleted successfully",
	})
}

func (c *ArchiveController) DeleteDirectory(ctx fiber.Ctx) error {
	if err := c.archiveService.DeleteDirectory(ctx.RequestCtx(), param(ctx, "owner_id"), param(ctx, "id")); err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{
		"success": true,
		"message": "Directory deleted successfully",
	})
}

func (c *ArchiveController) BulkDeleteFiles(ctx fiber.Ctx) error {
	var req struct {
		OwnerID string   `json:"owner_id" form:"owner_id"`
		FileIDs []string `json:"file_ids" form:"file_ids"`
	}

	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	result, err := c.archiveService.BulkDeleteFiles(ctx.RequestCtx(), domain.BulkDeleteParams{
		ActingID: req.OwnerID,
		IDs:      req.FileIDs,
	})
	if err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{
		"success": true,
		"deleted": result.Deleted,
		"total":   result.Total,
		"errors":  result.Errors,
	})
}

func (c *ArchiveController) BulkDeleteDirectories(ctx fiber.Ctx) error {
	var req struct {
		OwnerID      string   `json:"owner_id" form:"owner_id"`
		DirectoryIDs []string `json:"directory_ids" form:"directory_ids"`
	}

	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	result, err := c.archiveService.BulkDeleteDirectories(ctx.RequestCtx(), domain.BulkDeleteParams{
		ActingID: req.OwnerID,
		IDs:      req.DirectoryIDs,
	})
	if err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{
		"success": true,
		"deleted": result.Deleted,
		"total":   result.Total,
		"errors":  result.Errors,
	})
}

func (c *ArchiveController) sendError(ctx fiber.Ctx, action string, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return ctx.Status(fiberErr.Code).JSON(fiber.Map{
			"error": fiberErr.Message,
		})
	}

	status := fiber.StatusInternalServerError

	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrTargetExists),
		errors.Is(err, domain.ErrNotEmpty):
		status = fiber.StatusBadRequest
	case errors.Is(err, domain.ErrFileTooLarge):
		status = fiber.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrAccessDenied):
		status = fiber.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, domain.ErrClientDisconnected):
		status = StatusClientClosedRequest
	}

	if status == fiber.StatusInternalServerError {
		log.Error().Err(err).Str("action", action).Msg("Archive operation failed")
	}

	return ctx.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// param reads a request value from the query string first and the body form
// second, since clients send DELETE parameters either way.
func param(ctx fiber.Ctx, name string) string {
	if value := ctx.Query(name); value != "" {
		return value
	}
	return ctx.FormValue(name)
}
