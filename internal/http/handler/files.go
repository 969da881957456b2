package handler

import (
	"errors"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"catalogue/internal/service"
	"catalogue/internal/storage"
)

// param returns a path parameter with percent-encoding removed.
func param(c *fiber.Ctx, key string) (string, bool) {
	v, err := url.PathUnescape(c.Params(key))
	if err != nil || v == "" {
		return "", false
	}
	return v, true
}

// streamSize is the length passed to SendStream; -1 means unknown (chunked).
func streamSize(info storage.ObjectInfo) int {
	if info.Size > 0 {
		return int(info.Size)
	}
	return -1
}

// ListFiles godoc
// @Summary List the files of a category
// @Tags files
// @Produce json
// @Param category path string true "Category name"
// @Success 200 {array} model.FileEntry
// @Failure 404 {object} messageBody
// @Failure 500 {object} messageBody
// @Router /api/files/{category} [get]
func ListFiles(svc service.CatalogueService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		category, ok := param(c, "category")
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(messageBody{Message: "Category not found"})
		}

		entries, err := svc.ListCategory(c.UserContext(), category)
		if err != nil {
			if errors.Is(err, service.ErrCategoryNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(messageBody{Message: "Category not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(messageBody{Message: "Unable to read files"})
		}
		return c.JSON(entries)
	}
}

// DownloadFile godoc
// @Summary Download a file as an attachment
// @Tags files
// @Produce octet-stream
// @Param category path string true "Category name"
// @Param filename path string true "File name"
// @Success 200 {file} binary
// @Failure 404 {string} string "File not found"
// @Failure 500 {string} string "Error downloading file"
// @Router /download/{category}/{filename} [get]
func DownloadFile(svc service.CatalogueService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		category, okC := param(c, "category")
		filename, okF := param(c, "filename")
		if !okC || !okF {
			return c.Status(fiber.StatusNotFound).SendString("File not found")
		}

		rc, info, err := svc.OpenFile(c.UserContext(), category, filename)
		if err != nil {
			if errors.Is(err, service.ErrFileNotFound) {
				return c.Status(fiber.StatusNotFound).SendString("File not found")
			}
			return c.Status(fiber.StatusInternalServerError).SendString("Error downloading file")
		}

		c.Attachment(filename)
		// fasthttp closes rc once the body has been written or the client is gone.
		return c.SendStream(rc, streamSize(info))
	}
}

// ConvertDocx godoc
// @Summary Render a .docx file as HTML
// @Tags files
// @Produce html
// @Param category path string true "Category name"
// @Param filename path string true "File name"
// @Success 200 {string} string "HTML fragment"
// @Failure 404 {string} string "File not found"
// @Failure 500 {string} string "Error reading file"
// @Router /api/docx/{category}/{filename} [get]
func ConvertDocx(svc service.CatalogueService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		category, okC := param(c, "category")
		filename, okF := param(c, "filename")
		if !okC || !okF {
			return c.Status(fiber.StatusNotFound).SendString("File not found")
		}

		out, err := svc.ConvertDocx(c.UserContext(), category, filename)
		switch {
		case err == nil:
			return c.Type("html", "utf-8").SendString(out)
		case errors.Is(err, service.ErrFileNotFound):
			return c.Status(fiber.StatusNotFound).SendString("File not found")
		case errors.Is(err, service.ErrConversionFailed):
			return c.Status(fiber.StatusInternalServerError).SendString("Error processing docx file")
		default:
			return c.Status(fiber.StatusInternalServerError).SendString("Error reading file")
		}
	}
}

// ServeUpload serves /uploads/<category>/<filename> inline. Anything else under /uploads is 404.
func ServeUpload(svc service.CatalogueService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rest, err := url.PathUnescape(c.Params("*"))
		if err != nil {
			return fiber.ErrNotFound
		}
		category, filename, ok := strings.Cut(rest, "/")
		if !ok || category == "" || filename == "" || strings.Contains(filename, "/") {
			return fiber.ErrNotFound
		}

		rc, info, err := svc.OpenFile(c.UserContext(), category, filename)
		if err != nil {
			if errors.Is(err, service.ErrFileNotFound) {
				return fiber.ErrNotFound
			}
			return err
		}

		ct := info.ContentType
		if ct == "" || ct == "application/octet-stream" {
			ct = utils.GetMIME(filepath.Ext(filename))
		}
		c.Set(fiber.HeaderContentType, ct)
		return c.SendStream(rc, streamSize(info))
	}
}

// UploadFile godoc
// @Summary Upload a file into a category
// @Tags files
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param category path string true "Category name"
// @Param file formData file true "File to upload"
// @Success 201 {object} model.FileEntry
// @Failure 400 {object} errorPayload
// @Failure 401 {object} errorPayload
// @Failure 403 {object} errorPayload
// @Router /api/files/{category} [post]
func UploadFile(svc service.CatalogueService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		category, ok := param(c, "category")
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_CATEGORY", "invalid category")
		}

		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		entry, err := svc.Upload(c.UserContext(), category, f, fh.Filename, fh.Size)
		if err != nil {
			if errors.Is(err, service.ErrInvalidName) {
				return writeError(c, fiber.StatusBadRequest, "INVALID_CATEGORY", "invalid category")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.Status(fiber.StatusCreated).JSON(entry)
	}
}
