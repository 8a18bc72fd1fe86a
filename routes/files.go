package routes

import (
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"claims-intake-platform/middleware"
	"claims-intake-platform/models"
	"claims-intake-platform/services"
	"claims-intake-platform/utils"

	"github.com/gin-gonic/gin"
)

// multipart parts above this size are spooled to disk by the form parser
const multipartMemory = 32 << 20

// SetupFileRoutes registers upload, listing, download and delete of claim documents
func SetupFileRoutes(router gin.IRouter, intake *services.IntakeService) {
	group := router.Group("/claims")
	{
		group.POST("/:claimId/files", handleUploadFiles(intake))
		group.GET("/:claimId/files", handleListClaimFiles(intake))
		group.GET("/by-object-id/:objectId/files", handleListByObjectID(intake))
		group.GET("/user/:userId/files", handleListUserFiles(intake))
		group.GET("/files/:fileId", handleGetFile(intake))
		group.DELETE("/files/:fileId", handleDeleteFile(intake))
	}
}

func handleUploadFiles(intake *services.IntakeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := c.MultipartForm()
		if err != nil {
			utils.RespondWithBadRequest(c, "Expected multipart form data", err.Error())
			return
		}
		defer form.RemoveAll()

		headers := form.File["files"]
		if len(headers) == 0 {
			utils.RespondWithBadRequest(c, "No files provided", nil)
			return
		}

		uploaderRef := c.PostForm("user_id")
		if uploaderRef == "" {
			uploaderRef = middleware.GetUserID(c)
		}

		ctx, cancel := utils.WithLongTimeout(c.Request.Context())
		defer cancel()

		report, err := intake.UploadFiles(ctx, c.Param("claimId"), uploaderRef, toUploads(headers))
		if err != nil {
			if report == nil {
				utils.RespondWithServiceError(c, err)
				return
			}
			// Stored blobs stay addressable by id; the caller gets both.
			status, code := http.StatusInternalServerError, "attach_failed"
			if ctx.Err() != nil {
				status, code = http.StatusGatewayTimeout, "timeout"
			}
			utils.RespondWithError(c, status, code, err.Error(), report)
			return
		}

		status := http.StatusCreated
		if len(report.FileIDs) < len(report.Results) {
			status = http.StatusMultiStatus
		}
		c.JSON(status, report)
	}
}

func toUploads(headers []*multipart.FileHeader) []services.FileUpload {
	uploads := make([]services.FileUpload, 0, len(headers))
	for _, fh := range headers {
		fh := fh
		uploads = append(uploads, services.FileUpload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}
	return uploads
}

func handleListClaimFiles(intake *services.IntakeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		files, err := intake.ListClaimFiles(ctx, c.Param("claimId"))
		respondWithFiles(c, files, err)
	}
}

func handleListByObjectID(intake *services.IntakeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		files, err := intake.ListByObjectID(ctx, c.Param("objectId"))
		respondWithFiles(c, files, err)
	}
}

func handleListUserFiles(intake *services.IntakeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		files, err := intake.ListUserFiles(ctx, c.Param("userId"))
		respondWithFiles(c, files, err)
	}
}

func respondWithFiles(c *gin.Context, files []models.FileInfo, err error) {
	if err != nil {
		utils.RespondWithServiceError(c, err)
		return
	}
	if files == nil {
		files = []models.FileInfo{}
	}
	c.JSON(http.StatusOK, models.FileListResponse{Files: files, Total: len(files)})
}

// handleGetFile returns metadata, or the content itself with ?download=true
func handleGetFile(intake *services.IntakeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		download, _ := strconv.ParseBool(c.DefaultQuery("download", "false"))

		ctx, cancel := utils.WithLongTimeout(c.Request.Context())
		defer cancel()

		if !download {
			info, err := intake.StatFile(ctx, c.Param("fileId"))
			if err != nil {
				utils.RespondWithServiceError(c, err)
				return
			}
			c.JSON(http.StatusOK, info)
			return
		}

		blob, err := intake.GetFile(ctx, c.Param("fileId"))
		if err != nil {
			utils.RespondWithServiceError(c, err)
			return
		}

		contentType := blob.Info.ContentType
		if contentType == "" {
			contentType = models.DefaultContentType
		}
		c.Header("Content-Disposition", attachmentDisposition(blob.Info.Filename))
		c.Header("X-Checksum", blob.Info.Checksum)
		c.Data(http.StatusOK, contentType, blob.Content)
	}
}

func handleDeleteFile(intake *services.IntakeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		deleted, err := intake.DeleteFile(ctx, c.Param("fileId"))
		if err != nil {
			utils.RespondWithServiceError(c, err)
			return
		}
		if !deleted {
			utils.RespondWithNotFound(c, "File not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"detail": "File deleted successfully"})
	}
}

func attachmentDisposition(filename string) string {
	if filename == "" {
		return "attachment"
	}
	return mime.FormatMediaType("attachment", map[string]string{"filename": filename})
}
