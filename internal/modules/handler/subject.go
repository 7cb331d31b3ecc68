package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tutorhub/tutorhub/internal/middleware"
	"github.com/tutorhub/tutorhub/internal/modules/serializer"
	"github.com/tutorhub/tutorhub/internal/modules/service"
)

type SubjectHandler struct {
	svc service.MaterialService
}

func NewSubjectHandler(s service.MaterialService) *SubjectHandler {
	return &SubjectHandler{svc: s}
}

type CreateSubjectReq struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// CreateSubject godoc
//
//	@Summary		Create a subject
//	@Tags			subject
//	@Accept			json
//	@Produce		json
//	@Param			request	body	CreateSubjectReq	true	"Subject"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.Subject}
//	@Router			/subjects [post]
func (h *SubjectHandler) CreateSubject(c *gin.Context) {
	req := CreateSubjectReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	out, err := h.svc.CreateSubject(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

// ListSubjects godoc
//
//	@Summary		List subjects
//	@Tags			subject
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=[]model.Subject}
//	@Router			/subjects [get]
func (h *SubjectHandler) ListSubjects(c *gin.Context) {
	items, err := h.svc.ListSubjects(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: items})
}

type CreateChapterReq struct {
	Title    string `json:"title" binding:"required"`
	Position int    `json:"position" binding:"min=0"`
}

// CreateChapter godoc
//
//	@Summary		Create a chapter
//	@Tags			subject
//	@Accept			json
//	@Produce		json
//	@Param			subject_id	path	string				true	"Subject id"
//	@Param			request		body	CreateChapterReq	true	"Chapter"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.Chapter}
//	@Router			/subjects/{subject_id}/chapters [post]
func (h *SubjectHandler) CreateChapter(c *gin.Context) {
	subjectID, err := uuid.Parse(c.Param("subject_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid subject id", err))
		return
	}

	req := CreateChapterReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	out, err := h.svc.CreateChapter(c.Request.Context(), subjectID, req.Title, req.Position)
	if err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

// ListChapters godoc
//
//	@Summary		List chapters of a subject
//	@Tags			subject
//	@Produce		json
//	@Param			subject_id	path	string	true	"Subject id"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=[]model.Chapter}
//	@Router			/subjects/{subject_id}/chapters [get]
func (h *SubjectHandler) ListChapters(c *gin.Context) {
	subjectID, err := uuid.Parse(c.Param("subject_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid subject id", err))
		return
	}

	items, err := h.svc.ListChapters(c.Request.Context(), subjectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: items})
}

// UploadMaterial godoc
//
//	@Summary		Upload a material
//	@Description	Upload a study document or video for a chapter. The file goes to object storage; its MIME type and size are detected server side.
//	@Tags			subject
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			chapter_id	path		string	true	"Chapter id"
//	@Param			title		formData	string	true	"Material title"
//	@Param			kind		formData	string	true	"Material kind"	Enums(document, video)
//	@Param			file		formData	file	true	"File to upload"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.Material}
//	@Router			/chapters/{chapter_id}/materials [post]
func (h *SubjectHandler) UploadMaterial(c *gin.Context) {
	chapterID, err := uuid.Parse(c.Param("chapter_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid chapter id", err))
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("file is required", err))
		return
	}

	id := middleware.CurrentIdentity(c)
	out, err := h.svc.Upload(c.Request.Context(), service.UploadMaterialInput{
		ChapterID:  chapterID,
		Title:      c.PostForm("title"),
		Kind:       c.PostForm("kind"),
		UploadedBy: id.ID,
		File:       fh,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

// ListMaterials godoc
//
//	@Summary		List materials of a chapter
//	@Tags			subject
//	@Produce		json
//	@Param			chapter_id	path	string	true	"Chapter id"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=[]model.Material}
//	@Router			/chapters/{chapter_id}/materials [get]
func (h *SubjectHandler) ListMaterials(c *gin.Context) {
	chapterID, err := uuid.Parse(c.Param("chapter_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid chapter id", err))
		return
	}

	items, err := h.svc.ListByChapter(c.Request.Context(), chapterID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: items})
}

// GetMaterial godoc
//
//	@Summary		Get a material
//	@Description	Returns the material with a presigned download URL and counts the view.
//	@Tags			subject
//	@Produce		json
//	@Param			material_id	path	string	true	"Material id"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=service.MaterialOutput}
//	@Router			/materials/{material_id} [get]
func (h *SubjectHandler) GetMaterial(c *gin.Context) {
	materialID, err := uuid.Parse(c.Param("material_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid material id", err))
		return
	}

	out, err := h.svc.Get(c.Request.Context(), materialID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, serializer.NotFoundErr("material not found", err))
			return
		}
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: out})
}
