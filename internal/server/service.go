package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/PaulBabatuyi/files-manager/internal/middleware"
	"github.com/PaulBabatuyi/files-manager/internal/models"
	"github.com/PaulBabatuyi/files-manager/internal/service"
)

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func newUserResponse(u *models.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email}
}

// writeError maps a service error onto its HTTP status. Internal causes are
// attached to the gin context for the request logger, never to the body.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch service.KindOf(err) {
	case service.KindUnauthorized:
		status = http.StatusUnauthorized
	case service.KindNotFound:
		status = http.StatusNotFound
	case service.KindBadRequest:
		status = http.StatusBadRequest
	default:
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: service.MessageOf(err)})
}

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.app.Status(c.Request.Context()))
}

func (s *Server) getStats(c *gin.Context) {
	stats, err := s.app.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) postUser(c *gin.Context) {
	email, password, err := bindRegister(c)
	if err != nil {
		writeError(c, err)
		return
	}

	user, err := s.users.Register(c.Request.Context(), email, password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newUserResponse(user))
}

func (s *Server) getConnect(c *gin.Context) {
	email, password, ok := c.Request.BasicAuth()
	if !ok {
		writeError(c, service.Unauthorized())
		return
	}

	token, err := s.users.Authenticate(c.Request.Context(), email, password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{Token: token})
}

func (s *Server) getDisconnect(c *gin.Context) {
	if err := s.users.Deauthenticate(c.Request.Context(), c.GetHeader(middleware.TokenHeader)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) getMe(c *gin.Context) {
	user, err := s.users.CurrentUser(c.Request.Context(), c.GetHeader(middleware.TokenHeader))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserResponse(user))
}

func (s *Server) postFile(c *gin.Context) {
	req, err := bindUpload(c)
	if err != nil {
		writeError(c, err)
		return
	}

	file, err := s.files.Upload(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, file)
}

func (s *Server) getFile(c *gin.Context) {
	file, err := s.files.GetFileForViewer(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, file)
}

func (s *Server) listFiles(c *gin.Context) {
	parentID := models.ParentID(c.DefaultQuery("parentId", models.RootParentID))

	// a malformed page falls back to the first one
	page, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil || page < 0 {
		page = 0
	}

	files, err := s.files.ListByParent(c.Request.Context(), middleware.UserID(c), parentID, page)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, files)
}

func (s *Server) putPublish(c *gin.Context) {
	s.setVisibility(c, true)
}

func (s *Server) putUnpublish(c *gin.Context) {
	s.setVisibility(c, false)
}

func (s *Server) setVisibility(c *gin.Context, visible bool) {
	file, err := s.files.PublishUnpublish(c.Request.Context(), c.Param("id"), middleware.UserID(c), visible)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, file)
}

func (s *Server) getFileData(c *gin.Context) {
	size := 0
	if raw := c.Query("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(c, service.BadRequest("Invalid size"))
			return
		}
		size = n
	}

	ctx := c.Request.Context()
	file, err := s.files.GetFileForViewer(ctx, c.Param("id"), middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	content, err := s.files.GetFileData(ctx, file, size)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, content.ContentType, content.Data)
}
