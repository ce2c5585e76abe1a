package api

import (
	"dm-chat/domain"
	"dm-chat/errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

func (s *Server) listPresence(c *gin.Context) {
	presences, err := s.presence.ListPresence()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, lo.Map(presences, func(p domain.Presence, _ int) PresenceResponse {
		return toPresenceResponse(p)
	}))
}

func (s *Server) getPresence(c *gin.Context) {
	presence, err := s.presence.GetPresence(domain.UserID(c.Param("id")))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toPresenceResponse(presence))
}

func (s *Server) upsertUser(c *gin.Context) {
	var body UpsertUserRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errors.ErrValidation, err))
		return
	}
	err := s.presence.UpsertUser(domain.UpsertUserCommand{ID: domain.UserID(c.Param("id")), Name: body.Name})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
