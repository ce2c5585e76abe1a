package api

import (
	"dm-chat/auth"
	"dm-chat/domain"
	"dm-chat/errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

func (s *Server) sendMessage(c *gin.Context) {
	sender, _ := auth.UserIDFrom(c)
	var body SendMessageRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errors.ErrValidation, err))
		return
	}
	cmd := domain.SendMessageCommand{
		SenderID:   sender,
		ReceiverID: domain.UserID(body.ReceiverID),
		Body:       body.text(),
	}
	if body.ReplyTo != nil {
		cmd.ReplyTo = lo.ToPtr(domain.MessageID(*body.ReplyTo))
	}
	message, err := s.chat.Send(cmd)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Message sent successfully", "id": uint64(message.ID)})
}

func (s *Server) fetchConversation(c *gin.Context) {
	viewer, _ := auth.UserIDFrom(c)
	conversation, err := s.chat.FetchConversation(domain.FetchConversationCommand{
		ViewerID: viewer,
		OtherID:  domain.UserID(c.Param("otherId")),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, lo.Map(conversation, func(m domain.Message, _ int) MessageResponse {
		return toMessageResponse(m)
	}))
}

func (s *Server) markReadOne(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		s.fail(c, fmt.Errorf("%w: %q", errors.ErrInvalidID, c.Param("id")))
		return
	}
	s.markRead(c, []uint64{id})
}

func (s *Server) markReadBatch(c *gin.Context) {
	var body MarkReadRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errors.ErrValidation, err))
		return
	}
	s.markRead(c, body.MessageIDs)
}

func (s *Server) markRead(c *gin.Context, ids []uint64) {
	updated, err := s.chat.MarkRead(domain.MarkReadCommand{IDs: toMessageIDs(ids)})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Messages marked as read.", "updated": updated})
}
