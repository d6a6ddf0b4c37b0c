package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/domain"
)

type response struct {
	Data    any    `json:"data"`
	Message string `json:"message"`
}

type createdRoom struct {
	Token    string `json:"token"`
	RoomName string `json:"roomName"`
}

type joinRequest struct {
	RoomName string `json:"roomName" binding:"required"`
}

type joinToken struct {
	Token string `json:"token"`
}

type RoomHandlers struct {
	Store *app.Store
}

func (h *RoomHandlers) Create(c *gin.Context) {
	room := domain.NewRoomName()
	token, err := h.Store.IssueCredential(room)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("issue credential")
		c.JSON(http.StatusInternalServerError, response{Data: nil, Message: "Failed to create room"})
		return
	}
	log.Info().Str("module", "adapters.http").Str("room", string(room)).Msg("room created")
	c.JSON(http.StatusOK, response{
		Data:    createdRoom{Token: token, RoomName: string(room)},
		Message: "Room created successfully",
	})
}

func (h *RoomHandlers) Join(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, response{Data: nil, Message: "Request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, response{Data: nil, Message: "roomName is required"})
		return
	}
	room := domain.RoomName(req.RoomName)
	if !h.Store.RoomExists(room) {
		c.JSON(http.StatusNotFound, response{Data: nil, Message: "Room not found"})
		return
	}
	token, err := h.Store.IssueCredential(room)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("room", string(room)).Msg("issue credential")
		c.JSON(http.StatusInternalServerError, response{Data: nil, Message: "Failed to join room"})
		return
	}
	c.JSON(http.StatusOK, response{Data: joinToken{Token: token}, Message: "Room joined successfully"})
}

func (h *RoomHandlers) List(c *gin.Context) {
	rooms := h.Store.Rooms()
	names := make([]string, 0, len(rooms))
	for _, r := range rooms {
		names = append(names, string(r))
	}
	c.JSON(http.StatusOK, response{Data: names, Message: "Rooms retrieved successfully"})
}
