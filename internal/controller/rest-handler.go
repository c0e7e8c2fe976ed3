package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sharetube/watchparty/internal/domain"
	"github.com/sharetube/watchparty/internal/service/room"
)

func (c controller) createRoom(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateRoomRequest
	if !c.readRequest(w, r, &req) {
		return
	}

	resp, err := c.roomService.CreateRoom(r.Context(), &room.CreateRoomParams{
		HostName:    req.HostName,
		MediaID:     req.MediaID,
		MediaType:   req.MediaType,
		ServerIndex: *req.ServerIndex,
		Season:      req.Season,
		Episode:     req.Episode,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeData(w, r, http.StatusCreated, resp)
}

func (c controller) joinRoom(w http.ResponseWriter, r *http.Request) {
	var req domain.JoinRoomRequest
	if !c.readRequest(w, r, &req) {
		return
	}

	resp, err := c.roomService.JoinRoom(r.Context(), &room.JoinRoomParams{
		RoomCode:   req.RoomCode,
		MemberName: req.MemberName,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeData(w, r, http.StatusOK, resp)
}

func (c controller) getRoom(w http.ResponseWriter, r *http.Request) {
	resp, err := c.roomService.GetRoom(r.Context(), chi.URLParam(r, "room-code"))
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeData(w, r, http.StatusOK, resp)
}

func (c controller) leaveRoom(w http.ResponseWriter, r *http.Request) {
	var req domain.LeaveRoomRequest
	if !c.readRequest(w, r, &req) {
		return
	}

	resp, err := c.roomService.LeaveRoom(r.Context(), &room.LeaveRoomParams{
		RoomId:   chi.URLParam(r, "room-id"),
		MemberId: req.MemberID,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeData(w, r, http.StatusOK, resp)
}

func (c controller) syncEvent(w http.ResponseWriter, r *http.Request) {
	var req domain.SyncEventRequest
	if !c.readRequest(w, r, &req) {
		return
	}

	resp, err := c.roomService.SyncEvent(r.Context(), &room.SyncEventParams{
		RoomId:    chi.URLParam(r, "room-id"),
		MemberId:  req.MemberID,
		EventType: req.EventType,
		EventData: req.EventData,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeData(w, r, http.StatusCreated, resp)
}

func (c controller) listMembers(w http.ResponseWriter, r *http.Request) {
	members, err := c.roomService.ListMembers(r.Context(), chi.URLParam(r, "room-id"))
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeData(w, r, http.StatusOK, members)
}
