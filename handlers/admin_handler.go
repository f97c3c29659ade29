package handlers

import (
	"errors"
	"net/http"

	"github.com/pickemslab/bracket-engine/models"
	"github.com/pickemslab/bracket-engine/services"
)

type AdminHandler struct {
	resolutionService services.ResolutionService
}

func NewAdminHandler(resolutionService services.ResolutionService) *AdminHandler {
	return &AdminHandler{resolutionService: resolutionService}
}

type resolveSlotRequest struct {
	WinnerTeamID int `json:"winner_team_id"`
}

// ResolveSlotHandler godoc
// @Summary Record a slot result
// @Description Records the winner of a knockout slot, eliminates the loser, unlocks dependent slots and scores committed predictions. A result for an already resolved slot is rejected or appended per the correction policy.
// @Tags admin
// @Accept json
// @Produce json
// @Param slotID path int true "Slot ID"
// @Param request body resolveSlotRequest true "Winner"
// @Success 200 {object} services.SlotResolution
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /admin/slots/{slotID}/resolve [post]
func (h *AdminHandler) ResolveSlotHandler(w http.ResponseWriter, r *http.Request) {
	slotID, err := getIDFromURL(r, "slotID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var req resolveSlotRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if req.WinnerTeamID < 1 {
		badRequestResponse(w, r, errors.New("winner_team_id must be a positive integer"))
		return
	}

	resolution, err := h.resolutionService.ResolveSlot(r.Context(), slotID, req.WinnerTeamID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, resolution, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type closeStageRequest struct {
	Stage models.StageName `json:"stage"`
}

// CloseStageHandler godoc
// @Summary Close a tournament stage
// @Description Locks every draft prediction on the closing stage's slots into committed history, charges late-change penalties and advances the tournament to the next stage. Omitting the stage closes whichever stage is current.
// @Tags admin
// @Accept json
// @Produce json
// @Param request body closeStageRequest false "Stage to close; empty body closes the current stage"
// @Success 200 {object} services.StageClosure
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /admin/stages/close [post]
func (h *AdminHandler) CloseStageHandler(w http.ResponseWriter, r *http.Request) {
	var req closeStageRequest
	if r.ContentLength > 0 {
		if err := readJSON(w, r, &req); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}

	var closure *services.StageClosure
	var err error
	if req.Stage == "" {
		closure, err = h.resolutionService.CloseCurrentStage(r.Context())
	} else {
		closure, err = h.resolutionService.CloseStage(r.Context(), req.Stage)
	}
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, closure, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
