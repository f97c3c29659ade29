package handlers

import (
	"net/http"

	"github.com/pickemslab/bracket-engine/services"
)

type StageHandler struct {
	stageService services.StageService
	tournamentID int
}

func NewStageHandler(stageService services.StageService, tournamentID int) *StageHandler {
	return &StageHandler{stageService: stageService, tournamentID: tournamentID}
}

// CurrentStageHandler godoc
// @Summary Current tournament stage
// @Description Returns the current stage and its late-change penalty. Never fails: on a store error the pre-tournament default is served with degraded=true.
// @Tags stages
// @Produce json
// @Success 200 {object} services.StageInfo
// @Router /stage/current [get]
func (h *StageHandler) CurrentStageHandler(w http.ResponseWriter, r *http.Request) {
	info := h.stageService.CurrentStageInfo(r.Context(), h.tournamentID)
	if err := writeJSON(w, http.StatusOK, info, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
