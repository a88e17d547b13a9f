package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/yakoovad/council-tenders/internal/model"
	"github.com/yakoovad/council-tenders/pkg/logger"
	"go.uber.org/zap"
)

type teamStatusRequest struct {
	Status model.TeamStatus `json:"status" validate:"required,oneof=forming active completed disbanded"`
}

func (h *Handler) CreateTeam(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req model.TeamDraft
	if err := decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	l.Info("creating team", zap.String("project_id", req.ProjectID), zap.String("team_name", req.Name))

	team, err := h.teams.CreateTeam(e.Request().Context(), actor(e), req)
	if err != nil {
		l.Error("failed to create team", zap.String("project_id", req.ProjectID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusCreated, team)
}

func (h *Handler) GetTeam(e echo.Context) error {
	teamID, err := pathID(e, "id")
	if err != nil {
		return h.transportError(e, err)
	}

	team, err := h.teams.GetTeam(e.Request().Context(), actor(e), teamID)
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, team)
}

func (h *Handler) ListMyTeams(e echo.Context) error {
	teams, err := h.teams.ListMine(e.Request().Context(), actor(e))
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, teams)
}

func (h *Handler) AddTeamMember(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	teamID, err := pathID(e, "id")
	if err != nil {
		return h.transportError(e, err)
	}

	var req model.TeamMember
	if err = decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	l.Info("adding team member",
		zap.String("team_id", teamID),
		zap.String("contractor_id", req.ContractorID),
		zap.String("role", string(req.Role)))

	team, err := h.teams.AddMember(e.Request().Context(), actor(e), teamID, req)
	if err != nil {
		l.Error("failed to add team member",
			zap.String("team_id", teamID),
			zap.String("contractor_id", req.ContractorID),
			zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, team)
}

func (h *Handler) RemoveTeamMember(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	teamID, err := pathID(e, "id")
	if err != nil {
		return h.transportError(e, err)
	}
	contractorID := e.Param("contractorId")

	l.Info("removing team member", zap.String("team_id", teamID), zap.String("contractor_id", contractorID))

	if err = h.teams.RemoveMember(e.Request().Context(), actor(e), teamID, contractorID); err != nil {
		l.Error("failed to remove team member",
			zap.String("team_id", teamID),
			zap.String("contractor_id", contractorID),
			zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.NoContent(http.StatusNoContent)
}

func (h *Handler) SetTeamStatus(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	teamID, err := pathID(e, "id")
	if err != nil {
		return h.transportError(e, err)
	}

	var req teamStatusRequest
	if err = decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	l.Info("setting team status", zap.String("team_id", teamID), zap.String("status", string(req.Status)))

	team, err := h.teams.SetStatus(e.Request().Context(), actor(e), teamID, req.Status)
	if err != nil {
		l.Error("failed to set team status", zap.String("team_id", teamID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, team)
}
