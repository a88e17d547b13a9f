package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/yakoovad/council-tenders/internal/model"
	"github.com/yakoovad/council-tenders/pkg/logger"
	"go.uber.org/zap"
)

func (h *Handler) CreateProject(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req model.ProjectDraft
	if err := decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	l.Info("creating project", zap.String("title", req.Title))

	project, err := h.projects.CreateProject(e.Request().Context(), actor(e), req)
	if err != nil {
		l.Error("failed to create project", zap.String("title", req.Title), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusCreated, project)
}

func (h *Handler) UpdateProject(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	projectID, err := pathID(e, "id")
	if err != nil {
		return h.transportError(e, err)
	}

	var req model.ProjectPatch
	if err = decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	l.Info("updating project", zap.String("project_id", projectID))

	project, err := h.projects.UpdateProject(e.Request().Context(), actor(e), projectID, req)
	if err != nil {
		l.Error("failed to update project", zap.String("project_id", projectID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, project)
}

func (h *Handler) GetProject(e echo.Context) error {
	projectID, err := pathID(e, "id")
	if err != nil {
		return h.transportError(e, err)
	}

	project, err := h.projects.GetProject(e.Request().Context(), actor(e), projectID)
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, project)
}

func (h *Handler) ListPublicProjects(e echo.Context) error {
	p, err := parsePage(e)
	if err != nil {
		return h.transportError(e, err)
	}

	projects, err := h.projects.ListPublicProjects(e.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, projects)
}

func (h *Handler) ListMyProjects(e echo.Context) error {
	p, err := parsePage(e)
	if err != nil {
		return h.transportError(e, err)
	}

	projects, err := h.projects.ListMyProjects(e.Request().Context(), actor(e), p.Limit, p.Offset)
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, projects)
}

func (h *Handler) CreatePackage(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	projectID, err := pathID(e, "id")
	if err != nil {
		return h.transportError(e, err)
	}

	var req model.PackageDraft
	if err = decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	l.Info("creating package", zap.String("project_id", projectID), zap.String("title", req.Title))

	pkg, err := h.projects.CreatePackage(e.Request().Context(), actor(e), projectID, req)
	if err != nil {
		l.Error("failed to create package", zap.String("project_id", projectID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusCreated, pkg)
}

func (h *Handler) ListPackages(e echo.Context) error {
	projectID, err := pathID(e, "id")
	if err != nil {
		return h.transportError(e, err)
	}

	packages, err := h.projects.ListPackages(e.Request().Context(), actor(e), projectID)
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, packages)
}

func (h *Handler) GetPackage(e echo.Context) error {
	packageID, err := pathID(e, "id")
	if err != nil {
		return h.transportError(e, err)
	}

	pkg, err := h.projects.GetPackage(e.Request().Context(), packageID)
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, pkg)
}
