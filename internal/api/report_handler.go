package api

import (
	"bytes"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/yakoovad/council-tenders/internal/model"
	"github.com/yakoovad/council-tenders/pkg/logger"
	"go.uber.org/zap"
)

const csvContentType = "text/csv; charset=utf-8"

func (h *Handler) ListNotifications(e echo.Context) error {
	p, err := parsePage(e)
	if err != nil {
		return h.transportError(e, err)
	}

	notifications, err := h.notifications.ListForRecipient(e.Request().Context(), actor(e), p.Limit, p.Offset)
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, notifications)
}

func (h *Handler) BidAnalytics(e echo.Context) error {
	res, err := h.reports.BidAnalytics(e.Request().Context(), actor(e))
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, res)
}

// ExportBids buffers the CSV so a failed export still gets a JSON error response.
func (h *Handler) ExportBids(e echo.Context) error {
	var buf bytes.Buffer
	if err := h.reports.ExportBids(e.Request().Context(), actor(e), &buf); err != nil {
		return h.transportError(e, err)
	}

	e.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="bids.csv"`)
	return e.Blob(http.StatusOK, csvContentType, buf.Bytes())
}

func (h *Handler) ExportProjects(e echo.Context) error {
	var buf bytes.Buffer
	if err := h.reports.ExportProjects(e.Request().Context(), actor(e), &buf); err != nil {
		return h.transportError(e, err)
	}

	e.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="projects.csv"`)
	return e.Blob(http.StatusOK, csvContentType, buf.Bytes())
}

func (h *Handler) Dashboard(e echo.Context) error {
	res, err := h.reports.Dashboard(e.Request().Context(), actor(e))
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, res)
}

func (h *Handler) ListActivity(e echo.Context) error {
	p, err := parsePage(e)
	if err != nil {
		return h.transportError(e, err)
	}

	entries, err := h.activity.ListMine(e.Request().Context(), actor(e), p.Limit, p.Offset)
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, entries)
}

func (h *Handler) CreateReport(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req model.ReportDraft
	if err := decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	report, err := h.reports.CreateReport(e.Request().Context(), actor(e), req)
	if err != nil {
		l.Error("failed to create report", zap.String("title", req.Title), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusCreated, report)
}

func (h *Handler) GenerateReport(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	var req model.ReportRequest
	if err := decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	l.Info("generating report", zap.String("project_id", req.ProjectID), zap.String("report_type", string(req.Type)))

	report, err := h.reports.GenerateReport(e.Request().Context(), actor(e), req)
	if err != nil {
		l.Error("failed to generate report", zap.String("project_id", req.ProjectID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusCreated, report)
}

func (h *Handler) ListReports(e echo.Context) error {
	p, err := parsePage(e)
	if err != nil {
		return h.transportError(e, err)
	}

	reports, err := h.reports.ListReports(e.Request().Context(), actor(e), p.Limit, p.Offset)
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, reports)
}

func (h *Handler) GetReport(e echo.Context) error {
	reportID, err := pathID(e, "id")
	if err != nil {
		return h.transportError(e, err)
	}

	report, err := h.reports.GetReport(e.Request().Context(), actor(e), reportID)
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, report)
}

func (h *Handler) UpdateReport(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	reportID, err := pathID(e, "id")
	if err != nil {
		return h.transportError(e, err)
	}

	var req model.ReportPatch
	if err = decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	report, err := h.reports.UpdateReport(e.Request().Context(), actor(e), reportID, req)
	if err != nil {
		l.Error("failed to update report", zap.String("report_id", reportID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, report)
}

func (h *Handler) DeleteReport(e echo.Context) error {
	reportID, err := pathID(e, "id")
	if err != nil {
		return h.transportError(e, err)
	}

	if err = h.reports.DeleteReport(e.Request().Context(), actor(e), reportID); err != nil {
		return h.transportError(e, err)
	}

	return e.NoContent(http.StatusNoContent)
}
