package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/yakoovad/council-tenders/internal/model"
	"github.com/yakoovad/council-tenders/pkg/logger"
	"go.uber.org/zap"
)

type reviewRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

type awardRequest struct {
	BidID string `json:"bid_id" validate:"required,uuid"`
}

func (h *Handler) SubmitBid(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	packageID, err := pathID(e, "id")
	if err != nil {
		return h.transportError(e, err)
	}

	var req model.BidProposal
	if err = decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	l.Info("submitting bid", zap.String("package_id", packageID), zap.Int64("price", req.Price))

	bid, err := h.bids.Submit(e.Request().Context(), actor(e), packageID, req)
	if err != nil {
		l.Error("failed to submit bid", zap.String("package_id", packageID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusCreated, bid)
}

func (h *Handler) ReviewBid(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	bidID, err := pathID(e, "id")
	if err != nil {
		return h.transportError(e, err)
	}

	var req reviewRequest
	if err = decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	l.Info("reviewing bid", zap.String("bid_id", bidID))

	bid, err := h.bids.Review(e.Request().Context(), actor(e), bidID, req.Notes)
	if err != nil {
		l.Error("failed to review bid", zap.String("bid_id", bidID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, bid)
}

func (h *Handler) WithdrawBid(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	bidID, err := pathID(e, "id")
	if err != nil {
		return h.transportError(e, err)
	}

	l.Info("withdrawing bid", zap.String("bid_id", bidID))

	bid, err := h.bids.Withdraw(e.Request().Context(), actor(e), bidID)
	if err != nil {
		l.Error("failed to withdraw bid", zap.String("bid_id", bidID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, bid)
}

func (h *Handler) UpdateBid(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	bidID, err := pathID(e, "id")
	if err != nil {
		return h.transportError(e, err)
	}

	var req model.BidProposal
	if err = decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	l.Info("updating bid", zap.String("bid_id", bidID))

	bid, err := h.bids.Update(e.Request().Context(), actor(e), bidID, req)
	if err != nil {
		l.Error("failed to update bid", zap.String("bid_id", bidID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, bid)
}

func (h *Handler) GetBid(e echo.Context) error {
	bidID, err := pathID(e, "id")
	if err != nil {
		return h.transportError(e, err)
	}

	bid, err := h.bids.Get(e.Request().Context(), actor(e), bidID)
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, bid)
}

func (h *Handler) ListMyBids(e echo.Context) error {
	filter, err := parseBidFilter(e)
	if err != nil {
		return h.transportError(e, err)
	}

	bids, err := h.bids.ListMine(e.Request().Context(), actor(e), filter)
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, bids)
}

func (h *Handler) ListPackageBids(e echo.Context) error {
	packageID, err := pathID(e, "id")
	if err != nil {
		return h.transportError(e, err)
	}

	filter, err := parseBidFilter(e)
	if err != nil {
		return h.transportError(e, err)
	}

	bids, err := h.bids.ListForPackage(e.Request().Context(), actor(e), packageID, filter)
	if err != nil {
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, bids)
}

func (h *Handler) AwardPackage(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	packageID, err := pathID(e, "id")
	if err != nil {
		return h.transportError(e, err)
	}

	var req awardRequest
	if err = decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	l.Info("awarding package", zap.String("package_id", packageID), zap.String("bid_id", req.BidID))

	res, err := h.awards.Award(e.Request().Context(), actor(e), packageID, req.BidID)
	if err != nil {
		l.Error("failed to award package",
			zap.String("package_id", packageID),
			zap.String("bid_id", req.BidID),
			zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, res)
}

func (h *Handler) ClosePackage(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	packageID, err := pathID(e, "id")
	if err != nil {
		return h.transportError(e, err)
	}

	var req reviewRequest
	if err = decodeRequest(e, &req); err != nil {
		l.Error("invalid request", zap.Any("error", err))
		return h.transportError(e, err)
	}

	l.Info("closing package", zap.String("package_id", packageID))

	res, err := h.awards.Close(e.Request().Context(), actor(e), packageID, req.Notes)
	if err != nil {
		l.Error("failed to close package", zap.String("package_id", packageID), zap.Any("error", err))
		return h.transportError(e, err)
	}

	return e.JSON(http.StatusOK, res)
}
