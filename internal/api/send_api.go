package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"
	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"

	"github.com/tinywideclouds/go-fcm-notification/pkg/dispatch"
	"github.com/tinywideclouds/go-fcm-notification/pkg/notification"
)

const (
	maxRequestBody      = 64 << 10
	defaultReceiptLimit = 20
	maxReceiptLimit     = 200
)

type SendAPI struct {
	Sender   dispatch.Sender
	Receipts dispatch.ReceiptStore // optional
	Logger   *slog.Logger
}

func NewSendAPI(sender dispatch.Sender, receipts dispatch.ReceiptStore, logger *slog.Logger) *SendAPI {
	return &SendAPI{
		Sender:   sender,
		Receipts: receipts,
		Logger:   logger,
	}
}

// Send handles POST /api/v1/send.
//
// A provider rejection is answered with the provider's own status and body.
// Token or network failures become 502.
func (api *SendAPI) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok || userID == "" {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	callerURN, err := urn.Parse(userID)
	if err != nil {
		response.WriteJSONError(w, http.StatusUnauthorized, "invalid caller identity")
		return
	}
	logger := api.Logger.With("caller", callerURN)
	if handle, ok := middleware.GetUserHandleFromContext(ctx); ok {
		logger = logger.With("handle", handle)
	}

	var payload notification.NotificationPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&payload); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(payload.Token) == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing token")
		return
	}

	ack, err := api.Sender.Send(ctx, payload)
	if err != nil {
		var notifErr *notification.NotificationError
		if errors.As(err, &notifErr) {
			logger.Warn("Send: provider rejected notification", "status", notifErr.Status)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(notifErr.Status)
			_, _ = w.Write(notifErr.Body)
			return
		}
		logger.Error("Send: delivery failed", "err", err)
		response.WriteJSONError(w, http.StatusBadGateway, "upstream failure")
		return
	}

	logger.Info("Send: notification accepted", "message_id", ack.MessageID)
	writeJSON(w, http.StatusOK, ack)
}

// ListReceipts handles GET /api/v1/receipts?limit=n.
func (api *SendAPI) ListReceipts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if userID, ok := middleware.GetUserIDFromContext(ctx); !ok || userID == "" {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if api.Receipts == nil {
		response.WriteJSONError(w, http.StatusNotFound, "receipts are not enabled")
		return
	}

	limit := defaultReceiptLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.WriteJSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxReceiptLimit)
	}

	receipts, err := api.Receipts.Recent(ctx, limit)
	if err != nil {
		api.Logger.Error("failed to list receipts", "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
