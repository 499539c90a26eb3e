package delivery

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	authdelivery "inboxpilot-backend/internal/auth/delivery"
	"inboxpilot-backend/internal/classification/domain"
	classdto "inboxpilot-backend/internal/classification/dto"
	"inboxpilot-backend/internal/classification/usecase"
	"inboxpilot-backend/internal/mailbox"
	"inboxpilot-backend/internal/notification"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxPushBody = 64 << 10

type ClassificationHandler struct {
	usecase    usecase.ClassificationUsecase
	dispatcher *notification.Dispatcher
}

func NewClassificationHandler(uc usecase.ClassificationUsecase, dispatcher *notification.Dispatcher) *ClassificationHandler {
	return &ClassificationHandler{
		usecase:    uc,
		dispatcher: dispatcher,
	}
}

func (h *ClassificationHandler) ProcessLatest(c *gin.Context) {
	acc, ok := authdelivery.CurrentAccount(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	report, err := h.usecase.ProcessLatest(c.Request.Context(), acc.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Notification is the Pub/Sub push endpoint. It answers 500 only when the
// pass could not be committed so Pub/Sub retries.
func (h *ClassificationHandler) Notification(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPushBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read body"})
		return
	}

	n, err := notification.DecodePushEnvelope(body)
	if err != nil {
		logrus.Warnf("[PubSub] Rejected push: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.dispatcher.Dispatch(c.Request.Context(), n); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *ClassificationHandler) Watch(c *gin.Context) {
	acc, ok := authdelivery.CurrentAccount(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	historyID, err := h.usecase.Watch(c.Request.Context(), acc.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, classdto.WatchResponse{Message: "Watch started", HistoryID: historyID})
}

func (h *ClassificationHandler) StopWatch(c *gin.Context) {
	acc, ok := authdelivery.CurrentAccount(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.usecase.StopWatch(c.Request.Context(), acc.ID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Watch stopped"})
}

func (h *ClassificationHandler) GetBuckets(c *gin.Context) {
	acc, ok := authdelivery.CurrentAccount(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	buckets, err := h.usecase.GetBuckets(acc.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, classdto.BucketsResponse{Buckets: buckets, ProcessedEmails: acc.ProcessedEmails})
}

func (h *ClassificationHandler) ReadAll(c *gin.Context) {
	acc, ok := authdelivery.CurrentAccount(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req classdto.ReadAllRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	kind, err := domain.ParseBucketKind(req.Type)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid type"})
		return
	}

	cleared, err := h.usecase.ReadAll(c.Request.Context(), acc.ID, kind)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Emails cleared", "cleared": cleared})
}

func (h *ClassificationHandler) QuickRemove(c *gin.Context) {
	acc, ok := authdelivery.CurrentAccount(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req classdto.QuickRemoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	kind, err := domain.ParseBucketKind(req.Type)
	if err != nil || !quickRemovable(kind) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid type"})
		return
	}

	if err := h.usecase.QuickRemove(c.Request.Context(), acc.ID, kind, req.EmailID, req.GmailDraftID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Email removed"})
}

func (h *ClassificationHandler) CleanPromotions(c *gin.Context) {
	acc, ok := authdelivery.CurrentAccount(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	removed, err := h.usecase.SweepPromotions(c.Request.Context(), acc.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Promotions cleaned", "removed": removed})
}

func (h *ClassificationHandler) AnalyzeStyle(c *gin.Context) {
	acc, ok := authdelivery.CurrentAccount(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	profile, err := h.usecase.AnalyzeStyle(c.Request.Context(), acc.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, classdto.StyleResponse{Analysis: profile})
}

func (h *ClassificationHandler) GetStyleProfile(c *gin.Context) {
	acc, ok := authdelivery.CurrentAccount(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	profile, err := h.usecase.GetStyleProfile(acc.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, classdto.StyleResponse{Analysis: profile})
}

func (h *ClassificationHandler) Search(c *gin.Context) {
	acc, ok := authdelivery.CurrentAccount(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'q' is required"})
		return
	}
	limit := 20
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	hits, err := h.usecase.Search(c.Request.Context(), acc.ID, query, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, classdto.SearchResponse{Query: query, Results: hits, Total: len(hits)})
}

func (h *ClassificationHandler) ListSyncRuns(c *gin.Context) {
	acc, ok := authdelivery.CurrentAccount(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit := 20
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	runs, err := h.usecase.ListSyncRuns(acc.ID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, classdto.SyncRunsResponse{Runs: runs})
}

func quickRemovable(kind domain.BucketKind) bool {
	switch kind {
	case domain.BucketDrafts, domain.BucketInformation, domain.BucketPromotions:
		return true
	}
	return false
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrUnknownBucket):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid type"})
	case errors.Is(err, usecase.ErrNoSentMail):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, usecase.ErrNoPushTopic), errors.Is(err, mailbox.ErrPushUnsupported):
		c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
