package dto

import (
	"inboxpilot-backend/internal/classification/domain"
	"inboxpilot-backend/internal/classification/usecase"
)

type ReadAllRequest struct {
	Type string `json:"type" binding:"required"`
}

type QuickRemoveRequest struct {
	Type         string `json:"type" binding:"required"`
	EmailID      string `json:"emailId" binding:"required"`
	GmailDraftID string `json:"gmailDraftId"`
}

type BucketsResponse struct {
	Buckets         *domain.Buckets `json:"buckets"`
	ProcessedEmails int             `json:"processed_emails"`
}

type WatchResponse struct {
	Message   string `json:"message"`
	HistoryID uint64 `json:"historyId"`
}

type StyleResponse struct {
	Analysis string `json:"analysis"`
}

type SearchResponse struct {
	Query   string              `json:"query"`
	Results []usecase.SearchHit `json:"results"`
	Total   int                 `json:"total"`
}

type SyncRunsResponse struct {
	Runs []*domain.SyncRun `json:"runs"`
}
