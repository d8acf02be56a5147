// Package handlers adapts the core components (C1-C10) to HTTP: request
// decoding, response shaping, and error mapping live here; the actual
// sync/leaderboard/insights logic stays in their own packages.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/agusmdev/burntop/internal/api"
	"github.com/agusmdev/burntop/internal/sync"
)

type syncMessageRequest struct {
	ID                  string    `json:"id"`
	Timestamp           time.Time `json:"timestamp"`
	Model               string    `json:"model"`
	InputTokens         int64     `json:"inputTokens"`
	OutputTokens        int64     `json:"outputTokens"`
	CacheReadTokens     int64     `json:"cacheReadTokens"`
	CacheCreationTokens int64     `json:"cacheCreationTokens"`
	ReasoningTokens     int64     `json:"reasoningTokens"`
}

type syncRequestBody struct {
	Version   string               `json:"version"`
	Client    string               `json:"client"`
	MachineID string               `json:"machineId"`
	SyncedAt  *time.Time           `json:"syncedAt"`
	Source    string               `json:"source"`
	Messages  []syncMessageRequest `json:"messages"`
}

// UnmarshalJSON accepts machineId or machine_id, and source/client in
// either camelCase or snake_case, per §6.
func (b *syncRequestBody) UnmarshalJSON(data []byte) error {
	type alias syncRequestBody
	aux := struct {
		MachineIDSnake string `json:"machine_id"`
		SyncedAtSnake  *time.Time `json:"synced_at"`
		*alias
	}{alias: (*alias)(b)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if b.MachineID == "" {
		b.MachineID = aux.MachineIDSnake
	}
	if b.SyncedAt == nil {
		b.SyncedAt = aux.SyncedAtSnake
	}
	return nil
}

type syncStats struct {
	TotalTokens          int64  `json:"totalTokens"`
	TotalCost            string `json:"totalCost"`
	CurrentStreak        int    `json:"currentStreak"`
	LongestStreak        int    `json:"longestStreak"`
	AchievementsUnlocked int    `json:"achievementsUnlocked"`
}

type syncResponse struct {
	Success          bool       `json:"success"`
	Message          *string    `json:"message"`
	MessagesReceived int        `json:"messagesReceived"`
	MessagesSynced   int        `json:"messagesSynced"`
	RecordsProcessed int        `json:"recordsProcessed"`
	NewRecords       int        `json:"newRecords"`
	UpdatedRecords   int        `json:"updatedRecords"`
	Stats            syncStats  `json:"stats"`
	NewAchievements  []struct{} `json:"newAchievements"`
}

// SyncHandler wraps a sync.Orchestrator for HTTP. UserID is resolved by
// the collaborator auth layer and attached to the request context; this
// handler reads it back rather than deciding identity itself.
type SyncHandler struct {
	Orchestrator *sync.Orchestrator
}

func NewSyncHandler(orchestrator *sync.Orchestrator) *SyncHandler {
	return &SyncHandler{Orchestrator: orchestrator}
}

func (h *SyncHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		api.WriteErrorFromError(w, r, api.NewUnauthorizedError("missing authenticated user"))
		return
	}

	var body syncRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteErrorFromError(w, r, api.NewBadRequestError("invalid request body: "+err.Error()))
		return
	}

	messages := make([]sync.Message, 0, len(body.Messages))
	for _, m := range body.Messages {
		messages = append(messages, sync.Message{
			ID:               m.ID,
			Timestamp:        m.Timestamp,
			Model:            m.Model,
			InputTokens:      m.InputTokens,
			OutputTokens:     m.OutputTokens,
			CacheReadTokens:  m.CacheReadTokens,
			CacheWriteTokens: m.CacheCreationTokens,
			ReasoningTokens:  m.ReasoningTokens,
		})
	}

	result, err := h.Orchestrator.Process(r.Context(), sync.Request{
		UserID:    userID,
		Source:    body.Source,
		MachineID: body.MachineID,
		Messages:  messages,
	})
	if err != nil {
		api.WriteErrorFromError(w, r, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, syncResponse{
		Success:          true,
		MessagesReceived: result.MessagesReceived,
		MessagesSynced:   result.MessagesSynced,
		RecordsProcessed: result.RecordsProcessed,
		NewRecords:       result.NewRecords,
		UpdatedRecords:   result.UpdatedRecords,
		Stats: syncStats{
			TotalTokens:   result.TotalTokens,
			TotalCost:     result.TotalCost.String(),
			CurrentStreak: result.CurrentStreak,
			LongestStreak: result.LongestStreak,
		},
		NewAchievements: []struct{}{},
	})
}

type userIDContextKey struct{}

// WithUserID attaches the authenticated caller's id to a request context.
// The auth middleware that populates this is a collaborator concern; this
// helper is the seam it plugs into.
func WithUserID(r *http.Request, id uuid.UUID) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), userIDContextKey{}, id))
}

// UserIDFromContext reads back the id WithUserID attached.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDContextKey{}).(uuid.UUID)
	return id, ok
}
