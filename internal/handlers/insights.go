package handlers

import (
	"net/http"

	"github.com/agusmdev/burntop/internal/api"
	"github.com/agusmdev/burntop/internal/insights"
	"github.com/agusmdev/burntop/internal/leaderboard"
)

type insightsResponse struct {
	Period               string `json:"period"`
	TotalTokens          int64  `json:"totalTokens"`
	TotalCost            string `json:"totalCost"`
	CurrentStreak        int    `json:"currentStreak"`
	CacheEfficiency      string `json:"cacheEfficiency"`
	StreakPercentile     string `json:"streakPercentile"`
	TokensPercentile     string `json:"tokensPercentile"`
	CostPercentile       string `json:"costPercentile"`
	IsAboveAverageTokens bool   `json:"isAboveAverageTokens"`
	IsAboveAverageCost   bool   `json:"isAboveAverageCost"`
	IsAboveAverageStreak bool   `json:"isAboveAverageStreak"`
	CommunityTotalUsers  int64  `json:"communityTotalUsers"`
}

// InsightsHandler wraps insights.Assembler for HTTP.
type InsightsHandler struct {
	Assembler *insights.Assembler
}

func NewInsightsHandler(assembler *insights.Assembler) *InsightsHandler {
	return &InsightsHandler{Assembler: assembler}
}

func (h *InsightsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		api.WriteErrorFromError(w, r, api.NewUnauthorizedError("missing authenticated user"))
		return
	}

	period := r.URL.Query().Get("period")
	if period == "" {
		period = "all"
	}
	if period != "all" && period != "month" && period != "week" {
		api.WriteErrorFromError(w, r, api.NewValidationError("period", "must be one of all, month, week"))
		return
	}

	view, err := h.Assembler.Assemble(r.Context(), userID, leaderboard.Period(period))
	if err != nil {
		api.WriteErrorFromError(w, r, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, insightsResponse{
		Period:               period,
		TotalTokens:          view.TotalTokens,
		TotalCost:            view.TotalCost.String(),
		CurrentStreak:        view.CurrentStreak,
		CacheEfficiency:      view.CacheEfficiency.String(),
		StreakPercentile:     view.StreakPercentile.String(),
		TokensPercentile:     view.TokensPercentile.String(),
		CostPercentile:       view.CostPercentile.String(),
		IsAboveAverageTokens: view.IsAboveAverageTokens,
		IsAboveAverageCost:   view.IsAboveAverageCost,
		IsAboveAverageStreak: view.IsAboveAverageStreak,
		CommunityTotalUsers:  view.Benchmark.TotalUsers,
	})
}
