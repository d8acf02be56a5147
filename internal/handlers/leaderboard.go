package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/agusmdev/burntop/internal/api"
)

var sortColumns = map[string]string{
	"tokens": "total_tokens",
	"cost":   "total_cost",
	"streak": "streak_days",
}

type leaderboardEntryResponse struct {
	UserID      string  `json:"userId"`
	Rank        int     `json:"rank"`
	TotalTokens int64   `json:"totalTokens"`
	TotalCost   string  `json:"totalCost"`
	StreakDays  int     `json:"streakDays"`
	RankChange  *int    `json:"rankChange"`
}

type leaderboardResponse struct {
	Period  string                      `json:"period"`
	SortBy  string                      `json:"sortBy"`
	Entries []leaderboardEntryResponse  `json:"entries"`
	Pagination pagination               `json:"pagination"`
}

type pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// LeaderboardHandler reads the leaderboard_cache table populated by C7.
// It does not recompute rankings itself — that is the scheduler's job.
type LeaderboardHandler struct {
	pool *pgxpool.Pool
}

func NewLeaderboardHandler(pool *pgxpool.Pool) *LeaderboardHandler {
	return &LeaderboardHandler{pool: pool}
}

func (h *LeaderboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "all"
	}
	if period != "all" && period != "month" && period != "week" {
		api.WriteErrorFromError(w, r, api.NewValidationError("period", "must be one of all, month, week"))
		return
	}

	sortBy := r.URL.Query().Get("sort_by")
	if sortBy == "" {
		sortBy = "tokens"
	}
	column, ok := sortColumns[sortBy]
	if !ok {
		api.WriteErrorFromError(w, r, api.NewValidationError("sort_by", "must be one of tokens, cost, streak"))
		return
	}

	limit, err := parseIntParam(r, "limit", 100, 1, 1000)
	if err != nil {
		api.WriteErrorFromError(w, r, err)
		return
	}
	offset, err := parseIntParam(r, "offset", 0, 0, 0)
	if err != nil {
		api.WriteErrorFromError(w, r, err)
		return
	}

	entries, total, err := h.query(r.Context(), period, column, limit, offset)
	if err != nil {
		api.WriteErrorFromError(w, r, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, leaderboardResponse{
		Period:  period,
		SortBy:  sortBy,
		Entries: entries,
		Pagination: pagination{
			Total:   total,
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(entries) < total,
		},
	})
}

func (h *LeaderboardHandler) query(ctx context.Context, period, column string, limit, offset int) ([]leaderboardEntryResponse, int, error) {
	var total int
	if err := h.pool.QueryRow(ctx, `SELECT count(*) FROM leaderboard_cache WHERE period = $1`, period).Scan(&total); err != nil {
		return nil, 0, api.NewDatabaseError("counting leaderboard entries", err)
	}

	rows, err := h.pool.Query(ctx,
		fmt.Sprintf(`SELECT user_id, rank, total_tokens, total_cost, streak_days, rank_change
		 FROM leaderboard_cache WHERE period = $1 ORDER BY %s DESC LIMIT $2 OFFSET $3`, column),
		period, limit, offset,
	)
	if err != nil {
		return nil, 0, api.NewDatabaseError("querying leaderboard", err)
	}
	defer rows.Close()

	var entries []leaderboardEntryResponse
	for rows.Next() {
		var (
			userID     uuid.UUID
			rank       int
			tokens     int64
			cost       decimal.Decimal
			streak     int
			rankChange *int
		)
		if err := rows.Scan(&userID, &rank, &tokens, &cost, &streak, &rankChange); err != nil {
			return nil, 0, api.NewDatabaseError("scanning leaderboard row", err)
		}
		entries = append(entries, leaderboardEntryResponse{
			UserID:      userID.String(),
			Rank:        rank,
			TotalTokens: tokens,
			TotalCost:   cost.String(),
			StreakDays:  streak,
			RankChange:  rankChange,
		})
	}
	return entries, total, rows.Err()
}

type debugTopEntry struct {
	UserID string `json:"userId"`
	Tokens int64  `json:"tokens"`
}

type debugStatsResponse struct {
	RecordCount     int             `json:"recordCount"`
	UniqueUsers     int             `json:"uniqueUsers"`
	CacheEntryCount int             `json:"cacheEntryCount"`
	TopUsers        []debugTopEntry `json:"topUsers"`
}

// Debug reports operational stats about the leaderboard's source data and
// cache for troubleshooting stale or missing rankings.
func (h *LeaderboardHandler) Debug(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var recordCount, uniqueUsers, cacheEntryCount int
	if err := h.pool.QueryRow(ctx, `SELECT count(*) FROM usage_records`).Scan(&recordCount); err != nil {
		api.WriteErrorFromError(w, r, api.NewDatabaseError("counting usage records", err))
		return
	}
	if err := h.pool.QueryRow(ctx, `SELECT count(distinct user_id) FROM usage_records`).Scan(&uniqueUsers); err != nil {
		api.WriteErrorFromError(w, r, api.NewDatabaseError("counting unique users", err))
		return
	}
	if err := h.pool.QueryRow(ctx, `SELECT count(*) FROM leaderboard_cache`).Scan(&cacheEntryCount); err != nil {
		api.WriteErrorFromError(w, r, api.NewDatabaseError("counting cache entries", err))
		return
	}

	rows, err := h.pool.Query(ctx,
		`SELECT user_id, sum(input_tokens + output_tokens + coalesce(cache_read_tokens,0) + coalesce(cache_write_tokens,0) + coalesce(reasoning_tokens,0)) AS tokens
		 FROM usage_records GROUP BY user_id ORDER BY tokens DESC LIMIT 10`,
	)
	if err != nil {
		api.WriteErrorFromError(w, r, api.NewDatabaseError("querying top users", err))
		return
	}
	defer rows.Close()

	var top []debugTopEntry
	for rows.Next() {
		var userID uuid.UUID
		var tokens int64
		if err := rows.Scan(&userID, &tokens); err != nil {
			api.WriteErrorFromError(w, r, api.NewDatabaseError("scanning top user", err))
			return
		}
		top = append(top, debugTopEntry{UserID: userID.String(), Tokens: tokens})
	}

	api.WriteJSON(w, http.StatusOK, debugStatsResponse{
		RecordCount:     recordCount,
		UniqueUsers:     uniqueUsers,
		CacheEntryCount: cacheEntryCount,
		TopUsers:        top,
	})
}

func parseIntParam(r *http.Request, name string, def, min, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, api.NewValidationError(name, "must be an integer")
	}
	if v < min {
		return 0, api.NewValidationError(name, fmt.Sprintf("must be >= %d", min))
	}
	if max > 0 && v > max {
		return 0, api.NewValidationError(name, fmt.Sprintf("must be <= %d", max))
	}
	return v, nil
}
