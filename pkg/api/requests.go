package api

// listSessionsQuery binds the query parameters of GET /api/v1/sessions.
type listSessionsQuery struct {
	UserID string `form:"user_id"`
	Status string `form:"status"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// searchSessionsQuery binds the query parameters of GET /api/v1/sessions/search.
type searchSessionsQuery struct {
	Q     string `form:"q" binding:"required"`
	Limit int    `form:"limit"`
}
