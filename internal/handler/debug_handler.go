package handler

import "net/http"

// DebugHandler は開発時のみバインドされる診断ハンドラー。
type DebugHandler struct {
	service AuthServiceInterface
}

// NewDebugHandler はDebugHandlerを生成する。
func NewDebugHandler(service AuthServiceInterface) *DebugHandler {
	return &DebugHandler{service: service}
}

// Session は呼び出し元のトークンにセッション状態があるかを返す。
// GET /api/debug/session（--dev起動時のみ）
func (h *DebugHandler) Session(w http.ResponseWriter, r *http.Request) {
	resp := map[string]bool{
		"cookie_present": false,
		"authenticated":  false,
	}

	if cookie, err := r.Cookie(tokenCookieName); err == nil && cookie.Value != "" {
		resp["cookie_present"] = true
		resp["authenticated"] = h.service.HasSession(cookie.Value)
	}

	writeJSON(w, http.StatusOK, resp)
}
