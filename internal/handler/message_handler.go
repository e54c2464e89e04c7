package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/chatman/internal/hub"
	"github.com/hitoshi/chatman/internal/middleware"
	"github.com/hitoshi/chatman/internal/model"
)

// MessageServiceInterface はメッセージハンドラーが必要とするサービスインターフェース。
type MessageServiceInterface interface {
	// PostMessage はメッセージを検証・サニタイズして永続化する。
	PostMessage(ctx context.Context, email, text string) (*model.Message, error)
	// ListMessages は全メッセージを作成時刻昇順で返す。
	ListMessages(ctx context.Context) ([]model.Message, error)
}

// UserEmailFinder は投稿者メールアドレスの解決に必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserEmailFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// MessageHandler はチャットメッセージのHTTPハンドラー。
type MessageHandler struct {
	service MessageServiceInterface
	users   UserEmailFinder
}

// NewMessageHandler はMessageHandlerを生成する。
func NewMessageHandler(service MessageServiceInterface, users UserEmailFinder) *MessageHandler {
	return &MessageHandler{
		service: service,
		users:   users,
	}
}

// postMessageRequest はメッセージ投稿リクエストのボディ。
type postMessageRequest struct {
	Text string `json:"text"`
}

// ListMessages は全メッセージ履歴を作成時刻昇順の配列で返す。
// ライブ購読前の履歴フェッチ用で、スナップショットと異なり上限を持たない。
// GET /api/messages
func (h *MessageHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.service.ListMessages(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	payload := make([]hub.MessageJSON, 0, len(messages))
	for _, m := range messages {
		payload = append(payload, hub.NewMessageJSON(m))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

// PostMessage はメッセージ投稿を処理する。
// 投稿者のメールアドレスはセッションのユーザーから解決する。
// POST /api/messages
func (h *MessageHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedError(w)
		return
	}

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestError(w)
		return
	}

	user, err := h.users.FindByID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if user == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError())
		return
	}

	message, err := h.service.PostMessage(r.Context(), user.Email, req.Text)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(hub.NewMessageJSON(*message))
}
