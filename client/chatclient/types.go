package chatclient

import "time"

// Identity は認証済みユーザーのプロフィールを表す。
// Email等の任意フィールドは空文字列をゼロ値とする。アイデンティティ
// 自体の有無は*Identityのnil判定で表現し、真偽値的な解釈には頼らない。
type Identity struct {
	UID           string
	Email         string
	DisplayName   string
	PhotoURL      string
	EmailVerified bool
}

// SessionState はセッションストアが保持する状態のスナップショット。
// 不変条件: Authenticated == (User != nil)。
type SessionState struct {
	User          *Identity
	Loading       bool
	Err           error
	Authenticated bool
}

// EmailVerified はメール確認済みかどうかを返す。
// Userがnilの場合は常にfalse。
func (s SessionState) EmailVerified() bool {
	return s.User != nil && s.User.EmailVerified
}

// Timestamp はサーバーが割り当てる論理タイムスタンプ。
// 秒とナノ秒に分解したシリアライズ形式をそのまま保持する。
type Timestamp struct {
	Seconds int64
	Nanos   int32
}

// Time はTimestampをtime.Timeへ変換する。
func (t Timestamp) Time() time.Time {
	return time.Unix(t.Seconds, int64(t.Nanos))
}

// TimestampOf はtime.TimeからTimestampを生成する。
func TimestampOf(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanos: int32(t.Nanosecond())}
}

// Before はtがotherより前かどうかを返す。
func (t Timestamp) Before(other Timestamp) bool {
	if t.Seconds != other.Seconds {
		return t.Seconds < other.Seconds
	}
	return t.Nanos < other.Nanos
}

// Message はチャットメッセージを表す。
// IDとCreatedAtはバックエンドが割り当てる。CreatedAtがnilの場合は
// サーバーエコー前の楽観的書き込みであり、ソート上は末尾（現在時刻）
// として扱われる。作成後に変更されることはない。
type Message struct {
	ID        string
	Email     string
	Text      string
	CreatedAt *Timestamp
}

// FeedStatus はメッセージフィードの取得状態を表す。
type FeedStatus string

const (
	// FeedStatusIdle は初期状態。
	FeedStatusIdle FeedStatus = "idle"
	// FeedStatusLoading は履歴フェッチ実行中。
	FeedStatusLoading FeedStatus = "loading"
	// FeedStatusSucceeded はフェッチまたは購読による取得成功後。
	FeedStatusSucceeded FeedStatus = "succeeded"
	// FeedStatusFailed はフェッチ失敗または購読エラー後。
	FeedStatusFailed FeedStatus = "failed"
)

// FeedState はメッセージストアが保持する状態のスナップショット。
// MessagesはID重複なし・作成時刻昇順を維持する。
type FeedState struct {
	Messages []Message
	Status   FeedStatus
	Err      error
}
