package model

import "time"

// Message はチャットメッセージを表す。
// IDとCreatedAtはサーバーが割り当てる。作成後に変更されることはなく、
// このシステムがメッセージを削除することもない。
type Message struct {
	ID        string
	Email     string // 投稿者のメールアドレス（UIでの表示用に非正規化）
	Text      string // サニタイズ済み本文
	CreatedAt time.Time
}

// MessageSnapshot はライブ購読が配信する全量スナップショット。
// 直近Limit件を作成時刻昇順に並べたリストを運ぶ。
type MessageSnapshot struct {
	Messages []Message
	Limit    int
}
