// Package chatclient はチャットバックエンドに対するクライアント側の
// 状態同期コアを提供する。
//
// 構成要素は2つ。
//
// Coordinator は認証状態マシンである。アイデンティティプロバイダーの
// アンビエントイベントストリームを購読し、サインアップ・サインイン・
// サインアウト等の明示的な操作とイベントをSessionStateへ収束させる。
// アンビエントイベントが常に真実のソースであり、明示的操作の結果と
// 競合した場合は到着順で後勝ちとなる。
//
// Synchronizer はライブメッセージフィードの調整層である。1回限りの
// 履歴フェッチ、全量スナップショット型の購読ストリーム、ローカルの
// 楽観的送信の3系統を、ID重複なし・作成時刻昇順の単一リストへ
// マージする。
//
// どちらもstore.Storeを通じて状態を公開する。ビュー層は購読者の
// 1つに過ぎず、本パッケージはUIについて一切関知しない。
package chatclient
