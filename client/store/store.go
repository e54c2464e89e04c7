// Package store は購読可能な状態コンテナを提供する。
//
// Store はgetState/subscribe型の明示的なオブザーバブルパターンを実装する。
// ビュー層は購読者の1つに過ぎず、状態の変更は必ずSet/Updateを通じた
// 値全体の置き換えとして適用される。部分的なフィールド編集は行わない。
package store

import "sync"

// Store は型Tの状態を保持し、変更を購読者へ通知する。
// すべての変更は排他制御下でのアトミックな値置き換えとして適用され、
// 通知は変更適用後にロック外で同期的に実行される。
// リスナー内からのGet呼び出しは安全である。
type Store[T any] struct {
	mu        sync.Mutex
	state     T
	listeners map[int]func(T)
	nextID    int
}

// New は初期状態initialを持つStoreを生成する。
func New[T any](initial T) *Store[T] {
	return &Store[T]{
		state:     initial,
		listeners: make(map[int]func(T)),
	}
}

// Get は現在の状態を返す。
func (s *Store[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Set は状態を値全体として置き換え、購読者へ通知する。
func (s *Store[T]) Set(state T) {
	s.Update(func(T) T { return state })
}

// Update は現在の状態に変換関数fnを適用して置き換え、購読者へ通知する。
// fnはロック保持中に呼ばれるため、fn内からStoreのメソッドを呼んではならない。
func (s *Store[T]) Update(fn func(T) T) {
	s.mu.Lock()
	s.state = fn(s.state)
	next := s.state
	// 通知中の購読解除に影響されないようスナップショットを取る
	fns := make([]func(T), 0, len(s.listeners))
	for id := 0; id < s.nextID; id++ {
		if l, ok := s.listeners[id]; ok {
			fns = append(fns, l)
		}
	}
	s.mu.Unlock()

	// 登録順に同期的に通知する
	for _, l := range fns {
		l(next)
	}
}

// Subscribe はリスナーを登録し、購読解除関数を返す。
// リスナーは登録以降のすべての変更について、変更後の状態とともに呼ばれる。
// 返された関数は冪等であり、複数回呼んでも安全である。
func (s *Store[T]) Subscribe(listener func(T)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}
