// Package model はドメインモデルを定義する。
package model

import "time"

// User はWebサイトを登録するオーナーを表す。
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity は外部IdPのアカウントとユーザーの紐付けを表す。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はログインセッションを表す。
// 認証済みユーザーの特定にはSessionのUserIDのみを使用する。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
