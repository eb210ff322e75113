package model

import "time"

// Message は掲示板に投稿されたメッセージを表す。
type Message struct {
	ID        string
	UserID    string
	Subject   string
	Body      string
	CreatedAt time.Time
}

// MessageWithAuthor はメッセージを投稿者情報と結合した構造体。
// 一覧表示用。
type MessageWithAuthor struct {
	Message
	AuthorName   string
	AuthorEmail  string
	AuthorAvatar string
}
