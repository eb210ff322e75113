// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService は投稿メッセージの件名・本文をサニタイズし、
// XSS攻撃などのセキュリティリスクからユーザーを保護する。
// 入力は事前にサニタイズ済みであるとは仮定しない。
package security

import "github.com/microcosm-cc/bluemonday"

// ContentSanitizerService はテキストコンテンツのサニタイズ機能のインターフェースを定義する。
// メッセージの保存前に使用される。
type ContentSanitizerService interface {
	// Sanitize は入力からHTMLタグをすべて除去したプレーンテキストを返す。
	// メッセージは常にプレーンテキストとして保存・表示されるため、
	// タグの許可リストは持たない。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicy（全タグ除去）を使用する。scriptタグやon*イベント属性を含め、
// あらゆるHTMLはテキストとして無害化される。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力からHTMLタグをすべて除去したプレーンテキストを返す。
func (s *contentSanitizer) Sanitize(raw string) string {
	return s.policy.Sanitize(raw)
}
