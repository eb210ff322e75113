// Package message は掲示板メッセージのドメインロジックを提供する。
package message

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/dengonban/internal/model"
	"github.com/hitoshi/dengonban/internal/repository"
	"github.com/hitoshi/dengonban/internal/security"
)

// maxSubjectLength は件名の最大文字数。
const maxSubjectLength = 255

// AuditRecorder は監査エントリ書き込みのインターフェース。
// audit.Ledgerの部分集合として定義する。
type AuditRecorder interface {
	Record(ctx context.Context, actorID *string, action model.AuditAction, detail, sourceAddr string) error
}

// BoardRecorder は投稿・削除をメトリクスに記録するインターフェース。
type BoardRecorder interface {
	RecordMessageCreated()
	RecordMessageDeleted()
}

// nopBoardRecorder はメトリクス未使用時のBoardRecorder実装。
type nopBoardRecorder struct{}

func (nopBoardRecorder) RecordMessageCreated() {}
func (nopBoardRecorder) RecordMessageDeleted() {}

// Service はメッセージ投稿・一覧・削除のサービス層。
// 成功した状態変更は必ず監査ログに記録する。
type Service struct {
	messages  repository.MessageRepository
	ledger    AuditRecorder
	sanitizer security.ContentSanitizerService
	recorder  BoardRecorder
	pageSize  int
}

// NewService はServiceを生成する。
// pageSizeはList取得件数の上限。recorderはnilを許容する。
func NewService(
	messages repository.MessageRepository,
	ledger AuditRecorder,
	sanitizer security.ContentSanitizerService,
	recorder BoardRecorder,
	pageSize int,
) *Service {
	if pageSize <= 0 {
		pageSize = 50
	}
	if recorder == nil {
		recorder = nopBoardRecorder{}
	}
	return &Service{
		messages:  messages,
		ledger:    ledger,
		sanitizer: sanitizer,
		recorder:  recorder,
		pageSize:  pageSize,
	}
}

// Create はメッセージを投稿する。
// 件名・本文は未サニタイズの入力として扱い、保存前にHTMLタグを除去する。
// 件名・本文のいずれかが空白のみの場合はMISSING_FIELDSを返す。
// 投稿成功時にMESSAGE_CREATE監査エントリを記録する。監査書き込みの失敗は
// ログに記録するが、投稿自体はロールバックしない。
func (s *Service) Create(ctx context.Context, userID, subject, body, sourceAddr string) (*model.Message, error) {
	subject = strings.TrimSpace(s.sanitizer.Sanitize(subject))
	body = strings.TrimSpace(s.sanitizer.Sanitize(body))

	if subject == "" || body == "" {
		return nil, model.NewMissingFieldsError()
	}
	if len([]rune(subject)) > maxSubjectLength {
		subject = string([]rune(subject)[:maxSubjectLength])
	}

	msg := &model.Message{
		ID:        uuid.New().String(),
		UserID:    userID,
		Subject:   subject,
		Body:      body,
		CreatedAt: time.Now(),
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		slog.Error("failed to create message", slog.String("error", err.Error()))
		return nil, model.NewPersistenceError()
	}

	detail := fmt.Sprintf("Created message #%s: %s", msg.ID, msg.Subject)
	if err := s.ledger.Record(ctx, &userID, model.AuditActionMessageCreate, detail, sourceAddr); err != nil {
		slog.Error("message create audit write failed", slog.String("error", err.Error()))
	}

	s.recorder.RecordMessageCreated()
	slog.Info("message created",
		slog.String("message_id", msg.ID),
		slog.String("user_id", userID),
	)

	return msg, nil
}

// List はメッセージ一覧を投稿者情報と結合して取得する。
// limitが0以下またはpageSize超過の場合はpageSizeに丸める。
func (s *Service) List(ctx context.Context, limit, offset int) ([]model.MessageWithAuthor, error) {
	if limit <= 0 || limit > s.pageSize {
		limit = s.pageSize
	}
	if offset < 0 {
		offset = 0
	}

	messages, err := s.messages.ListWithAuthor(ctx, limit, offset)
	if err != nil {
		slog.Error("failed to list messages", slog.String("error", err.Error()))
		return nil, model.NewPersistenceError()
	}

	return messages, nil
}

// Delete は指定ユーザーが所有するメッセージを削除する。
// 所有していない・存在しないメッセージの場合はMESSAGE_NOT_FOUNDを返し、
// 監査エントリは記録しない。削除成功時のみMESSAGE_DELETE監査エントリを
// 記録する。監査書き込みの失敗はログに記録するが、削除はロールバックしない。
func (s *Service) Delete(ctx context.Context, messageID, userID, sourceAddr string) error {
	deleted, err := s.messages.DeleteByIDAndUser(ctx, messageID, userID)
	if err != nil {
		slog.Error("failed to delete message", slog.String("error", err.Error()))
		return model.NewPersistenceError()
	}
	if !deleted {
		return model.NewMessageNotFoundError(messageID)
	}

	detail := fmt.Sprintf("Deleted message #%s", messageID)
	if err := s.ledger.Record(ctx, &userID, model.AuditActionMessageDelete, detail, sourceAddr); err != nil {
		slog.Error("message delete audit write failed", slog.String("error", err.Error()))
	}

	s.recorder.RecordMessageDeleted()
	slog.Info("message deleted",
		slog.String("message_id", messageID),
		slog.String("user_id", userID),
	)

	return nil
}
