package readstaterepo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/worknest/messaging-api/internal/domain/readstate"
	"github.com/worknest/messaging-api/internal/infrastructure/database/dbschema"
	"github.com/worknest/messaging-api/internal/infrastructure/database/transaction"
	"github.com/worknest/messaging-api/internal/utils/platformerrors"
)

type ReadStateGormRepository struct {
	db *transaction.Database
}

var _ readstate.Repository = (*ReadStateGormRepository)(nil)

func NewReadStateGormRepository(db *transaction.Database) *ReadStateGormRepository {
	return &ReadStateGormRepository{db: db}
}

// MarkRead implements readstate.Repository.
func (repo *ReadStateGormRepository) MarkRead(ctx context.Context, chatID, userID string, at time.Time) (int64, error) {
	res := repo.db.GetTx(ctx).Model(&dbschema.ChatMember{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		UpdateColumn("last_read", gorm.Expr("GREATEST(last_read, ?)", at))
	if res.Error != nil {
		return 0, dbError(ctx, res.Error, "failed to mark chat as read")
	}
	return res.RowsAffected, nil
}

// UnreadCount implements readstate.Repository.
func (repo *ReadStateGormRepository) UnreadCount(ctx context.Context, chatID, userID string) (int64, error) {
	tx := repo.db.GetTx(ctx)

	var member dbschema.ChatMember
	err := tx.Where("chat_id = ? AND user_id = ?", chatID, userID).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
			"membership not found", nil, "member-not-found")
	}
	if err != nil {
		return 0, dbError(ctx, err, "failed to load read cursor")
	}

	var count int64
	err = tx.Model(&dbschema.Message{}).
		Where("chat_id = ? AND author_id <> ? AND created_at > ?", chatID, userID, member.LastRead).
		Count(&count).Error
	if err != nil {
		return 0, dbError(ctx, err, "failed to count unread messages")
	}
	return count, nil
}

type unreadRow struct {
	ChatID string
	Unread int64
}

// UnreadCounts returns a count for every chat the user belongs to, zeros included.
func (repo *ReadStateGormRepository) UnreadCounts(ctx context.Context, userID string) (map[string]int64, error) {
	var rows []unreadRow
	err := repo.db.GetTx(ctx).Raw(`
		SELECT cm.chat_id AS chat_id, COUNT(m.id) AS unread
		FROM chat_members cm
		LEFT JOIN messages m
			ON m.chat_id = cm.chat_id
			AND m.author_id <> cm.user_id
			AND m.created_at > cm.last_read
		WHERE cm.user_id = ?
		GROUP BY cm.chat_id`, userID).
		Scan(&rows).Error
	if err != nil {
		return nil, dbError(ctx, err, "failed to count unread messages")
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.ChatID] = row.Unread
	}
	return out, nil
}

func dbError(ctx context.Context, err error, msg string) error {
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
		msg, err, "readstate-query-failed")
}
