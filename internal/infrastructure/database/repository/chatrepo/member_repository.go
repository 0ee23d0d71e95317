package chatrepo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/worknest/messaging-api/internal/domain/chat"
	"github.com/worknest/messaging-api/internal/domain/permission"
	"github.com/worknest/messaging-api/internal/infrastructure/database/dbschema"
	"github.com/worknest/messaging-api/internal/infrastructure/database/transaction"
)

type MemberGormRepository struct {
	db *transaction.Database
}

var _ chat.MemberRepository = (*MemberGormRepository)(nil)

func NewMemberGormRepository(db *transaction.Database) *MemberGormRepository {
	return &MemberGormRepository{db: db}
}

// Add inserts the row unless (chat_id, user_id) already exists.
func (repo *MemberGormRepository) Add(ctx context.Context, m *chat.Member) (bool, error) {
	res := repo.db.GetTx(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(dbschema.NewSchemaChatMember(m))
	if res.Error != nil {
		return false, translate(ctx, res.Error, "membership", "failed to add member")
	}
	return res.RowsAffected > 0, nil
}

// Find implements chat.MemberRepository.
func (repo *MemberGormRepository) Find(ctx context.Context, chatID, userID string) (*chat.Member, error) {
	var row dbschema.ChatMember
	err := repo.db.GetTx(ctx).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		First(&row).Error
	if err != nil {
		return nil, translate(ctx, err, "membership", "failed to find member")
	}
	return row.EtoD(), nil
}

// ListByChat returns members in join order.
func (repo *MemberGormRepository) ListByChat(ctx context.Context, chatID string) ([]*chat.Member, error) {
	var rows []dbschema.ChatMember
	err := repo.db.GetTx(ctx).
		Where("chat_id = ?", chatID).
		Order("joined_at ASC, user_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, translate(ctx, err, "membership", "failed to list members")
	}
	out := make([]*chat.Member, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].EtoD())
	}
	return out, nil
}

// Remove deletes the given memberships. ADMIN rows are never removed.
func (repo *MemberGormRepository) Remove(ctx context.Context, chatID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	err := repo.db.GetTx(ctx).
		Where("chat_id = ? AND user_id IN ? AND role <> ?", chatID, userIDs, string(permission.ChatRoleAdmin)).
		Delete(&dbschema.ChatMember{}).Error
	if err != nil {
		return translate(ctx, err, "membership", "failed to remove members")
	}
	return nil
}

// DeleteByChat implements chat.MemberRepository.
func (repo *MemberGormRepository) DeleteByChat(ctx context.Context, chatID string) error {
	err := repo.db.GetTx(ctx).Where("chat_id = ?", chatID).Delete(&dbschema.ChatMember{}).Error
	if err != nil {
		return translate(ctx, err, "membership", "failed to delete members")
	}
	return nil
}

// ToggleFavorite flips the flag in one statement and returns the new row.
func (repo *MemberGormRepository) ToggleFavorite(ctx context.Context, chatID, userID string) (*chat.Member, error) {
	var rows []dbschema.ChatMember
	res := repo.db.GetTx(ctx).
		Model(&rows).
		Clauses(clause.Returning{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		UpdateColumn("is_favorite", gorm.Expr("NOT is_favorite"))
	if res.Error != nil {
		return nil, translate(ctx, res.Error, "membership", "failed to toggle favorite")
	}
	if res.RowsAffected == 0 || len(rows) == 0 {
		return nil, notFound(ctx, "membership")
	}
	return rows[0].EtoD(), nil
}
