package chatrepo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/worknest/messaging-api/internal/domain/chat"
	"github.com/worknest/messaging-api/internal/infrastructure/database"
	"github.com/worknest/messaging-api/internal/infrastructure/database/dbschema"
	"github.com/worknest/messaging-api/internal/infrastructure/database/transaction"
	"github.com/worknest/messaging-api/internal/utils/platformerrors"
)

type ChatGormRepository struct {
	db *transaction.Database
}

var _ chat.Repository = (*ChatGormRepository)(nil)

func NewChatGormRepository(db *transaction.Database) *ChatGormRepository {
	return &ChatGormRepository{db: db}
}

// Create inserts the chat and its initial members. It runs as a nested
// transaction so a unique violation only rolls back to the savepoint and the
// caller's transaction stays usable for the lookup that follows.
func (repo *ChatGormRepository) Create(ctx context.Context, c *chat.Chat, members []*chat.Member) error {
	err := repo.db.GetTx(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(dbschema.NewSchemaChat(c)).Error; err != nil {
			return err
		}
		if len(members) == 0 {
			return nil
		}
		rows := make([]*dbschema.ChatMember, 0, len(members))
		for _, m := range members {
			rows = append(rows, dbschema.NewSchemaChatMember(m))
		}
		return tx.Create(&rows).Error
	})
	if err == nil {
		return nil
	}
	if database.IsUniqueViolation(err) {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict,
			"chat already exists", err, "chat-unique-violation")
	}
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
		"failed to create chat", err, "chat-create-failed")
}

// FindByID implements chat.Repository.
func (repo *ChatGormRepository) FindByID(ctx context.Context, id string) (*chat.Chat, error) {
	return repo.first(ctx, "id = ?", id)
}

// FindByDirectKey implements chat.Repository.
func (repo *ChatGormRepository) FindByDirectKey(ctx context.Context, key string) (*chat.Chat, error) {
	return repo.first(ctx, "direct_key = ?", key)
}

// FindByProject implements chat.Repository.
func (repo *ChatGormRepository) FindByProject(ctx context.Context, projectID string) (*chat.Chat, error) {
	return repo.first(ctx, "project_id = ?", projectID)
}

func (repo *ChatGormRepository) first(ctx context.Context, where string, arg any) (*chat.Chat, error) {
	var row dbschema.Chat
	err := repo.db.GetTx(ctx).Where(where, arg).First(&row).Error
	if err != nil {
		return nil, translate(ctx, err, "chat", "failed to find chat")
	}
	return row.EtoD(), nil
}

// Update writes the mutable group fields.
func (repo *ChatGormRepository) Update(ctx context.Context, c *chat.Chat) error {
	res := repo.db.GetTx(ctx).Model(&dbschema.Chat{}).
		Where("id = ?", c.ID).
		Updates(map[string]any{"name": c.Name, "image_url": c.ImageURL})
	if res.Error != nil {
		return translate(ctx, res.Error, "chat", "failed to update chat")
	}
	if res.RowsAffected == 0 {
		return notFound(ctx, "chat")
	}
	return nil
}

// Touch moves updated_at forward, never backwards.
func (repo *ChatGormRepository) Touch(ctx context.Context, chatID string, at time.Time) error {
	res := repo.db.GetTx(ctx).Model(&dbschema.Chat{}).
		Where("id = ?", chatID).
		UpdateColumn("updated_at", gorm.Expr("GREATEST(updated_at, ?)", at))
	if res.Error != nil {
		return translate(ctx, res.Error, "chat", "failed to touch chat")
	}
	if res.RowsAffected == 0 {
		return notFound(ctx, "chat")
	}
	return nil
}

// Delete implements chat.Repository.
func (repo *ChatGormRepository) Delete(ctx context.Context, id string) error {
	res := repo.db.GetTx(ctx).Where("id = ?", id).Delete(&dbschema.Chat{})
	if res.Error != nil {
		return translate(ctx, res.Error, "chat", "failed to delete chat")
	}
	if res.RowsAffected == 0 {
		return notFound(ctx, "chat")
	}
	return nil
}

// ListForUser returns the user's chats, most recently active first.
func (repo *ChatGormRepository) ListForUser(ctx context.Context, userID string) ([]*chat.Overview, error) {
	tx := repo.db.GetTx(ctx)

	var memberships []dbschema.ChatMember
	if err := tx.Where("user_id = ?", userID).Find(&memberships).Error; err != nil {
		return nil, translate(ctx, err, "membership", "failed to list memberships")
	}
	if len(memberships) == 0 {
		return []*chat.Overview{}, nil
	}

	byChat := make(map[string]*dbschema.ChatMember, len(memberships))
	ids := make([]string, 0, len(memberships))
	for i := range memberships {
		byChat[memberships[i].ChatID] = &memberships[i]
		ids = append(ids, memberships[i].ChatID)
	}

	var chats []dbschema.Chat
	err := tx.Where("id IN ?", ids).Order("updated_at DESC, id DESC").Find(&chats).Error
	if err != nil {
		return nil, translate(ctx, err, "chat", "failed to list chats")
	}

	out := make([]*chat.Overview, 0, len(chats))
	for i := range chats {
		out = append(out, &chat.Overview{
			Chat:       chats[i].EtoD(),
			Membership: byChat[chats[i].ID].EtoD(),
		})
	}
	return out, nil
}

func translate(ctx context.Context, err error, what, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(ctx, what)
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return notFound(ctx, "chat")
	}
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
		message, err, what+"-query-failed")
}

func notFound(ctx context.Context, what string) error {
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
		what+" not found", nil, what+"-not-found")
}
