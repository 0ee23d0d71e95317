package messagerepo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/worknest/messaging-api/internal/domain/message"
	"github.com/worknest/messaging-api/internal/infrastructure/database"
	"github.com/worknest/messaging-api/internal/infrastructure/database/dbschema"
	"github.com/worknest/messaging-api/internal/infrastructure/database/transaction"
	"github.com/worknest/messaging-api/internal/utils/platformerrors"
)

const newestFirst = "created_at DESC, id DESC"

type MessageGormRepository struct {
	db *transaction.Database
}

var _ message.Repository = (*MessageGormRepository)(nil)

func NewMessageGormRepository(db *transaction.Database) *MessageGormRepository {
	return &MessageGormRepository{db: db}
}

// Create implements message.Repository.
func (repo *MessageGormRepository) Create(ctx context.Context, msg *message.Message) error {
	err := repo.db.GetTx(ctx).Create(dbschema.NewSchemaMessage(msg)).Error
	switch {
	case err == nil:
		return nil
	case database.IsUniqueViolation(err):
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict,
			"message id already exists", err, "message-id-taken")
	default:
		return translate(ctx, err, "failed to create message")
	}
}

// FindByID implements message.Repository.
func (repo *MessageGormRepository) FindByID(ctx context.Context, id string) (*message.Message, error) {
	var row dbschema.Message
	if err := repo.db.GetTx(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, translate(ctx, err, "failed to find message")
	}
	return row.EtoD(), nil
}

// FindByIDs returns the messages of chatID among ids. Unknown IDs are skipped.
func (repo *MessageGormRepository) FindByIDs(ctx context.Context, chatID string, ids []string) ([]*message.Message, error) {
	if len(ids) == 0 {
		return []*message.Message{}, nil
	}
	return repo.find(ctx, repo.db.GetTx(ctx).Where("chat_id = ? AND id IN ?", chatID, ids), "failed to find messages")
}

// ListBefore implements message.Repository.
func (repo *MessageGormRepository) ListBefore(ctx context.Context, chatID string, before *message.Cursor, limit int) ([]*message.Message, error) {
	query := repo.db.GetTx(ctx).Where("chat_id = ?", chatID)
	if before != nil {
		query = query.Where("(created_at, id) < (?, ?)", before.CreatedAt, before.ID)
	}
	return repo.find(ctx, query.Order(newestFirst).Limit(limit), "failed to list messages")
}

// ListChangedAfter implements message.Repository.
func (repo *MessageGormRepository) ListChangedAfter(ctx context.Context, chatID string, after message.SyncPosition, limit int) ([]*message.Message, error) {
	query := repo.db.GetTx(ctx).
		Where("chat_id = ? AND (updated_at, id) > (?, ?)", chatID, after.UpdatedAt, after.ID).
		Order("updated_at ASC, id ASC").
		Limit(limit)
	return repo.find(ctx, query, "failed to list changed messages")
}

// Search implements message.Repository.
func (repo *MessageGormRepository) Search(ctx context.Context, chatID, query string, limit int) ([]*message.Message, error) {
	q := repo.db.GetTx(ctx).
		Where("chat_id = ? AND deleted_at IS NULL AND content ILIKE ? ESCAPE '\\'", chatID, "%"+escapeLike(query)+"%").
		Order(newestFirst).
		Limit(limit)
	return repo.find(ctx, q, "failed to search messages")
}

// ListWithAttachments implements message.Repository.
func (repo *MessageGormRepository) ListWithAttachments(ctx context.Context, chatID string, limit int) ([]*message.Message, error) {
	q := repo.db.GetTx(ctx).
		Where("chat_id = ? AND deleted_at IS NULL AND jsonb_array_length(attachments) > 0", chatID).
		Order(newestFirst).
		Limit(limit)
	return repo.find(ctx, q, "failed to list attachments")
}

// LatestByChats returns the newest message of each chat, tombstones included.
func (repo *MessageGormRepository) LatestByChats(ctx context.Context, chatIDs []string) (map[string]*message.Message, error) {
	out := make(map[string]*message.Message, len(chatIDs))
	if len(chatIDs) == 0 {
		return out, nil
	}
	var rows []dbschema.Message
	err := repo.db.GetTx(ctx).
		Raw(`SELECT DISTINCT ON (chat_id) * FROM messages WHERE chat_id IN ? ORDER BY chat_id, created_at DESC, id DESC`, chatIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, translate(ctx, err, "failed to load latest messages")
	}
	for i := range rows {
		out[rows[i].ChatID] = rows[i].EtoD()
	}
	return out, nil
}

// Edit implements message.Repository.
func (repo *MessageGormRepository) Edit(ctx context.Context, p message.EditParams) (int64, error) {
	mentions := pq.StringArray(p.Mentions)
	if mentions == nil {
		mentions = pq.StringArray{}
	}
	res := repo.db.GetTx(ctx).Model(&dbschema.Message{}).
		Where("id = ? AND author_id = ? AND deleted_at IS NULL", p.ID, p.AuthorID).
		Updates(map[string]any{
			"content":    p.Content,
			"mentions":   mentions,
			"is_edited":  true,
			"updated_at": p.At,
		})
	if res.Error != nil {
		return 0, translate(ctx, res.Error, "failed to edit message")
	}
	return res.RowsAffected, nil
}

// SoftDelete implements message.Repository.
func (repo *MessageGormRepository) SoftDelete(ctx context.Context, id, authorID string, at time.Time) (int64, error) {
	res := repo.db.GetTx(ctx).Model(&dbschema.Message{}).
		Where("id = ? AND author_id = ? AND deleted_at IS NULL", id, authorID).
		Updates(map[string]any{
			"content":     message.DeletedPlaceholder,
			"attachments": datatypes.JSONSlice[dbschema.AttachmentDescriptor]{},
			"mentions":    pq.StringArray{},
			"deleted_at":  at,
			"updated_at":  at,
		})
	if res.Error != nil {
		return 0, translate(ctx, res.Error, "failed to delete message")
	}
	return res.RowsAffected, nil
}

// DeleteByChat implements message.Repository.
func (repo *MessageGormRepository) DeleteByChat(ctx context.Context, chatID string) error {
	if err := repo.db.GetTx(ctx).Where("chat_id = ?", chatID).Delete(&dbschema.Message{}).Error; err != nil {
		return translate(ctx, err, "failed to purge messages")
	}
	return nil
}

func (repo *MessageGormRepository) find(ctx context.Context, query *gorm.DB, failure string) ([]*message.Message, error) {
	var rows []dbschema.Message
	if err := query.Find(&rows).Error; err != nil {
		return nil, translate(ctx, err, failure)
	}
	out := make([]*message.Message, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].EtoD())
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes query match literally inside a LIKE pattern.
func escapeLike(query string) string {
	return likeEscaper.Replace(query)
}

func translate(ctx context.Context, err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
			"message not found", nil, "message-not-found")
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
			"chat not found", err, "chat-not-found")
	}
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
		msg, err, "message-query-failed")
}
