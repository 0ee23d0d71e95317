package userrepo

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/worknest/messaging-api/internal/domain/user"
	"github.com/worknest/messaging-api/internal/infrastructure/database/dbschema"
	"github.com/worknest/messaging-api/internal/infrastructure/database/transaction"
	"github.com/worknest/messaging-api/internal/utils/platformerrors"
)

type UserGormRepository struct {
	db *transaction.Database
}

var _ user.Repository = (*UserGormRepository)(nil)

func NewUserGormRepository(db *transaction.Database) *UserGormRepository {
	return &UserGormRepository{db: db}
}

// Upsert inserts the user or refreshes its profile columns.
func (repo *UserGormRepository) Upsert(ctx context.Context, u *user.User) error {
	row := dbschema.NewSchemaUser(u)
	err := repo.db.GetTx(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "email", "avatar_url", "system_role", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to upsert user", err, "user-upsert-failed")
	}
	return nil
}

// FindByIDs implements user.Repository. Unknown IDs are skipped.
func (repo *UserGormRepository) FindByIDs(ctx context.Context, ids []string) ([]*user.User, error) {
	if len(ids) == 0 {
		return []*user.User{}, nil
	}
	var rows []dbschema.User
	if err := repo.db.GetTx(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to load users", err, "user-query-failed")
	}
	out := make([]*user.User, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].EtoD())
	}
	return out, nil
}
