package infrastructure

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/wire"
	"github.com/rs/zerolog"

	"github.com/worknest/messaging-api/internal/config"
	"github.com/worknest/messaging-api/internal/domain"
	"github.com/worknest/messaging-api/internal/domain/attachment"
	"github.com/worknest/messaging-api/internal/domain/chat"
	"github.com/worknest/messaging-api/internal/domain/message"
	"github.com/worknest/messaging-api/internal/domain/readstate"
	"github.com/worknest/messaging-api/internal/domain/user"
	"github.com/worknest/messaging-api/internal/infrastructure/auth"
	"github.com/worknest/messaging-api/internal/infrastructure/database"
	"github.com/worknest/messaging-api/internal/infrastructure/database/repository/chatrepo"
	"github.com/worknest/messaging-api/internal/infrastructure/database/repository/messagerepo"
	"github.com/worknest/messaging-api/internal/infrastructure/database/repository/readstaterepo"
	"github.com/worknest/messaging-api/internal/infrastructure/database/repository/userrepo"
	"github.com/worknest/messaging-api/internal/infrastructure/database/transaction"
	"github.com/worknest/messaging-api/internal/infrastructure/logger"
	"github.com/worknest/messaging-api/internal/infrastructure/metrics"
	"github.com/worknest/messaging-api/internal/infrastructure/presence"
	"github.com/worknest/messaging-api/internal/infrastructure/repository/inmemory"
	"github.com/worknest/messaging-api/internal/infrastructure/storage"

	presencedomain "github.com/worknest/messaging-api/internal/domain/presence"
)

// Stores groups the persistence backends. All of them share one transaction
// boundary so that multi-row writes commit together.
type Stores struct {
	Chats     chat.Repository
	Members   chat.MemberRepository
	Messages  message.Repository
	ReadState readstate.Repository
	Users     user.Repository
	Tx        domain.Transactor
	Ping      func(ctx context.Context) error
}

// ProvideConfig loads and provides the application configuration
func ProvideConfig() (*config.Config, error) {
	return config.Load()
}

func ProvideLogger(cfg *config.Config) zerolog.Logger {
	return logger.New(cfg)
}

// ProvideStores opens PostgreSQL when DATABASE_URL is set and falls back to the
// in-memory store otherwise.
func ProvideStores(cfg *config.Config, log zerolog.Logger) (*Stores, func(), error) {
	if cfg.UsesInMemoryStore() {
		log.Warn().Msg("DATABASE_URL not set, using in-memory store; data is lost on restart")
		store := inmemory.NewStore()
		return &Stores{
			Chats:     store.Chats(),
			Members:   store.Members(),
			Messages:  store.Messages(),
			ReadState: store.ReadState(),
			Users:     store.Users(),
			Tx:        store,
			Ping:      store.Ping,
		}, func() {}, nil
	}

	db, err := database.Connect(database.Config{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		CreateIfMissing: cfg.DBCreateIfMissing,
		SlowQuery:       cfg.DBSlowQuery,
	}, log)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := database.Close(db); err != nil {
			log.Error().Err(err).Msg("close database")
		}
	}

	if cfg.DBAutoMigrate {
		log.Info().Msg("running database migrations")
		if err := database.Migrate(context.Background(), db, log); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	tx := transaction.NewDatabase(db)
	return &Stores{
		Chats:     chatrepo.NewChatGormRepository(tx),
		Members:   chatrepo.NewMemberGormRepository(tx),
		Messages:  messagerepo.NewMessageGormRepository(tx),
		ReadState: readstaterepo.NewReadStateGormRepository(tx),
		Users:     userrepo.NewUserGormRepository(tx),
		Tx:        tx,
		Ping:      tx.Ping,
	}, cleanup, nil
}

// ProvidePresenceStore selects the typing signal backend named by PRESENCE_BACKEND.
func ProvidePresenceStore(cfg *config.Config, log zerolog.Logger) (presencedomain.Store, func(), error) {
	if strings.EqualFold(cfg.PresenceBackend, "redis") {
		store, err := presence.NewRedisStore(context.Background(), cfg.RedisURL, cfg.PresenceTTL, log)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				log.Error().Err(err).Msg("close presence redis client")
			}
		}, nil
	}
	return presence.NewMemoryStore(cfg.PresenceShards), func() {}, nil
}

func ProvidePresenceOptions(cfg *config.Config) presencedomain.Options {
	return presencedomain.Options{
		TTL:          cfg.PresenceTTL,
		OnStoreError: metrics.RecordPresenceStoreError,
	}
}

func ProvideAttachmentStorage(cfg *config.Config, log zerolog.Logger) (attachment.Storage, error) {
	return storage.New(context.Background(), cfg, log)
}

// ProvideTokenValidator returns nil when JWT authentication is disabled, in
// which case only gateway headers are accepted.
func ProvideTokenValidator(cfg *config.Config, log zerolog.Logger) (auth.TokenValidator, error) {
	if !cfg.AuthEnabled {
		return nil, nil
	}
	validator, err := auth.NewKeycloakValidator(
		context.Background(),
		cfg.AuthJWKSURL,
		cfg.AuthIssuer,
		cfg.AuthAudience,
		cfg.AuthJWKSRefresh,
		cfg.AuthClockSkew,
		log,
	)
	if err != nil {
		return nil, err
	}
	return validator, nil
}

var InfrastructureProvider = wire.NewSet(
	ProvideConfig,
	ProvideLogger,
	ProvideStores,
	wire.FieldsOf(new(*Stores), "Chats", "Members", "Messages", "ReadState", "Users", "Tx"),
	ProvidePresenceStore,
	ProvidePresenceOptions,
	ProvideAttachmentStorage,
	ProvideTokenValidator,
)
