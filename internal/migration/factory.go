package migration

import (
	"fmt"

	appconfig "github.com/BaSui01/debateflow/config"
)

// NewMigratorFromConfig 从应用配置创建迁移器。Schema 服务于辩论
// 缓存的 gorm 后端,所以方言与 DSN 都取自缓存存储配置。
func NewMigratorFromConfig(cfg *appconfig.Config) (*DefaultMigrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	return NewMigratorFromStoreConfig(cfg.Cache.Store)
}

// NewMigratorFromStoreConfig 从缓存存储配置创建迁移器。只有 gorm
// 后端有 Schema 可迁移,其余后端类型直接报错。
func NewMigratorFromStoreConfig(sc appconfig.StoreConfig) (*DefaultMigrator, error) {
	if sc.Type != "gorm" {
		return nil, fmt.Errorf("cache store type %q has no schema to migrate (only gorm does)", sc.Type)
	}

	dbType, err := ParseDatabaseType(sc.Driver)
	if err != nil {
		return nil, fmt.Errorf("invalid cache store driver: %w", err)
	}

	return NewMigrator(&Config{
		DatabaseType: dbType,
		DatabaseURL:  sc.DSN,
		TableName:    "schema_migrations",
	})
}

// NewMigratorFromURL 从显式的类型与连接串创建迁移器,供命令行
// 直连数据库时使用。
func NewMigratorFromURL(dbType, dbURL string) (*DefaultMigrator, error) {
	dt, err := ParseDatabaseType(dbType)
	if err != nil {
		return nil, err
	}

	return NewMigrator(&Config{
		DatabaseType: dt,
		DatabaseURL:  dbURL,
		TableName:    "schema_migrations",
	})
}
