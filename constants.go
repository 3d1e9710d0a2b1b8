package dbrecord

import "time"

// 驱动相关常量
const (
	// DriverMySQL is the database/sql driver name registered by go-sql-driver/mysql
	DriverMySQL = "mysql"
)

// 连接池相关常量
const (
	// DefaultConnectionLimit 默认连接池大小
	DefaultConnectionLimit = 10

	// DefaultConnMaxLifetime 默认连接最大存活时间
	DefaultConnMaxLifetime = time.Hour

	// DefaultMonitorInterval 默认健康检查间隔（0 表示关闭）
	DefaultMonitorInterval = 0
)

// 缓存相关常量
const (
	// SchemaCacheRepository 表结构缓存的仓库名称
	SchemaCacheRepository = "__dbrecord_schema__"

	// DefaultSchemaTTL 表结构缓存默认有效期
	DefaultSchemaTTL = 10 * time.Minute
)

// ConfigEnvVar names the environment variable holding the config file path
const ConfigEnvVar = "DBRECORD_CONFIG"
