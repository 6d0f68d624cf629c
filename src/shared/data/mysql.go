package data

import (
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/councilbot/councillor/src/shared/logx"
	"github.com/councilbot/councillor/src/shared/types"
)

func MustMySQL(dsn string) *gorm.DB {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		logx.Fatal("database", "mysql: %v", err)
	}
	return db
}

// Migrate creates or updates every collection the bot owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.Guild{},
		&types.Council{},
		&types.Councillor{},
		&types.Ministry{},
		&types.Voting{},
		&types.Vote{},
		&types.ElectionCandidate{},
		&types.RegisteredVoter{},
		&types.AuditLog{},
		&types.Setting{},
	)
}
