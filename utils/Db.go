package utils

import (
	"fmt"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/mysql"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

var dbConfig *Config

// DbOpen returns a database connection object by opening one based
// on the configuration
func DbOpen() (*gorm.DB, error) {
	if dbConfig == nil {
		dbConfig = config
	}

	switch dbConfig.DbDialect {
	case "mysql":
		connstr := fmt.Sprintf("%s:%s@%s/%s?charset=utf8&parseTime=true",
			dbConfig.DbUser, dbConfig.DbPassword, dbConfig.DbHost, dbConfig.DbName)
		return gorm.Open("mysql", connstr)
	case "sqlite3":
		return OpenSqlite(dbConfig.DbName)
	}

	return nil, fmt.Errorf("no sql dialect configured (got %q)", dbConfig.DbDialect)
}

// OpenSqlite opens a sqlite3 database. ":memory:" gives a private in-memory
// database; the pool is pinned to one connection so every query sees it.
func OpenSqlite(name string) (*gorm.DB, error) {
	db, err := gorm.Open("sqlite3", name)
	if err != nil {
		return nil, err
	}
	db.DB().SetMaxOpenConns(1)
	return db, nil
}

func initDbHelper(config *Config) {
	dbConfig = config
}
