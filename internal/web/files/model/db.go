package model

import (
	mongoLib "go.mongodb.org/mongo-driver/mongo"

	"github.com/file-vault/file-vault/library/db/mongo"
)

const colFiles = "files"

// DB db
type DB struct {
	mongo.DB
}

// NewDB create new DB
func NewDB(db mongo.DB) *DB {
	return &DB{DB: db}
}

func (db *DB) GetFilesCol() *mongoLib.Collection {
	return db.GetCol(colFiles)
}
