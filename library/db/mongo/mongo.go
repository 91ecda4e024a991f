// Package mongo provides a wrapper for the MongoDB client.
package mongo

import (
	"context"
	"net/url"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	mongoLib "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/file-vault/file-vault/library/log"
)

const defaultConnectTimeout = 30 * time.Second

// DB is a handle to one logical database.
type DB interface {
	Close(ctx context.Context) error
	GetCol(colName string) *mongoLib.Collection
	CurrentDB() *mongoLib.Database
}

// DialInfo defines the MongoDB connection information.
type DialInfo struct {
	Addr,
	DBName,
	User,
	Pwd string
}

type db struct {
	cli    *mongoLib.Client
	dbName string
}

// buildMongoURI builds a MongoDB connection URI from the given dial info.
func buildMongoURI(dialInfo DialInfo) string {
	uri := &url.URL{
		Scheme: "mongodb",
		Host:   dialInfo.Addr,
		Path:   "/" + dialInfo.DBName,
	}
	if dialInfo.User != "" || dialInfo.Pwd != "" {
		uri.User = url.UserPassword(dialInfo.User, dialInfo.Pwd)
	}
	return uri.String()
}

// NewDB connects a long-lived client and verifies it with a bounded ping.
// Reconnects are left to the driver's pool.
func NewDB(ctx context.Context, dialInfo DialInfo) (DB, error) {
	log.Logger.Info("try to connect to mongodb",
		zap.String("addr", dialInfo.Addr),
		zap.String("db", dialInfo.DBName),
	)

	ctx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	cli, err := mongoLib.Connect(ctx,
		options.Client().
			ApplyURI(buildMongoURI(dialInfo)).
			SetConnectTimeout(defaultConnectTimeout).
			SetServerSelectionTimeout(defaultConnectTimeout).
			SetRetryWrites(true).
			SetRetryReads(true),
	)
	if err != nil {
		return nil, errors.Wrap(err, "connect")
	}

	if err = cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, errors.Wrap(err, "ping")
	}

	return &db{cli: cli, dbName: dialInfo.DBName}, nil
}

func (d *db) Close(ctx context.Context) error {
	return errors.Wrap(d.cli.Disconnect(ctx), "disconnect")
}

func (d *db) GetCol(colName string) *mongoLib.Collection {
	return d.CurrentDB().Collection(colName)
}

func (d *db) CurrentDB() *mongoLib.Database {
	return d.cli.Database(d.dbName)
}
