package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/JoeShih716/go-credit-ledger/internal/app/audit"
)

// inserter 是 *mongo.Collection 的 InsertOne
type inserter interface {
	InsertOne(ctx context.Context, document any, opts ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error)
}

// AuditRepository 把稽核紀錄存進 MongoDB，_id 使用交易 ID
type AuditRepository struct {
	collection inserter
}

func NewAuditRepository(client *mongo.Client, dbName, collection string) *AuditRepository {
	return &AuditRepository{collection: client.Database(dbName).Collection(collection)}
}

func (r *AuditRepository) Save(ctx context.Context, record audit.Record) error {
	_, err := r.collection.InsertOne(ctx, record)
	if mongo.IsDuplicateKeyError(err) {
		// 事件重送，已經寫過了
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

var _ audit.Repository = (*AuditRepository)(nil)
