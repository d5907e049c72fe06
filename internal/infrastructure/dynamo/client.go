package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/otp-auth-api/internal/config"
)

// API is the subset of the DynamoDB client used by the repositories.
// *dynamodb.Client satisfies it; tests substitute a mock.
type API interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	UpdateTimeToLive(ctx context.Context, in *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error)
}

// ErrClosed is returned by DB.Client after Close.
var ErrClosed = errors.New("dynamo: handle closed")

// DB is the process-wide store handle. It is created once by main, passed to every
// repository, and connects on first use. A failed connection attempt is retried on
// the next call instead of being cached.
type DB struct {
	mu      sync.Mutex
	connect func(ctx context.Context) (API, error)
	client  API
	closed  bool
}

// Open returns a handle that lazily builds a DynamoDB client from cfg. When
// cfg.AWSEndpointURL is set (LocalStack), all traffic goes to the local instance.
func Open(cfg *config.Config) *DB {
	return &DB{connect: func(ctx context.Context) (API, error) {
		c, err := newClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	}}
}

// NewDB wraps an already constructed client.
func NewDB(client API) *DB {
	return &DB{connect: func(context.Context) (API, error) { return client, nil }}
}

// Client returns the connected client, connecting if needed.
func (db *DB) Client(ctx context.Context) (API, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil, ErrClosed
	}
	if db.client != nil {
		return db.client, nil
	}
	c, err := db.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect dynamodb: %w", err)
	}
	db.client = c
	return c, nil
}

// Close releases the handle. The AWS SDK client keeps no sockets that need explicit
// shutdown, so Close only drops the client and rejects further use.
func (db *DB) Close() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.client = nil
	db.closed = true
}

func newClient(ctx context.Context, cfg *config.Config) (*dynamodb.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}

	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	clientOpts := []func(*dynamodb.Options){}
	if cfg.AWSEndpointURL != "" {
		clientOpts = append(clientOpts, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}

	return dynamodb.NewFromConfig(awsCfg, clientOpts...), nil
}
