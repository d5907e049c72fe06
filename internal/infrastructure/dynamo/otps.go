package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/otp-auth-api/internal/domain"
)

// batchLimit is the maximum number of requests in one BatchWriteItem call.
const batchLimit = 25

// OTPRepo manages one-time passcodes.
// PK: email, SK: otp_id
type OTPRepo struct {
	db        *DB
	tableName string
}

func NewOTPRepo(db *DB, tableName string) *OTPRepo {
	return &OTPRepo{db: db, tableName: tableName}
}

func (r *OTPRepo) Put(ctx context.Context, rec *domain.OTPRecord) error {
	client, err := r.db.Client(ctx)
	if err != nil {
		return err
	}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal otp: %w", err)
	}
	_, err = client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// Latest returns the most recently created record for email.
func (r *OTPRepo) Latest(ctx context.Context, email string) (*domain.OTPRecord, error) {
	client, err := r.db.Client(ctx)
	if err != nil {
		return nil, err
	}
	out, err := client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    aws.String("#e = :e"),
		ExpressionAttributeNames:  map[string]string{"#e": fieldEmail},
		ExpressionAttributeValues: map[string]types.AttributeValue{":e": &types.AttributeValueMemberS{Value: email}},
		ScanIndexForward:          aws.Bool(false),
		ConsistentRead:            aws.Bool(true),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("otp not found: %w", domain.ErrInvalidOrExpired)
	}
	var rec domain.OTPRecord
	if err := attributevalue.UnmarshalMap(out.Items[0], &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ConsumeLatest deletes the newest record for email if, at the moment of the delete,
// it still exists, its code and purpose match and it has not expired at now. It reports
// whether a record was consumed. Two concurrent calls for the same record cannot both
// succeed because the delete is conditional on the item still existing.
func (r *OTPRepo) ConsumeLatest(ctx context.Context, email, code string, purpose domain.OTPPurpose, now time.Time) (bool, error) {
	latest, err := r.Latest(ctx, email)
	if err != nil {
		if isNotFoundOTP(err) {
			return false, nil
		}
		return false, err
	}
	client, err := r.db.Client(ctx)
	if err != nil {
		return false, err
	}
	_, err = client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 compositeKey(fieldEmail, email, fieldOTPID, latest.OTPID),
		ConditionExpression: aws.String("attribute_exists(#id) AND #c = :c AND #p = :p AND #x > :now"),
		ExpressionAttributeNames: map[string]string{
			"#id": fieldOTPID,
			"#c":  fieldCode,
			"#p":  fieldPurpose,
			"#x":  fieldExpiresAtMs,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c":   &types.AttributeValueMemberS{Value: code},
			":p":   &types.AttributeValueMemberS{Value: string(purpose)},
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.UnixMilli(), 10)},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// PurgeExpiredFor deletes every expired record for a single email.
func (r *OTPRepo) PurgeExpiredFor(ctx context.Context, email string, now time.Time) (int, error) {
	client, err := r.db.Client(ctx)
	if err != nil {
		return 0, err
	}
	var keys []map[string]types.AttributeValue
	p := dynamodb.NewQueryPaginator(client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("#e = :e"),
		FilterExpression:       aws.String("#x <= :now"),
		ProjectionExpression:   aws.String("#e, #id"),
		ExpressionAttributeNames: map[string]string{
			"#e":  fieldEmail,
			"#id": fieldOTPID,
			"#x":  fieldExpiresAtMs,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":e":   &types.AttributeValueMemberS{Value: email},
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.UnixMilli(), 10)},
		},
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		keys = append(keys, page.Items...)
	}
	return r.deleteKeys(ctx, client, keys)
}

// PurgeExpired deletes every expired record in the table. DynamoDB TTL removes expired
// items eventually (often hours later); this closes the gap.
func (r *OTPRepo) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	client, err := r.db.Client(ctx)
	if err != nil {
		return 0, err
	}
	var keys []map[string]types.AttributeValue
	p := dynamodb.NewScanPaginator(client, &dynamodb.ScanInput{
		TableName:            aws.String(r.tableName),
		FilterExpression:     aws.String("#x <= :now"),
		ProjectionExpression: aws.String("#e, #id"),
		ExpressionAttributeNames: map[string]string{
			"#e":  fieldEmail,
			"#id": fieldOTPID,
			"#x":  fieldExpiresAtMs,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.UnixMilli(), 10)},
		},
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		keys = append(keys, page.Items...)
	}
	return r.deleteKeys(ctx, client, keys)
}

// deleteKeys removes keys in batches and returns how many deletes were accepted.
// Unprocessed items are left for the next sweep.
func (r *OTPRepo) deleteKeys(ctx context.Context, client API, keys []map[string]types.AttributeValue) (int, error) {
	deleted := 0
	for start := 0; start < len(keys); start += batchLimit {
		end := min(start+batchLimit, len(keys))
		reqs := make([]types.WriteRequest, 0, end-start)
		for _, k := range keys[start:end] {
			reqs = append(reqs, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: k}})
		}
		out, err := client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{r.tableName: reqs},
		})
		if err != nil {
			return deleted, err
		}
		deleted += len(reqs) - len(out.UnprocessedItems[r.tableName])
	}
	return deleted, nil
}

func isNotFoundOTP(err error) bool {
	return errors.Is(err, domain.ErrInvalidOrExpired)
}
