package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/otp-auth-api/internal/domain"
)

// UserRepo provides typed DynamoDB operations for the users table.
type UserRepo struct {
	db        *DB
	tableName string
}

func NewUserRepo(db *DB, tableName string) *UserRepo {
	return &UserRepo{db: db, tableName: tableName}
}

// Create inserts u together with the email and username guard items in one transaction,
// so a user is either fully created or not at all. A taken email or username yields
// domain.ErrEmailTaken or domain.ErrUsernameTaken.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	client, err := r.db.Client(ctx)
	if err != nil {
		return err
	}
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	notExists := aws.String(fmt.Sprintf("attribute_not_exists(%s)", fieldUserID))
	_, err = client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{TableName: aws.String(r.tableName), Item: item, ConditionExpression: notExists}},
			{Put: &types.Put{TableName: aws.String(r.tableName), Item: strKey(fieldUserID, guardEmailPrefix+u.Email), ConditionExpression: notExists}},
			{Put: &types.Put{TableName: aws.String(r.tableName), Item: strKey(fieldUserID, guardUsernamePrefix+u.Username), ConditionExpression: notExists}},
		},
	})
	if err == nil {
		return nil
	}
	if !isConditionFailed(err) {
		return fmt.Errorf("create user: %w", err)
	}
	return conflictFromReasons(err)
}

// conflictFromReasons maps the failed transaction item back to the violated constraint.
// Item 1 is the email guard, item 2 the username guard.
func conflictFromReasons(err error) error {
	if tce, ok := asTransactionCanceled(err); ok {
		for i, reason := range tce.CancellationReasons {
			if !isConflictReason(reason) {
				continue
			}
			if i == 2 {
				return domain.ErrUsernameTaken
			}
			return domain.ErrEmailTaken
		}
	}
	return domain.ErrEmailTaken
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.queryGSI(ctx, indexUsername, fieldUsername, username)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.queryGSI(ctx, indexEmail, fieldEmail, email)
}

func (r *UserRepo) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	client, err := r.db.Client(ctx)
	if err != nil {
		return err
	}
	updates[fieldUpdatedAt] = time.Now().UTC().Format(time.RFC3339)
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldUserID, userID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String(fmt.Sprintf("attribute_exists(%s)", fieldUserID)),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return domain.ErrNotFound
	}
	return err
}

func (r *UserRepo) queryGSI(ctx context.Context, index, attr, value string) (*domain.User, error) {
	client, err := r.db.Client(ctx)
	if err != nil {
		return nil, err
	}
	out, err := client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: value}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, domain.ErrNotFound
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Items[0], &u); err != nil {
		return nil, err
	}
	return &u, nil
}
