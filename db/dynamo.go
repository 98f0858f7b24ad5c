package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"formsystem/backend/fault"
	"formsystem/backend/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const counterName = "submissions"

// DynamoStore is the record store adapter: submissions live in one table
// keyed by a monotonically increasing numeric id, the duplicate index is a
// second table of normalized emails with a reference count, and the id
// high-water mark is an atomic counter item.
type DynamoStore struct {
	client           *dynamodb.Client
	submissionsTable string
	emailsTable      string
	countersTable    string
}

func NewDynamoStore(ctx context.Context) (*DynamoStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %v", err)
	}

	return &DynamoStore{
		client:           dynamodb.NewFromConfig(cfg),
		submissionsTable: tableName("SUBMISSIONS_TABLE", "FormSubmissions"),
		emailsTable:      tableName("EMAILS_TABLE", "FormEmails"),
		countersTable:    tableName("COUNTERS_TABLE", "FormCounters"),
	}, nil
}

func tableName(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

// Append assigns the next id, stamps it on the submission, and persists the
// record. The id counter is advanced atomically, so ids are unique and
// strictly increasing even under concurrent submits.
func (s *DynamoStore) Append(ctx context.Context, submission *types.Submission) (int64, error) {
	id, err := s.nextID(ctx)
	if err != nil {
		return 0, err
	}
	submission.ID = id

	item, err := attributevalue.MarshalMap(submission)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal submission: %v", err)
	}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.submissionsTable),
		Item:      item,
	}); err != nil {
		return 0, fmt.Errorf("%w: failed to save submission: %v", fault.ErrStoreUnavailable, err)
	}

	return id, nil
}

func (s *DynamoStore) nextID(ctx context.Context) (int64, error) {
	result, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.countersTable),
		Key: map[string]dbtypes.AttributeValue{
			"name": &dbtypes.AttributeValueMemberS{Value: counterName},
		},
		UpdateExpression: aws.String("ADD #value :one"),
		ExpressionAttributeNames: map[string]string{
			"#value": "value",
		},
		ExpressionAttributeValues: map[string]dbtypes.AttributeValue{
			":one": &dbtypes.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: dbtypes.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: failed to allocate id: %v", fault.ErrStoreUnavailable, err)
	}

	return numberAttribute(result.Attributes, "value")
}

// Get returns the submission with the given id, or nil when absent.
func (s *DynamoStore) Get(ctx context.Context, id int64) (*types.Submission, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.submissionsTable),
		Key:       submissionKey(id),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get submission %d: %v", fault.ErrStoreUnavailable, id, err)
	}

	if result.Item == nil {
		return nil, nil
	}

	var submission types.Submission
	if err := attributevalue.UnmarshalMap(result.Item, &submission); err != nil {
		return nil, fmt.Errorf("failed to unmarshal submission: %v", err)
	}
	return &submission, nil
}

// Scan returns one window of submissions plus the total matching count.
// DynamoDB cannot order a scan, so the adapter materializes the matching
// records, orders them (tie-break id ascending), and applies the window.
func (s *DynamoStore) Scan(ctx context.Context, params types.ScanParams) ([]types.Submission, int64, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(s.submissionsTable),
	}
	if params.Duplicate != nil {
		input.FilterExpression = aws.String("is_duplicate = :dup")
		input.ExpressionAttributeValues = map[string]dbtypes.AttributeValue{
			":dup": &dbtypes.AttributeValueMemberBOOL{Value: *params.Duplicate},
		}
	}

	var submissions []types.Submission
	for {
		result, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: failed to scan submissions: %v", fault.ErrStoreUnavailable, err)
		}

		var page []types.Submission
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &page); err != nil {
			return nil, 0, fmt.Errorf("failed to unmarshal submissions: %v", err)
		}
		submissions = append(submissions, page...)

		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	SortSubmissions(submissions, params.SortField, params.SortOrder)
	total := int64(len(submissions))
	return Window(submissions, params.Skip, params.Limit), total, nil
}

// Delete removes the submission and reports whether it existed.
func (s *DynamoStore) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(s.submissionsTable),
		Key:          submissionKey(id),
		ReturnValues: dbtypes.ReturnValueAllOld,
	})
	if err != nil {
		return false, fmt.Errorf("%w: failed to delete submission %d: %v", fault.ErrStoreUnavailable, id, err)
	}

	return len(result.Attributes) > 0, nil
}

// CountDuplicates returns the number of flagged submissions and the total
// record count.
func (s *DynamoStore) CountDuplicates(ctx context.Context) (int64, int64, error) {
	total, err := s.countSubmissions(ctx, nil)
	if err != nil {
		return 0, 0, err
	}

	flagged := true
	duplicates, err := s.countSubmissions(ctx, &flagged)
	if err != nil {
		return 0, 0, err
	}

	return duplicates, total, nil
}

func (s *DynamoStore) countSubmissions(ctx context.Context, duplicate *bool) (int64, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(s.submissionsTable),
		Select:    dbtypes.SelectCount,
	}
	if duplicate != nil {
		input.FilterExpression = aws.String("is_duplicate = :dup")
		input.ExpressionAttributeValues = map[string]dbtypes.AttributeValue{
			":dup": &dbtypes.AttributeValueMemberBOOL{Value: *duplicate},
		}
	}

	var count int64
	for {
		result, err := s.client.Scan(ctx, input)
		if err != nil {
			return 0, fmt.Errorf("%w: failed to count submissions: %v", fault.ErrStoreUnavailable, err)
		}
		count += int64(result.Count)

		if result.LastEvaluatedKey == nil {
			return count, nil
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
}

// RegisterEmail records one more submission for the normalized email and
// reports whether the email was already on record. The reference count is
// advanced atomically, so the returned flag is authoritative even when two
// submits race on a brand-new email.
func (s *DynamoStore) RegisterEmail(ctx context.Context, email string) (bool, error) {
	result, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.emailsTable),
		Key:              emailKey(email),
		UpdateExpression: aws.String("ADD refs :one"),
		ExpressionAttributeValues: map[string]dbtypes.AttributeValue{
			":one": &dbtypes.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: dbtypes.ReturnValueAllNew,
	})
	if err != nil {
		return false, fmt.Errorf("%w: failed to register email: %v", fault.ErrStoreUnavailable, err)
	}

	refs, err := numberAttribute(result.Attributes, "refs")
	if err != nil {
		return false, err
	}
	return refs > 1, nil
}

// UnregisterEmail drops one reference and removes the index entry when no
// submission for the email remains.
func (s *DynamoStore) UnregisterEmail(ctx context.Context, email string) error {
	result, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.emailsTable),
		Key:              emailKey(email),
		UpdateExpression: aws.String("ADD refs :negOne"),
		ExpressionAttributeValues: map[string]dbtypes.AttributeValue{
			":negOne": &dbtypes.AttributeValueMemberN{Value: "-1"},
		},
		ReturnValues: dbtypes.ReturnValueAllNew,
	})
	if err != nil {
		return fmt.Errorf("%w: failed to unregister email: %v", fault.ErrStoreUnavailable, err)
	}

	refs, err := numberAttribute(result.Attributes, "refs")
	if err != nil {
		return err
	}
	if refs > 0 {
		return nil
	}

	// The condition keeps a concurrent re-registration alive: the delete
	// only lands while the count is still at or below zero.
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.emailsTable),
		Key:                 emailKey(email),
		ConditionExpression: aws.String("refs <= :zero"),
		ExpressionAttributeValues: map[string]dbtypes.AttributeValue{
			":zero": &dbtypes.AttributeValueMemberN{Value: "0"},
		},
	}); err != nil {
		var conditionFailed *dbtypes.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return nil
		}
		return fmt.Errorf("%w: failed to remove email index entry: %v", fault.ErrStoreUnavailable, err)
	}
	return nil
}

// ExistingEmails returns every normalized email currently on record.
func (s *DynamoStore) ExistingEmails(ctx context.Context) ([]string, error) {
	input := &dynamodb.ScanInput{
		TableName:            aws.String(s.emailsTable),
		ProjectionExpression: aws.String("email"),
	}

	emails := []string{}
	for {
		result, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan emails: %v", fault.ErrStoreUnavailable, err)
		}

		for _, item := range result.Items {
			if attr, ok := item["email"].(*dbtypes.AttributeValueMemberS); ok {
				emails = append(emails, attr.Value)
			}
		}

		if result.LastEvaluatedKey == nil {
			return emails, nil
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
}

func submissionKey(id int64) map[string]dbtypes.AttributeValue {
	return map[string]dbtypes.AttributeValue{
		"id": &dbtypes.AttributeValueMemberN{Value: strconv.FormatInt(id, 10)},
	}
}

func emailKey(email string) map[string]dbtypes.AttributeValue {
	return map[string]dbtypes.AttributeValue{
		"email": &dbtypes.AttributeValueMemberS{Value: email},
	}
}

func numberAttribute(attributes map[string]dbtypes.AttributeValue, name string) (int64, error) {
	attr, ok := attributes[name].(*dbtypes.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("attribute %q is missing or not a number", name)
	}
	n, err := strconv.ParseInt(attr.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse attribute %q: %v", name, err)
	}
	return n, nil
}
