package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"

	"github.com/meetscribe/minuted/internal/model"
)

// StatusCreatedAtIndex is the GSI used for dedup lookups and listings.
const StatusCreatedAtIndex = "status-createdAt-index"

// ErrNotFound is returned when a meeting record does not exist.
var ErrNotFound = errors.New("meeting record not found")

// ErrConditionFailed is returned when a conditional update loses the race,
// e.g. two concurrent retries of the same failed record.
var ErrConditionFailed = errors.New("conditional update failed")

// dedupStatuses are the statuses checked, in order, when deciding whether an
// external bucket notification is a redelivery for media already in flight.
var dedupStatuses = []model.Status{
	model.StatusPending,
	model.StatusProcessing,
	model.StatusReported,
	model.StatusCompleted,
}

type dynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// MeetingStore persists MeetingRecords in a DynamoDB table with composite key
// (meetingId, createdAt) and the (status, createdAt) GSI.
type MeetingStore struct {
	api   dynamoAPI
	table string
	log   zerolog.Logger
	now   func() time.Time
}

func NewMeetingStore(awsCfg aws.Config, table string, log zerolog.Logger) *MeetingStore {
	return &MeetingStore{
		api:   dynamodb.NewFromConfig(awsCfg),
		table: table,
		log:   log.With().Str("component", "meeting-store").Logger(),
		now:   time.Now,
	}
}

// NewMeetingStoreWithAPI builds a MeetingStore around an explicit API, for tests.
func NewMeetingStoreWithAPI(api dynamoAPI, table string, log zerolog.Logger) *MeetingStore {
	return &MeetingStore{api: api, table: table, log: log, now: time.Now}
}

func recordKey(meetingID, createdAt string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"meetingId": &types.AttributeValueMemberS{Value: meetingID},
		"createdAt": &types.AttributeValueMemberS{Value: createdAt},
	}
}

// Get fetches a record by its composite key.
func (s *MeetingStore) Get(ctx context.Context, meetingID, createdAt string) (*model.MeetingRecord, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.table,
		Key:       recordKey(meetingID, createdAt),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb get %s/%s: %w", meetingID, createdAt, err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}

	var rec model.MeetingRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record %s: %w", meetingID, err)
	}
	return &rec, nil
}

// GetByID fetches the record for meetingID without knowing createdAt, used by
// the retry contract. The newest item wins if historical duplicates exist.
func (s *MeetingStore) GetByID(ctx context.Context, meetingID string) (*model.MeetingRecord, error) {
	out, err := s.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              &s.table,
		KeyConditionExpression: aws.String("meetingId = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: meetingID},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb query %s: %w", meetingID, err)
	}
	if len(out.Items) == 0 {
		return nil, ErrNotFound
	}

	var rec model.MeetingRecord
	if err := attributevalue.UnmarshalMap(out.Items[0], &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record %s: %w", meetingID, err)
	}
	return &rec, nil
}

// Put writes a full record, unconditionally.
func (s *MeetingStore) Put(ctx context.Context, rec *model.MeetingRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", rec.MeetingID, err)
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.table,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("dynamodb put %s: %w", rec.MeetingID, err)
	}
	return nil
}

// FindByS3Key looks for an existing record holding s3Key in any in-flight or
// terminal-success status. One Limit=1 GSI query per status beats a table
// scan; external notifications are redelivered often enough to matter.
func (s *MeetingStore) FindByS3Key(ctx context.Context, s3Key string) (*model.MeetingRecord, error) {
	for _, status := range dedupStatuses {
		out, err := s.api.Query(ctx, &dynamodb.QueryInput{
			TableName:              &s.table,
			IndexName:              aws.String(StatusCreatedAtIndex),
			KeyConditionExpression: aws.String("#st = :st"),
			FilterExpression:       aws.String("s3Key = :key"),
			ExpressionAttributeNames: map[string]string{
				"#st": "status",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":st":  &types.AttributeValueMemberS{Value: string(status)},
				":key": &types.AttributeValueMemberS{Value: s3Key},
			},
			Limit: aws.Int32(1),
		})
		if err != nil {
			return nil, fmt.Errorf("dynamodb dedup query status=%s: %w", status, err)
		}
		if len(out.Items) > 0 {
			var rec model.MeetingRecord
			if err := attributevalue.UnmarshalMap(out.Items[0], &rec); err != nil {
				return nil, fmt.Errorf("unmarshal dedup hit: %w", err)
			}
			return &rec, nil
		}
	}
	return nil, nil
}

// update applies a SET expression built from fields, with an optional REMOVE
// list and condition expression. Every update stamps updatedAt.
func (s *MeetingStore) update(ctx context.Context, meetingID, createdAt string, fields map[string]any, remove []string, condition string, condNames map[string]string, condValues map[string]any) error {
	fields["updatedAt"] = model.Timestamp(s.now())

	names := map[string]string{}
	values := map[string]types.AttributeValue{}

	// Deterministic expression order keeps logs and tests stable.
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sets := make([]string, 0, len(keys))
	for i, k := range keys {
		av, err := attributevalue.Marshal(fields[k])
		if err != nil {
			return fmt.Errorf("marshal field %s: %w", k, err)
		}
		nameRef := fmt.Sprintf("#f%d", i)
		valueRef := fmt.Sprintf(":v%d", i)
		names[nameRef] = k
		values[valueRef] = av
		sets = append(sets, nameRef+" = "+valueRef)
	}

	expr := "SET " + strings.Join(sets, ", ")
	if len(remove) > 0 {
		refs := make([]string, 0, len(remove))
		for i, k := range remove {
			nameRef := fmt.Sprintf("#r%d", i)
			names[nameRef] = k
			refs = append(refs, nameRef)
		}
		expr += " REMOVE " + strings.Join(refs, ", ")
	}

	for k, v := range condNames {
		names[k] = v
	}
	for k, v := range condValues {
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal condition value %s: %w", k, err)
		}
		values[k] = av
	}

	in := &dynamodb.UpdateItemInput{
		TableName:                 &s.table,
		Key:                       recordKey(meetingID, createdAt),
		UpdateExpression:          &expr,
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}
	if condition != "" {
		in.ConditionExpression = &condition
	}

	if _, err := s.api.UpdateItem(ctx, in); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrConditionFailed
		}
		return fmt.Errorf("dynamodb update %s/%s: %w", meetingID, createdAt, err)
	}
	return nil
}

// SetProcessing marks the record picked up by the transcription stage.
func (s *MeetingStore) SetProcessing(ctx context.Context, meetingID, createdAt string) error {
	return s.update(ctx, meetingID, createdAt, map[string]any{
		"status": model.StatusProcessing,
		"stage":  model.StageTranscribing,
	}, nil, "", nil, nil)
}

// SetStage advances only the fine-grained stage label.
func (s *MeetingStore) SetStage(ctx context.Context, meetingID, createdAt string, stage model.Stage) error {
	return s.update(ctx, meetingID, createdAt, map[string]any{
		"stage": stage,
	}, nil, "", nil, nil)
}

// MarkTranscribed stores per-track transcript keys (empty string when a track
// was disabled or failed) and advances to transcribed/reporting.
func (s *MeetingStore) MarkTranscribed(ctx context.Context, meetingID, createdAt, transcribeKey, whisperKey, funasrKey string) error {
	return s.update(ctx, meetingID, createdAt, map[string]any{
		"status":        model.StatusTranscribed,
		"stage":         model.StageReporting,
		"transcribeKey": transcribeKey,
		"whisperKey":    whisperKey,
		"funasrKey":     funasrKey,
	}, nil, "", nil, nil)
}

// MarkReported stores the report key and advances to reported/exporting.
func (s *MeetingStore) MarkReported(ctx context.Context, meetingID, createdAt, reportKey string) error {
	return s.update(ctx, meetingID, createdAt, map[string]any{
		"status":    model.StatusReported,
		"stage":     model.StageExporting,
		"reportKey": reportKey,
	}, nil, "", nil, nil)
}

// MarkCompleted marks the job terminal after delivery.
func (s *MeetingStore) MarkCompleted(ctx context.Context, meetingID, createdAt string) error {
	return s.update(ctx, meetingID, createdAt, map[string]any{
		"status":     model.StatusCompleted,
		"stage":      model.StageDone,
		"exportedAt": model.Timestamp(s.now()),
	}, nil, "", nil, nil)
}

// MarkFailed records a failure with a human-readable message.
func (s *MeetingStore) MarkFailed(ctx context.Context, meetingID, createdAt, errorMessage string) error {
	return s.update(ctx, meetingID, createdAt, map[string]any{
		"status":       model.StatusFailed,
		"stage":        model.StageFailed,
		"errorMessage": errorMessage,
	}, nil, "", nil, nil)
}

// ResetForRetry flips a failed record back to processing/transcribing and
// clears the error message, conditioned on status still being failed.
// Returns ErrConditionFailed when a concurrent retry won.
func (s *MeetingStore) ResetForRetry(ctx context.Context, meetingID, createdAt string) error {
	return s.update(ctx, meetingID, createdAt, map[string]any{
		"status": model.StatusProcessing,
		"stage":  model.StageTranscribing,
	}, []string{"errorMessage"}, "#st = :expected", map[string]string{
		"#st": "status",
	}, map[string]any{
		":expected": model.StatusFailed,
	})
}
