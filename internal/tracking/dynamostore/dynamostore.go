// Package dynamostore implements tracking.Store on a DynamoDB table keyed by
// the record id. Write-once fields are enforced with conditional updates so
// concurrent writers cannot overwrite them.
package dynamostore

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"

	"github.com/iburimskiy/sayyes/internal/tracking"
)

// API is the subset of *dynamodb.Client the store uses.
type API interface {
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

type Store struct {
	api       API
	table     string
	pollEvery time.Duration
	log       *slog.Logger
}

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithPollInterval sets how often subscriptions re-read the item.
func WithPollInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.pollEvery = d
		}
	}
}

func New(api API, table string, opts ...Option) *Store {
	s := &Store{
		api:       api,
		table:     table,
		pollEvery: time.Second,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check verifies the table is reachable. It never creates or alters it.
func (s *Store) Check(ctx context.Context) error {
	_, err := s.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.table),
	})
	return errors.Wrapf(err, "describe table %s", s.table)
}

func (s *Store) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

func (s *Store) Apply(ctx context.Context, id string, m tracking.Mutation) (*tracking.Record, error) {
	if id == "" {
		return nil, tracking.ErrEmptyID
	}
	if m.EscapeCount < 0 {
		return nil, tracking.ErrNegativeN
	}
	at := m.At.UTC().Truncate(time.Millisecond)
	atAV, err := attributevalue.Marshal(at)
	if err != nil {
		return nil, errors.Wrap(err, "marshal timestamp")
	}

	switch m.Op {
	case tracking.OpCreate:
		return s.create(ctx, id, at)

	case tracking.OpOpen:
		// Creates the item when the open races ahead of the owner's create.
		return s.update(ctx, id, m.Op, &dynamodb.UpdateItemInput{
			UpdateExpression: aws.String("SET opened = if_not_exists(opened, :at), created = if_not_exists(created, :at), " +
				"lastUpdated = if_not_exists(lastUpdated, :at), escapeCount = if_not_exists(escapeCount, :zero)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":at":   atAV,
				":zero": &types.AttributeValueMemberN{Value: "0"},
			},
		})

	case tracking.OpEscape, tracking.OpAnswer:
		expr := "SET escapeCount = :n, lastUpdated = :at"
		if m.Op == tracking.OpAnswer {
			expr += ", answered = if_not_exists(answered, :at)"
		}
		n, err := attributevalue.Marshal(m.EscapeCount)
		if err != nil {
			return nil, errors.Wrap(err, "marshal escape count")
		}
		return s.update(ctx, id, m.Op, &dynamodb.UpdateItemInput{
			UpdateExpression:    aws.String(expr),
			ConditionExpression: aws.String("attribute_exists(id)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":at": atAV,
				":n":  n,
			},
		})
	}
	return nil, errors.Wrapf(tracking.ErrInvalidOp, "op %d", m.Op)
}

func (s *Store) create(ctx context.Context, id string, at time.Time) (*tracking.Record, error) {
	rec := tracking.Record{ID: id, Created: at, LastUpdated: at}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return nil, errors.Wrap(err, "marshal record")
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if isConditionFailed(err) {
		return s.Get(ctx, id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", id)
	}
	return &rec, nil
}

func (s *Store) update(ctx context.Context, id string, op tracking.Op, in *dynamodb.UpdateItemInput) (*tracking.Record, error) {
	in.TableName = aws.String(s.table)
	in.Key = s.key(id)
	in.ReturnValues = types.ReturnValueAllNew

	out, err := s.api.UpdateItem(ctx, in)
	if isConditionFailed(err) {
		return nil, errors.Wrapf(tracking.ErrNotFound, "%s %s", op, id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", op, id)
	}
	var rec tracking.Record
	if err := attributevalue.UnmarshalMap(out.Attributes, &rec); err != nil {
		return nil, errors.Wrap(err, "unmarshal record")
	}
	return &rec, nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return err != nil && errors.As(err, &ccf)
}

func (s *Store) Get(ctx context.Context, id string) (*tracking.Record, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", id)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec tracking.Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, errors.Wrap(err, "unmarshal record")
	}
	return &rec, nil
}

// Subscribe polls the item and delivers it whenever it differs from the last
// delivered snapshot. Failed polls are skipped.
func (s *Store) Subscribe(ctx context.Context, id string, fn func(*tracking.Record)) (func(), error) {
	if id == "" {
		return nil, tracking.ErrEmptyID
	}
	last, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	fn(last.Clone())

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(s.pollEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			cur, err := s.Get(ctx, id)
			if err != nil {
				if ctx.Err() == nil {
					s.log.Debug("poll failed", "sid", id, "err", err)
				}
				continue
			}
			if cur.Equal(last) {
				continue
			}
			last = cur
			fn(cur.Clone())
		}
	}()
	return cancel, nil
}
