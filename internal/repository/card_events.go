package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/sbu-europe/fintalk/internal/domain"
)

const (
	skPrefixEvent = "EVT#"
	eventTTL      = 90 * 24 * time.Hour
)

// dynamodbAPI is the minimal DynamoDB interface required by CardEventLog.
// *dynamodb.Client satisfies it.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// CardEventLog is the audit trail of card status changes, one partition per
// phone number.
type CardEventLog struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

func NewCardEventLog(api dynamodbAPI, tableName string) (*CardEventLog, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &CardEventLog{api: api, tableName: tableName, now: time.Now}, nil
}

func cardPK(phone string) string {
	return "CARD#" + phone
}

func eventSK(ts time.Time) string {
	return skPrefixEvent + ts.UTC().Format(time.RFC3339Nano)
}

// Record appends an event. OccurredAt and TTL are filled in when zero.
func (l *CardEventLog) Record(ctx context.Context, evt domain.CardEvent) error {
	if strings.TrimSpace(evt.PhoneNumber) == "" {
		return errors.New("repository: Record: phone number is required")
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = l.now()
	}
	evt.OccurredAt = evt.OccurredAt.UTC()
	if evt.TTL == 0 {
		evt.TTL = evt.OccurredAt.Add(eventTTL).Unix()
	}

	_, err := l.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(l.tableName),
		Item:                eventItem(evt),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: Record: %w", err)
	}
	return nil
}

// History returns up to limit of the most recent events for a phone number,
// oldest first.
func (l *CardEventLog) History(ctx context.Context, phone string, limit int) ([]domain.CardEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	out, err := l.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(l.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: cardPK(phone)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixEvent},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: History query: %w", err)
	}

	events := make([]domain.CardEvent, 0, len(out.Items))
	for _, item := range out.Items {
		evt, err := itemToEvent(item)
		if err != nil {
			return nil, fmt.Errorf("repository: History unmarshal: %w", err)
		}
		events = append(events, evt)
	}
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

func eventItem(evt domain.CardEvent) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":          &types.AttributeValueMemberS{Value: cardPK(evt.PhoneNumber)},
		"SK":          &types.AttributeValueMemberS{Value: eventSK(evt.OccurredAt)},
		"phoneNumber": &types.AttributeValueMemberS{Value: evt.PhoneNumber},
		"username":    &types.AttributeValueMemberS{Value: evt.Username},
		"action":      &types.AttributeValueMemberS{Value: evt.Action},
		"status":      &types.AttributeValueMemberS{Value: string(evt.Status)},
		"occurredAt":  &types.AttributeValueMemberS{Value: evt.OccurredAt.Format(time.RFC3339Nano)},
		"ttl":         &types.AttributeValueMemberN{Value: strconv.FormatInt(evt.TTL, 10)},
	}
}

func itemToEvent(item map[string]types.AttributeValue) (domain.CardEvent, error) {
	phone, err := strAttr(item, "phoneNumber")
	if err != nil {
		return domain.CardEvent{}, err
	}
	action, err := strAttr(item, "action")
	if err != nil {
		return domain.CardEvent{}, err
	}
	occurred, err := strAttr(item, "occurredAt")
	if err != nil {
		return domain.CardEvent{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, occurred)
	if err != nil {
		return domain.CardEvent{}, fmt.Errorf("repository: parse occurredAt: %w", err)
	}
	username, _ := strAttr(item, "username") // allow empty
	status, _ := strAttr(item, "status")
	ttl, _ := intAttr(item, "ttl")

	return domain.CardEvent{
		PhoneNumber: phone,
		Username:    username,
		Action:      action,
		Status:      domain.CardStatus(status),
		OccurredAt:  ts,
		TTL:         int64(ttl),
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
