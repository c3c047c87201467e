// Package queue wraps SQS with the receive/delete/send contract the stage
// controllers depend on. Delivery is at-least-once; a message left undeleted
// reappears after its visibility timeout.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog"
)

// Message is a received queue message. ReceiptHandle is required to delete it.
type Message struct {
	MessageID     string
	Body          string
	ReceiptHandle string
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Client is a thin SQS wrapper shared by all three stage queues.
type Client struct {
	api sqsAPI
	log zerolog.Logger
}

func New(awsCfg aws.Config, log zerolog.Logger) *Client {
	return &Client{
		api: sqs.NewFromConfig(awsCfg),
		log: log.With().Str("component", "queue").Logger(),
	}
}

// NewWithAPI builds a Client around an explicit SQS API, for tests.
func NewWithAPI(api sqsAPI, log zerolog.Logger) *Client {
	return &Client{api: api, log: log}
}

// Receive long-polls url for up to max messages, waiting at most wait.
func (c *Client) Receive(ctx context.Context, url string, max int, wait time.Duration) ([]Message, error) {
	out, err := c.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(url),
		MaxNumberOfMessages: int32(max),
		WaitTimeSeconds:     int32(wait / time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("sqs receive: %w", err)
	}

	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, Message{
			MessageID:     aws.ToString(m.MessageId),
			Body:          aws.ToString(m.Body),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
		})
	}
	return msgs, nil
}

// Delete removes a processed message from the queue.
func (c *Client) Delete(ctx context.Context, url, receiptHandle string) error {
	_, err := c.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(url),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("sqs delete: %w", err)
	}
	return nil
}

// Send enqueues body on url.
func (c *Client) Send(ctx context.Context, url, body string) error {
	_, err := c.api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(url),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("sqs send: %w", err)
	}
	return nil
}
