package queue

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"
)

// SQSClient is the subset of the SQS API the queue uses.
type SQSClient interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

const typeAttribute = "Type"

// SQSQueue carries messages over an SQS queue. The message type travels as a
// message attribute, the body as the SQS body.
type SQSQueue struct {
	client     SQSClient
	queueURL   string
	retryDelay time.Duration
}

// NewSQSQueue builds a queue on an SQS client.
func NewSQSQueue(client SQSClient, queueURL string) *SQSQueue {
	return &SQSQueue{client: client, queueURL: queueURL, retryDelay: time.Second}
}

// Publish sends one message.
func (q *SQSQueue) Publish(ctx context.Context, msg Message) error {
	_, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(msg.Body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			typeAttribute: {DataType: aws.String("String"), StringValue: aws.String(msg.Type)},
		},
	})
	return err
}

// Consume long-polls the queue. A message is deleted once handed to the
// consumer; verification jobs are advisory, so at-most-once is enough.
func (q *SQSQueue) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for ctx.Err() == nil {
			res, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
				QueueUrl:              aws.String(q.queueURL),
				MaxNumberOfMessages:   10,
				WaitTimeSeconds:       20,
				MessageAttributeNames: []string{typeAttribute},
			})
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Error().Err(err).Msg("error receiving messages")
				select {
				case <-time.After(q.retryDelay):
				case <-ctx.Done():
					return
				}
				continue
			}
			for _, m := range res.Messages {
				msg := Message{Body: []byte(aws.ToString(m.Body))}
				if attr, ok := m.MessageAttributes[typeAttribute]; ok {
					msg.Type = aws.ToString(attr.StringValue)
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
				if _, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
					QueueUrl:      aws.String(q.queueURL),
					ReceiptHandle: m.ReceiptHandle,
				}); err != nil {
					log.Warn().Err(err).Msg("delete message failed")
				}
			}
		}
	}()
	return out, nil
}
