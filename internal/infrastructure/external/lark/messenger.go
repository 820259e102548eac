package lark

import (
	"context"
	"encoding/json"
	"fmt"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/employee-portal/internal/application/port"
)

const receiveIDTypeEmail = "email"

// messageCreator is the slice of the IM API the messenger needs
type messageCreator interface {
	Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error)
}

// Messenger implements port.MessageSender over the Lark IM API
type Messenger struct {
	messages messageCreator
	logger   *zap.Logger
}

// NewMessenger creates a new Lark message sender
func NewMessenger(client *SDKClient, logger *zap.Logger) *Messenger {
	return &Messenger{
		messages: client.GetClient().Im.Message,
		logger:   logger,
	}
}

// SendText sends a text message addressed by the recipient's email
func (m *Messenger) SendText(ctx context.Context, email string, content string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	if content == "" {
		return fmt.Errorf("content cannot be empty")
	}

	body, err := json.Marshal(map[string]string{"text": content})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDTypeEmail).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(email).
			MsgType(larkim.MsgTypeText).
			Content(string(body)).
			Build()).
		Build()

	resp, err := m.messages.Create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send message", zap.String("email", email), zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}
	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("email", email),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	m.logger.Info("Message sent", zap.String("message_id", messageID), zap.String("email", email))
	return nil
}

// LogSender is used when Lark is disabled; it only logs what would be sent
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a sender that writes messages to the log
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// SendText implements port.MessageSender
func (s *LogSender) SendText(_ context.Context, email string, content string) error {
	s.logger.Info("Lark disabled, message not sent",
		zap.String("email", email),
		zap.String("content", content))
	return nil
}

var (
	_ port.MessageSender = (*Messenger)(nil)
	_ port.MessageSender = (*LogSender)(nil)
)
