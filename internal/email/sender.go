package email

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Message es un correo listo para enviar.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender define la interfaz para envio de correos transaccionales.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) Send(_ context.Context, _ Message) error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}

// LogSender no envia nada: deja el correo en el log. Solo para desarrollo.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	if msg.To == "" {
		return errors.New("to email is required")
	}
	s.logger.Info("email (dev mode)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("text", msg.Text),
	)
	return nil
}
