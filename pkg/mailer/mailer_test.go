package mailer

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/require"

	"github.com/muhamadhazim/fishit-marketplace/pkg/config"
	"github.com/muhamadhazim/fishit-marketplace/pkg/logger"
)

type fakeSender struct {
	status int
	err    error
	sent   []*mail.SGMailV3
}

func (f *fakeSender) SendWithContext(_ context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	f.sent = append(f.sent, email)
	if f.err != nil {
		return nil, f.err
	}
	return &rest.Response{StatusCode: f.status, Body: "body"}, nil
}

func TestSendgridMailerStatusClassification(t *testing.T) {
	msg := Message{To: "buyer@x.com", Subject: "Invoice", Text: "hi"}

	ok := &fakeSender{status: 202}
	m := &SendgridMailer{sender: ok, from: mail.NewEmail("Fishit", "no-reply@fishit.local")}
	require.NoError(t, m.Send(context.Background(), msg))
	require.Len(t, ok.sent, 1)
	require.Equal(t, "Invoice", ok.sent[0].Subject)

	m.sender = &fakeSender{status: 503}
	err := m.Send(context.Background(), msg)
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrPermanent))

	m.sender = &fakeSender{status: 400}
	require.ErrorIs(t, m.Send(context.Background(), msg), ErrPermanent)

	require.ErrorIs(t, m.Send(context.Background(), Message{Subject: "no recipient"}), ErrPermanent)
}

func TestNewFallsBackToLogMailer(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})

	m := New(config.SendgridConfig{}, logg)
	_, isLog := m.(*LogMailer)
	require.True(t, isLog)
	require.NoError(t, m.Send(context.Background(), Message{To: "a@b.c", Subject: "Verify"}))
	require.Contains(t, buf.String(), "email.logged")

	m = New(config.SendgridConfig{APIKey: "SG.key", DefaultFrom: "x@y.z"}, logg)
	_, isSendgrid := m.(*SendgridMailer)
	require.True(t, isSendgrid)
}
