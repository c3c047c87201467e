package mail

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/rs/zerolog"
)

type fakeSESAPI struct {
	in  *sesv2.SendEmailInput
	err error
}

func (f *fakeSESAPI) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("id-1")}, nil
}

func TestSendHTML(t *testing.T) {
	api := &fakeSESAPI{}
	s := NewSESSenderWithAPI(api, "minutes@example.com", zerolog.Nop())

	err := s.SendHTML(context.Background(),
		[]string{"a@example.com"}, []string{"ops@example.com"},
		"会议纪要 - 周会", "<html>body</html>")
	if err != nil {
		t.Fatal(err)
	}

	in := api.in
	if aws.ToString(in.FromEmailAddress) != "minutes@example.com" {
		t.Errorf("from = %q", aws.ToString(in.FromEmailAddress))
	}
	if len(in.Destination.ToAddresses) != 1 || in.Destination.ToAddresses[0] != "a@example.com" {
		t.Errorf("to = %v", in.Destination.ToAddresses)
	}
	if len(in.Destination.BccAddresses) != 1 || in.Destination.BccAddresses[0] != "ops@example.com" {
		t.Errorf("bcc = %v", in.Destination.BccAddresses)
	}

	msg := in.Content.Simple
	if aws.ToString(msg.Subject.Data) != "会议纪要 - 周会" {
		t.Errorf("subject = %q", aws.ToString(msg.Subject.Data))
	}
	if aws.ToString(msg.Subject.Charset) != "UTF-8" {
		t.Errorf("charset = %q", aws.ToString(msg.Subject.Charset))
	}
	if aws.ToString(msg.Body.Html.Data) != "<html>body</html>" {
		t.Errorf("body = %q", aws.ToString(msg.Body.Html.Data))
	}
}

func TestSendHTMLValidation(t *testing.T) {
	api := &fakeSESAPI{}

	t.Run("no_sender", func(t *testing.T) {
		s := NewSESSenderWithAPI(api, "", zerolog.Nop())
		if err := s.SendHTML(context.Background(), []string{"a@example.com"}, nil, "s", "b"); err == nil {
			t.Error("expected error with empty sender")
		}
	})

	t.Run("no_recipients", func(t *testing.T) {
		s := NewSESSenderWithAPI(api, "minutes@example.com", zerolog.Nop())
		if err := s.SendHTML(context.Background(), nil, nil, "s", "b"); err == nil {
			t.Error("expected error with no recipients")
		}
	})
}
