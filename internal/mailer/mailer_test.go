package mailer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	to       []string
	subjects []string
	bodies   []string
	fail     bool
}

func (s *recordingSender) Send(to, subject, htmlBody string) error {
	if s.fail {
		return errors.New("smtp down")
	}
	s.to = append(s.to, to)
	s.subjects = append(s.subjects, subject)
	s.bodies = append(s.bodies, htmlBody)
	return nil
}

func TestSendRendersTemplate(t *testing.T) {
	sender := &recordingSender{}
	m := &Mailer{Sender: sender}

	m.SendOTP("ada@shop.test", "123456", "password reset")

	require.Len(t, sender.to, 1)
	require.Equal(t, "ada@shop.test", sender.to[0])
	require.Contains(t, sender.bodies[0], "123456")
	require.Contains(t, sender.bodies[0], "password reset")
}

func TestSendFailureDoesNotPropagate(t *testing.T) {
	m := &Mailer{Sender: &recordingSender{fail: true}}
	// Must not panic or surface the error.
	m.SendWelcome("ada@shop.test", "Ada")
}

func TestNilMailerIsSafe(t *testing.T) {
	var m *Mailer
	m.SendWelcome("ada@shop.test", "Ada")

	empty := &Mailer{}
	empty.SendOrderConfirmation("ada@shop.test", 1, 10)
}
