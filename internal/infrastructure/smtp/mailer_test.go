package smtp

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-docshare/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(ctx context.Context, to, subject, body string) error {
	return m.Called(ctx, to, subject, body).Error(0)
}

func TestOTPNotifier_SendsCode(t *testing.T) {
	m := &mockMailer{}
	m.On("SendEmail", mock.Anything, "a@x.com", "Your verification code", mock.MatchedBy(func(body string) bool {
		return assert.Contains(t, body, "482913") && assert.Contains(t, body, "10 minutes")
	})).Return(nil)

	n := NewOTPNotifier(m, 10*time.Minute)
	require.NoError(t, n.SendOTP(context.Background(), "a@x.com", "482913"))
	m.AssertExpectations(t)
}

func TestOTPNotifier_CancelledContext(t *testing.T) {
	m := &mockMailer{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewOTPNotifier(m, time.Minute).SendOTP(ctx, "a@x.com", "111111")
	assert.ErrorIs(t, err, context.Canceled)
	m.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func mailerFor(t *testing.T, ln net.Listener) Mailer {
	t.Helper()
	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	return NewMailer(&config.Config{SMTPHost: host, SMTPPort: port, SMTPFrom: "noreply@example.com"})
}

func TestMailer_SilentServerHonoursDeadline(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	var mu sync.Mutex
	var held []net.Conn
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			held = append(held, c)
			mu.Unlock()
		}
	}()
	defer func() {
		mu.Lock()
		defer mu.Unlock()
		for _, c := range held {
			c.Close()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = NewOTPNotifier(mailerFor(t, ln), time.Minute).SendOTP(ctx, "a@x.com", "482913")
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Less(t, elapsed, 2*time.Second)
}

// fakeSMTP answers one session with canned replies and records the message.
func fakeSMTP(t *testing.T, ln net.Listener, got chan<- string) {
	t.Helper()
	c, err := ln.Accept()
	if err != nil {
		return
	}
	defer c.Close()
	r := bufio.NewReader(c)
	reply := func(s string) { _, _ = c.Write([]byte(s + "\r\n")) }

	reply("220 test ESMTP")
	var data strings.Builder
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			reply("250 test")
		case strings.HasPrefix(cmd, "MAIL"), strings.HasPrefix(cmd, "RCPT"):
			reply("250 OK")
		case cmd == "DATA":
			reply("354 go ahead")
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				data.WriteString(l)
			}
			reply("250 queued")
		case cmd == "QUIT":
			reply("221 bye")
			got <- data.String()
			return
		default:
			reply("500 unknown")
		}
	}
}

func TestMailer_DeliversMessage(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	got := make(chan string, 1)
	go fakeSMTP(t, ln, got)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, mailerFor(t, ln).SendEmail(ctx, "a@x.com", "Your verification code", "code 482913"))

	select {
	case msg := <-got:
		assert.Contains(t, msg, "To: a@x.com")
		assert.Contains(t, msg, "Subject: Your verification code")
		assert.Contains(t, msg, "code 482913")
	case <-time.After(5 * time.Second):
		t.Fatal("server never saw QUIT")
	}
}
