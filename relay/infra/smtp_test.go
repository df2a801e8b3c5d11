package infra

import (
	"context"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"summary-gateway/relay/domain"
)

type receivedMail struct {
	from string
	to   []string
	data string
}

// startFakeSMTP atende uma única conversa SMTP sem TLS nem AUTH.
// Destinatários em reject recebem 550.
func startFakeSMTP(t *testing.T, reject ...string) (host string, port int, got <-chan receivedMail) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	out := make(chan receivedMail, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

		tp := textproto.NewConn(conn)
		_ = tp.PrintfLine("220 localhost ESMTP fake")

		var m receivedMail
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			upper := strings.ToUpper(line)
			switch {
			case strings.HasPrefix(upper, "EHLO"):
				_ = tp.PrintfLine("250-localhost")
				_ = tp.PrintfLine("250 8BITMIME")
			case strings.HasPrefix(upper, "HELO"):
				_ = tp.PrintfLine("250 localhost")
			case strings.HasPrefix(upper, "MAIL FROM:"):
				m.from = between(line, "<", ">")
				_ = tp.PrintfLine("250 OK")
			case strings.HasPrefix(upper, "RCPT TO:"):
				rcpt := between(line, "<", ">")
				rejected := false
				for _, r := range reject {
					if r == rcpt {
						rejected = true
					}
				}
				if rejected {
					_ = tp.PrintfLine("550 5.1.1 mailbox unavailable")
					continue
				}
				m.to = append(m.to, rcpt)
				_ = tp.PrintfLine("250 OK")
			case upper == "DATA":
				_ = tp.PrintfLine("354 go ahead")
				data, err := tp.ReadDotBytes()
				if err != nil {
					return
				}
				m.data = string(data)
				_ = tp.PrintfLine("250 queued")
			case upper == "QUIT":
				_ = tp.PrintfLine("221 bye")
				out <- m
				return
			default:
				_ = tp.PrintfLine("250 OK")
			}
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port, out
}

func between(s, open, close string) string {
	_, rest, ok := strings.Cut(s, open)
	if !ok {
		return ""
	}
	v, _, _ := strings.Cut(rest, close)
	return v
}

func TestSMTPMailer_Send_DeliversPlainText(t *testing.T) {
	host, port, got := startFakeSMTP(t)

	m, err := NewSMTPMailer(SMTPConfig{Host: host, Port: port, From: "relay@example.com"})
	require.NoError(t, err)
	m.now = func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) }

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err = m.Send(ctx, domain.Message{
		Subject:    "Résumé da reunião",
		Body:       "Line one\n.hidden dot line",
		Recipients: []string{"a@b.com", "c@d.org"},
	})
	require.NoError(t, err)

	select {
	case mail := <-got:
		assert.Equal(t, "relay@example.com", mail.from)
		assert.Equal(t, []string{"a@b.com", "c@d.org"}, mail.to)
		assert.Contains(t, mail.data, "To: a@b.com, c@d.org")
		assert.Contains(t, mail.data, "Subject: =?utf-8?q?")
		assert.Contains(t, mail.data, "Content-Type: text/plain; charset=\"utf-8\"")
		assert.Contains(t, mail.data, "Line one\n.hidden dot line")
	case <-time.After(3 * time.Second):
		t.Fatal("fake server did not receive the message")
	}
}

func TestSMTPMailer_Send_RejectedRecipient(t *testing.T) {
	host, port, _ := startFakeSMTP(t, "ghost@b.com")

	m, err := NewSMTPMailer(SMTPConfig{Host: host, Port: port, From: "relay@example.com"})
	require.NoError(t, err)

	err = m.Send(context.Background(), domain.Message{
		Body:       "x",
		Recipients: []string{"a@b.com", "ghost@b.com"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid email recipient")
	assert.Contains(t, err.Error(), "550")
}

func TestSMTPMailer_Send_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	m, err := NewSMTPMailer(SMTPConfig{Host: "127.0.0.1", Port: port, From: "relay@example.com"})
	require.NoError(t, err)

	err = m.Send(context.Background(), domain.Message{Body: "x", Recipients: []string{"a@b.com"}})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "smtp connection to 127.0.0.1:"+strconv.Itoa(port)), err.Error())
}

func TestNewSMTPMailer_Validation(t *testing.T) {
	_, err := NewSMTPMailer(SMTPConfig{From: "x@y.com"})
	assert.Error(t, err)

	_, err = NewSMTPMailer(SMTPConfig{Host: "smtp.example.com"})
	assert.Error(t, err)

	m, err := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Username: "user@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", m.cfg.From)
	assert.Equal(t, 587, m.cfg.Port)
}
