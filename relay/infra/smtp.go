package infra

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"summary-gateway/relay/domain"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// StartTLS faz upgrade da conexão em texto puro (porta 587).
	StartTLS bool
	// SSLTLS abre a conexão já em TLS (porta 465). Tem precedência sobre StartTLS.
	SSLTLS bool
	// DialTimeout limita só a conexão; o resto da conversa é limitado pelo ctx.
	DialTimeout time.Duration
}

// SMTPMailer implementa domain.Mailer com net/smtp.
//
// Os erros são prefixados conforme a etapa ("smtp connection",
// "authentication failed", "invalid email recipient") para que a
// classificação por texto chegue na mensagem certa.
type SMTPMailer struct {
	cfg SMTPConfig
	now func() time.Time
}

var _ domain.Mailer = (*SMTPMailer)(nil)

func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("smtp host is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.From == "" {
		return nil, errors.New("smtp sender (MAIL_FROM) is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	return &SMTPMailer{cfg: cfg, now: time.Now}, nil
}

func (m *SMTPMailer) addr() string {
	return net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
}

func (m *SMTPMailer) tlsConfig() *tls.Config {
	return &tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}
}

func (m *SMTPMailer) dial(ctx context.Context) (net.Conn, error) {
	d := &net.Dialer{Timeout: m.cfg.DialTimeout}
	if m.cfg.SSLTLS {
		td := &tls.Dialer{NetDialer: d, Config: m.tlsConfig()}
		return td.DialContext(ctx, "tcp", m.addr())
	}
	return d.DialContext(ctx, "tcp", m.addr())
}

func (m *SMTPMailer) Send(ctx context.Context, msg domain.Message) error {
	conn, err := m.dial(ctx)
	if err != nil {
		return fmt.Errorf("smtp connection to %s: %w", m.addr(), err)
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	// cancela a conversa se o ctx encerrar antes do deadline
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp connection greeting: %w", err)
	}
	defer c.Close()

	if m.cfg.StartTLS && !m.cfg.SSLTLS {
		if ok, _ := c.Extension("STARTTLS"); !ok {
			return errors.New("smtp connection: server does not support STARTTLS")
		}
		if err := c.StartTLS(m.tlsConfig()); err != nil {
			return fmt.Errorf("smtp connection starttls: %w", err)
		}
	}

	if m.cfg.Username != "" {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("authentication failed: server does not advertise AUTH")
		}
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
	}

	if err := c.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("sender rejected: %w", err)
	}
	for _, rcpt := range msg.Recipients {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("invalid email recipient %q: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("message rejected: %w", err)
	}
	if _, err := w.Write(m.compose(msg)); err != nil {
		return fmt.Errorf("message write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("message rejected: %w", err)
	}

	// entregue; falha no QUIT não desfaz o envio
	_ = c.Quit()
	return nil
}

// compose monta o e-mail em texto puro. O DotWriter do net/smtp cuida de
// CRLF e de linhas começando com ".".
func (m *SMTPMailer) compose(msg domain.Message) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.Recipients, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", m.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	if !strings.HasSuffix(msg.Body, "\n") {
		b.WriteString("\r\n")
	}
	return b.Bytes()
}
