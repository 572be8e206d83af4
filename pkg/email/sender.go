package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNoRecipients is returned when a message has no To addresses.
var ErrNoRecipients = errors.New("email: no recipients")

type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	// From is the SMTP envelope sender (MAIL FROM). This should be a raw mailbox address.
	From string
	// FromName is an optional display name used only for the message header.
	FromName string
}

// Message is one email with an HTML body and a plain-text alternative.
type Message struct {
	// From overrides Config.From when set.
	From    string
	To      []string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers messages over SMTP.
type Sender struct {
	config Config
	auth   smtp.Auth
	now    func() time.Time
}

func NewSender(config Config) *Sender {
	var auth smtp.Auth
	if config.User != "" && config.Password != "" {
		auth = smtp.PlainAuth("", config.User, config.Password, config.Host)
	}

	return &Sender{
		config: config,
		auth:   auth,
		now:    time.Now,
	}
}

// IsConfigured reports whether a host and sender address are set.
func (s *Sender) IsConfigured() bool {
	return s.config.Host != "" && s.config.From != ""
}

// Send delivers msg and returns the Message-ID header it was sent with.
func (s *Sender) Send(ctx context.Context, msg Message) (string, error) {
	if len(msg.To) == 0 {
		return "", ErrNoRecipients
	}
	from := s.config.From
	if msg.From != "" {
		from = msg.From
	}
	from = sanitizeHeader(from)

	messageID := newMessageID(from)
	body, err := s.buildMIME(from, msg, messageID)
	if err != nil {
		return "", fmt.Errorf("build message: %w", err)
	}

	addr := net.JoinHostPort(s.config.Host, s.config.Port)
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("dial smtp: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		_ = conn.Close()
		return "", fmt.Errorf("smtp handshake: %w", err)
	}
	defer func() { _ = c.Close() }()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.config.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return "", fmt.Errorf("starttls: %w", err)
		}
	}

	if s.auth != nil {
		if err := c.Auth(s.auth); err != nil {
			return "", fmt.Errorf("auth: %w", err)
		}
	}

	if err := c.Mail(from); err != nil {
		return "", fmt.Errorf("mail from: %w", err)
	}

	for _, rcpt := range msg.To {
		if err := c.Rcpt(sanitizeHeader(rcpt)); err != nil {
			return "", fmt.Errorf("rcpt to %s: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return "", fmt.Errorf("data: %w", err)
	}

	if _, err := w.Write(body); err != nil {
		return "", fmt.Errorf("write: %w", err)
	}

	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close: %w", err)
	}

	if err := c.Quit(); err != nil {
		return "", fmt.Errorf("quit: %w", err)
	}

	return messageID, nil
}

func (s *Sender) buildMIME(from string, msg Message, messageID string) ([]byte, error) {
	fromHeader := from
	if name := strings.TrimSpace(s.config.FromName); name != "" {
		fromHeader = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", sanitizeHeader(name)), from)
	}

	to := make([]string, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, sanitizeHeader(addr))
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	headers := []string{
		"From: " + fromHeader,
		"To: " + strings.Join(to, ", "),
		"Subject: " + mime.QEncoding.Encode("utf-8", sanitizeHeader(msg.Subject)),
		"Date: " + s.now().UTC().Format(time.RFC1123Z),
		"Message-ID: " + messageID,
		"MIME-Version: 1.0",
		fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q", mw.Boundary()),
		"",
		"",
	}

	var out bytes.Buffer
	out.WriteString(strings.Join(headers, "\r\n"))

	// Plain text first: clients render the last alternative they understand.
	if msg.Text != "" {
		if err := writePart(mw, "text/plain; charset=UTF-8", msg.Text); err != nil {
			return nil, err
		}
	}
	if msg.HTML != "" {
		if err := writePart(mw, "text/html; charset=UTF-8", msg.HTML); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	out.Write(buf.Bytes())
	return out.Bytes(), nil
}

func writePart(mw *multipart.Writer, contentType, content string) error {
	header := textproto.MIMEHeader{}
	header.Set("Content-Type", contentType)
	header.Set("Content-Transfer-Encoding", "quoted-printable")
	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	qp := quotedprintable.NewWriter(part)
	if _, err := qp.Write([]byte(content)); err != nil {
		return err
	}
	return qp.Close()
}

func newMessageID(from string) string {
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = strings.Trim(from[at+1:], "<> ")
	}
	return fmt.Sprintf("<%s@%s>", uuid.New().String(), domain)
}

func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return s
}
