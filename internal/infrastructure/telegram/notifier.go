package telegram

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"TenderScanner/internal/ports"
	"TenderScanner/internal/resilience"
)

const (
	defaultAPIBase = "https://api.telegram.org"
	// maxMessage is the Bot API limit on one message text.
	maxMessage = 4096
)

// Notifier sends digests to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
	retry    resilience.Policy
	log      *zap.Logger
}

var _ ports.Notifier = (*Notifier)(nil)

// Option configures a Notifier.
type Option func(*Notifier)

// WithAPIBase points the notifier at another Bot API host.
func WithAPIBase(base string) Option {
	return func(n *Notifier) { n.apiBase = strings.TrimRight(base, "/") }
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(n *Notifier) { n.client = c }
}

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string, logger *zap.Logger, opts ...Option) *Notifier {
	if logger == nil {
		logger = zap.L()
	}
	n := &Notifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 5 * time.Second},
		retry:    resilience.Policy{Attempts: 3, Initial: time.Second, Max: 5 * time.Second, Multiplier: 2},
		log:      logger.With(zap.String("component", "telegram")),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// PublishDigest posts the digest as plain text, split to fit the API limit.
func (n *Notifier) PublishDigest(ctx context.Context, digest string) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return eris.New("telegram notifier misconfigured")
	}

	parts := split(digest, maxMessage)
	for i, part := range parts {
		policy := n.retry
		policy.OnRetry = resilience.LogRetries(n.log, "telegram send")
		if err := resilience.Do(ctx, policy, func(ctx context.Context) error {
			return n.send(ctx, part)
		}); err != nil {
			return eris.Wrapf(err, "telegram: part %d of %d", i+1, len(parts))
		}
	}
	n.log.Debug("digest delivered", zap.Int("parts", len(parts)))
	return nil
}

func (n *Notifier) send(ctx context.Context, text string) error {
	endpoint := n.apiBase + "/bot" + n.botToken + "/sendMessage"
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", text)
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return eris.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return resilience.Transient(eris.Wrap(err, "do request"), 0)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return resilience.Transient(eris.Errorf("telegram error: %s", resp.Status), resp.StatusCode)
	default:
		return eris.Errorf("telegram error: %s", resp.Status)
	}
}

// runeCut backs limit off to the nearest rune boundary in s.
func runeCut(s string, limit int) int {
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if cut == 0 {
		return limit
	}
	return cut
}

// split cuts text on line boundaries into chunks of at most limit bytes.
// Overlong lines are cut on rune boundaries.
func split(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var (
		out []string
		cur strings.Builder
	)
	for _, line := range strings.SplitAfter(text, "\n") {
		for len(line) > limit {
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
			cut := runeCut(line, limit)
			out = append(out, line[:cut])
			line = line[cut:]
		}
		if cur.Len()+len(line) > limit {
			out = append(out, cur.String())
			cur.Reset()
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}
