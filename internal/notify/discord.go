package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	domain "github.com/ncoulthurst/VintBot/pkg/types"
)

const (
	embedColor = 0x09B1BA

	maxDescriptionLen = 300
)

// DiscordNotifier implements Notifier via Discord webhooks. It is not
// bound to a single webhook; the target comes from the channel on each
// call.
type DiscordNotifier struct {
	username string
	client   *http.Client
	nowFunc  func() time.Time
}

// NewDiscordNotifier creates a new DiscordNotifier.
func NewDiscordNotifier(opts ...DiscordOption) *DiscordNotifier {
	d := &DiscordNotifier{
		client:  http.DefaultClient,
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DiscordOption configures a DiscordNotifier.
type DiscordOption func(*DiscordNotifier)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) DiscordOption {
	return func(d *DiscordNotifier) {
		d.client = c
	}
}

// WithUsername overrides the webhook's display name.
func WithUsername(name string) DiscordOption {
	return func(d *DiscordNotifier) {
		d.username = name
	}
}

// WithDiscordNowFunc overrides the time function for testing.
func WithDiscordNowFunc(f func() time.Time) DiscordOption {
	return func(d *DiscordNotifier) {
		d.nowFunc = f
	}
}

// webhookPayload is the Discord webhook JSON structure.
type webhookPayload struct {
	Username string         `json:"username,omitempty"`
	Embeds   []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string              `json:"title"`
	URL         string              `json:"url,omitempty"`
	Color       int                 `json:"color"`
	Description string              `json:"description,omitempty"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
	Thumbnail   *discordThumbnail   `json:"thumbnail,omitempty"`
	Footer      *discordFooter      `json:"footer,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordThumbnail struct {
	URL string `json:"url"`
}

type discordFooter struct {
	Text string `json:"text"`
}

// webhookMessage is the message record Discord returns when the webhook
// is executed with wait=true.
type webhookMessage struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
}

// Dispatch posts one item as an embed to the channel's webhook. The
// webhook is executed with wait=true so the created message ID comes
// back in the response and later age edits can target it.
func (d *DiscordNotifier) Dispatch(
	ctx context.Context,
	ch domain.Channel,
	payload ItemPayload,
) (*MessageRef, error) {
	embed := buildEmbed(payload, payload.Item.Age(d.nowFunc()))
	body := webhookPayload{
		Username: d.username,
		Embeds:   []discordEmbed{embed},
	}

	target, err := withWait(ch.WebhookURL)
	if err != nil {
		return nil, err
	}

	respBody, err := d.send(ctx, http.MethodPost, target, body)
	if err != nil {
		return nil, err
	}

	ref := &MessageRef{WebhookURL: ch.WebhookURL}
	if len(respBody) > 0 {
		var msg webhookMessage
		if err := json.Unmarshal(respBody, &msg); err == nil {
			ref.MessageID = msg.ID
		}
	}
	return ref, nil
}

// UpdateListedAge rewrites the message's embed with a fresh listed-ago
// value.
func (d *DiscordNotifier) UpdateListedAge(
	ctx context.Context,
	ref MessageRef,
	payload ItemPayload,
	age time.Duration,
) error {
	if ref.MessageID == "" {
		return fmt.Errorf("message ref has no id")
	}

	embed := buildEmbed(payload, age)
	body := webhookPayload{Embeds: []discordEmbed{embed}}

	target := strings.TrimRight(ref.WebhookURL, "/") + "/messages/" + ref.MessageID
	_, err := d.send(ctx, http.MethodPatch, target, body)
	return err
}

func (d *DiscordNotifier) send(ctx context.Context, method, target string, payload webhookPayload) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("discord rate limited (429)")
	}

	respBody, readErr := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if readErr != nil {
			return nil, fmt.Errorf("discord returned %d (body unreadable)", resp.StatusCode)
		}
		return nil, fmt.Errorf("discord returned %d: %s", resp.StatusCode, respBody)
	}

	if readErr != nil {
		return nil, nil
	}
	return respBody, nil
}

func buildEmbed(payload ItemPayload, age time.Duration) discordEmbed {
	it := payload.Item

	embed := discordEmbed{
		Title: it.Title,
		URL:   it.ItemURL,
		Color: embedColor,
		Fields: []discordEmbedField{
			{Name: "Price", Value: formatPrice(it.Price, it.Currency), Inline: true},
			{Name: "Brand", Value: orDash(it.Brand), Inline: true},
			{Name: "Size", Value: orDash(it.Size), Inline: true},
			{Name: "Condition", Value: orDash(it.Status), Inline: true},
			{Name: "Seller", Value: sellerValue(it.Seller), Inline: true},
			{Name: "Listed", Value: formatAge(age, it.ListedAt), Inline: true},
			{Name: "Links", Value: linksValue(it), Inline: false},
		},
	}

	if it.Description != "" {
		embed.Description = truncate(it.Description, maxDescriptionLen)
	}
	if it.PhotoURL != "" {
		embed.Thumbnail = &discordThumbnail{URL: it.PhotoURL}
	}
	if payload.SearchName != "" {
		embed.Footer = &discordFooter{Text: payload.SearchName}
	}
	if !it.ListedAt.IsZero() {
		embed.Timestamp = it.ListedAt.UTC().Format(time.RFC3339)
	}

	return embed
}

func formatPrice(amount float64, currency string) string {
	if currency == "" {
		return fmt.Sprintf("%.2f", amount)
	}
	return fmt.Sprintf("%.2f %s", amount, currency)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func sellerValue(s domain.Seller) string {
	if s.Login == "" {
		return "-"
	}
	if s.Rating == 0 && s.FeedbackCount == 0 {
		return s.Login
	}
	return fmt.Sprintf("%s %s (%d)", s.Login, renderStars(s.Rating), s.FeedbackCount)
}

// renderStars draws a 0-5 star bar, rounding to the nearest whole star.
func renderStars(rating float64) string {
	n := int(math.Round(rating))
	if n < 0 {
		n = 0
	}
	if n > 5 {
		n = 5
	}
	return strings.Repeat("\u2605", n) + strings.Repeat("\u2606", 5-n)
}

func formatAge(age time.Duration, listedAt time.Time) string {
	if listedAt.IsZero() {
		return "Unknown"
	}
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		m := int(age.Minutes())
		if m == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", m)
	case age < 24*time.Hour:
		h := int(age.Hours())
		if h == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", h)
	default:
		days := int(age.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
}

func linksValue(it domain.Item) string {
	links := []string{fmt.Sprintf("[View item](%s)", it.ItemURL)}
	if it.Seller.ProfileURL != "" {
		links = append(links, fmt.Sprintf("[Seller profile](%s)", it.Seller.ProfileURL))
	}
	if buy := buyURL(it); buy != "" {
		links = append(links, fmt.Sprintf("[Buy now](%s)", buy))
	}
	return strings.Join(links, " \u00b7 ")
}

// buyURL builds the direct checkout link for an item on the same host as
// its listing page.
func buyURL(it domain.Item) string {
	u, err := url.Parse(it.ItemURL)
	if err != nil || u.Host == "" {
		return ""
	}
	q := url.Values{}
	q.Set("source_screen", "item")
	q.Set("transaction[item_id]", strconv.FormatInt(it.ID, 10))
	return fmt.Sprintf("%s://%s/transaction/buy/new?%s", u.Scheme, u.Host, q.Encode())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func withWait(webhookURL string) (string, error) {
	u, err := url.Parse(webhookURL)
	if err != nil {
		return "", fmt.Errorf("parsing webhook url: %w", err)
	}
	q := u.Query()
	q.Set("wait", "true")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
