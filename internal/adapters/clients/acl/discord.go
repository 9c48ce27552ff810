package acl

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/jsamuelsen/quotebook/internal/adapters/clients"
	"github.com/jsamuelsen/quotebook/internal/domain"
	"github.com/jsamuelsen/quotebook/internal/platform/logging"
	"github.com/jsamuelsen/quotebook/internal/ports"
)

const discordService = "discord"

// Compile-time interface checks.
var (
	_ ports.LeaderboardPublisher = (*DiscordPublisher)(nil)
	_ ports.Announcer            = (*DiscordPublisher)(nil)
	_ ports.NonCriticalChecker   = (*DiscordPublisher)(nil)
)

// DiscordConfig configures a DiscordPublisher.
type DiscordConfig struct {
	// Client is the HTTP client. Its BaseURL points at the Discord REST API
	// and its AuthFunc sets the bot authorization header.
	Client *clients.Client

	// LeaderboardChannelID is the channel holding the pinned leaderboard.
	LeaderboardChannelID string

	// AnnounceChannelID is the channel for announcements. Optional.
	AnnounceChannelID string

	// WritesPerSecond paces message writes. Zero or less disables pacing.
	WritesPerSecond float64

	// Logger is an optional logger. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// DiscordPublisher mirrors the leaderboard into a pinned Discord message and
// posts announcements. It is the only place Discord's message model is known.
type DiscordPublisher struct {
	api rest

	leaderboardChannel string
	announceChannel    string
	limiter            *rate.Limiter
	logger             *slog.Logger

	mu    sync.Mutex
	botID string
}

// NewDiscordPublisher creates a Discord adapter.
// Panics if Client is nil.
func NewDiscordPublisher(cfg DiscordConfig) *DiscordPublisher {
	if cfg.Client == nil {
		panic("DiscordPublisher: Client is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.WritesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.WritesPerSecond), 1)
	}

	return &DiscordPublisher{
		api:                rest{client: cfg.Client},
		leaderboardChannel: cfg.LeaderboardChannelID,
		announceChannel:    cfg.AnnounceChannelID,
		limiter:            limiter,
		logger:             logger.With(slog.String("component", "acl.DiscordPublisher")),
	}
}

// discordUser is the user object returned by the Discord API.
type discordUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// discordMessage is the message object returned by the Discord API.
type discordMessage struct {
	ID        string      `json:"id"`
	ChannelID string      `json:"channel_id"`
	Content   string      `json:"content"`
	Author    discordUser `json:"author"`
	Pinned    bool        `json:"pinned"`
}

// messageRequest is the body for creating or editing a message.
type messageRequest struct {
	Content string `json:"content"`
}

// FindOwned implements ports.LeaderboardPublisher. Among the channel's pins
// authored by this bot, the one carrying the leaderboard marker wins; a bot
// pin without the marker is adopted when no marked one exists.
func (d *DiscordPublisher) FindOwned(ctx context.Context) (ports.PublishedMessage, bool, error) {
	botID, err := d.self(ctx)
	if err != nil {
		return ports.PublishedMessage{}, false, err
	}

	path := fmt.Sprintf("/channels/%s/pins", url.PathEscape(d.leaderboardChannel))

	body, err := d.api.get(ctx, path, "list pins", d.leaderboardChannel)
	if err != nil {
		return ports.PublishedMessage{}, false, err
	}

	pins, err := decode[[]discordMessage](body)
	if err != nil {
		return ports.PublishedMessage{}, false, err
	}

	var adopted *discordMessage

	for i := range *pins {
		pin := &(*pins)[i]
		if pin.Author.ID != botID || pin.ID == "" {
			continue
		}

		if domain.IsOwnedArtifact(pin.Content) {
			return pin.published(), true, nil
		}

		if adopted == nil {
			adopted = pin
		}
	}

	if adopted != nil {
		d.logger.InfoContext(ctx, "adopting unmarked pinned message", slog.String("message_id", adopted.ID))

		return adopted.published(), true, nil
	}

	return ports.PublishedMessage{}, false, nil
}

// Create implements ports.LeaderboardPublisher.
func (d *DiscordPublisher) Create(ctx context.Context, content string) (ports.PublishedMessage, error) {
	msg, err := d.post(ctx, d.leaderboardChannel, content, "create leaderboard")
	if err != nil {
		return ports.PublishedMessage{}, err
	}

	if msg.ID == "" {
		return ports.PublishedMessage{}, domain.NewUnavailableError(discordService, "created message has no id")
	}

	return msg.published(), nil
}

// Pin implements ports.LeaderboardPublisher.
func (d *DiscordPublisher) Pin(ctx context.Context, messageID string) error {
	if err := d.beforeWrite(ctx, messageID, "message_id"); err != nil {
		return err
	}

	path := fmt.Sprintf("/channels/%s/pins/%s", url.PathEscape(d.leaderboardChannel), url.PathEscape(messageID))

	body, err := d.api.send(ctx, http.MethodPut, path, nil, "pin leaderboard", messageID)
	if err != nil {
		return err
	}

	return discard(body)
}

// Edit implements ports.LeaderboardPublisher. A deleted message is
// reported as domain.ErrNotFound.
func (d *DiscordPublisher) Edit(ctx context.Context, messageID, content string) error {
	if err := d.beforeWrite(ctx, messageID, "message_id"); err != nil {
		return err
	}

	d.logger.Log(ctx, logging.LevelTrace, "editing leaderboard", slog.String("message_id", messageID))

	path := fmt.Sprintf("/channels/%s/messages/%s", url.PathEscape(d.leaderboardChannel), url.PathEscape(messageID))

	body, err := d.api.send(ctx, http.MethodPatch, path, messageRequest{Content: domain.FitMessage(content)}, "edit leaderboard", messageID)
	if err != nil {
		return err
	}

	return discard(body)
}

// Announce implements ports.Announcer.
func (d *DiscordPublisher) Announce(ctx context.Context, content string) error {
	if d.announceChannel == "" {
		return domain.NewUnavailableError(discordService, "no announce channel configured")
	}

	_, err := d.post(ctx, d.announceChannel, content, "announce")

	return err
}

// Name implements ports.HealthChecker.
func (d *DiscordPublisher) Name() string {
	return discordService
}

// Check implements ports.HealthChecker by resolving the bot identity.
func (d *DiscordPublisher) Check(ctx context.Context) error {
	body, err := d.api.get(ctx, "/users/@me", "health check", "@me")
	if err != nil {
		return err
	}

	return discard(body)
}

// Critical implements ports.NonCriticalChecker. The quote book keeps
// serving while Discord is down; only the mirror lags.
func (d *DiscordPublisher) Critical() bool {
	return false
}

func (d *DiscordPublisher) post(ctx context.Context, channelID, content, operation string) (*discordMessage, error) {
	if err := d.beforeWrite(ctx, channelID, "channel_id"); err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/channels/%s/messages", url.PathEscape(channelID))

	body, err := d.api.send(ctx, http.MethodPost, path, messageRequest{Content: domain.FitMessage(content)}, operation, channelID)
	if err != nil {
		return nil, err
	}

	return decode[discordMessage](body)
}

// beforeWrite rejects a blank target ID and waits for the write pacer.
func (d *DiscordPublisher) beforeWrite(ctx context.Context, id, field string) error {
	if strings.TrimSpace(id) == "" {
		return domain.NewValidationError(field, "is required")
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return domain.NewUnavailableError(discordService, "write pacing: "+err.Error())
	}

	return nil
}

// self resolves and caches the bot's own user ID.
func (d *DiscordPublisher) self(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.botID != "" {
		return d.botID, nil
	}

	body, err := d.api.get(ctx, "/users/@me", "resolve bot user", "@me")
	if err != nil {
		return "", err
	}

	user, err := decode[discordUser](body)
	if err != nil {
		return "", err
	}

	if user.ID == "" {
		return "", domain.NewUnavailableError(discordService, "bot user has no id")
	}

	d.botID = user.ID

	return d.botID, nil
}

func (m *discordMessage) published() ports.PublishedMessage {
	return ports.PublishedMessage{ID: m.ID, Content: m.Content, Pinned: m.Pinned}
}
