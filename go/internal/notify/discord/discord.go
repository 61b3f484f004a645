// Package discord posts draft milestones to a league channel through a Discord webhook.
package discord

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	maxRetries  = 3
	baseBackoff = 2 * time.Second
	maxBackoff  = 30 * time.Second
	queueSize   = 256

	colorPick   = 0x2ecc71
	colorStatus = 0x3498db
	colorPause  = 0xf1c40f
	colorDone   = 0x9b59b6
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Opts configures a Sink.
type Opts struct {
	WebhookURL string // https://discord.com/api/webhooks/{id}/{token}
	Username   string // display name for posts; defaults to "Draft Room"
	// For testing: inject a mock session instead of the real Discord API.
	Session     session
	BaseBackoff time.Duration
}

// Sink is an events.Sink that queues notable draft events and posts them from Run.
type Sink struct {
	sess        session
	webhookID   string
	token       string
	username    string
	queue       chan events.Event
	baseBackoff time.Duration
}

// New creates a Sink for the webhook in opts.
func New(opts Opts) (*Sink, error) {
	id, token, err := ParseWebhookURL(opts.WebhookURL)
	if err != nil {
		return nil, err
	}
	s := &Sink{
		sess:        opts.Session,
		webhookID:   id,
		token:       token,
		username:    opts.Username,
		queue:       make(chan events.Event, queueSize),
		baseBackoff: opts.BaseBackoff,
	}
	if s.username == "" {
		s.username = "Draft Room"
	}
	if s.baseBackoff <= 0 {
		s.baseBackoff = baseBackoff
	}
	if s.sess == nil {
		// webhooks authenticate with the token in the URL, so the session carries none
		dg, err := discordgo.New("")
		if err != nil {
			return nil, fmt.Errorf("discord: create session: %w", err)
		}
		s.sess = dg
	}
	return s, nil
}

// ParseWebhookURL extracts the webhook id and token.
func ParseWebhookURL(raw string) (string, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("discord: invalid webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("discord: webhook url %q has no /webhooks/{id}/{token} path", u.Redacted())
}

// Emit queues events worth announcing. It never blocks the draft.
func (s *Sink) Emit(_ context.Context, ev events.Event) error {
	if !notable(ev.Type) {
		return nil
	}
	select {
	case s.queue <- ev:
		return nil
	default:
		return fmt.Errorf("discord: queue full, dropping %s", ev.Type)
	}
}

// Run posts queued events until ctx is cancelled.
func (s *Sink) Run(ctx context.Context) error {
	log.Info().Msg("discord notifier started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-s.queue:
			if err := s.Post(ctx, ev); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Error().
					Err(err).
					Str("draft_id", ev.DraftID.String()).
					Str("event_type", string(ev.Type)).
					Msg("failed to post draft event to discord")
			}
		}
	}
}

// Post renders ev and executes the webhook, retrying when rate limited.
func (s *Sink) Post(ctx context.Context, ev events.Event) error {
	params, err := s.render(ev)
	if err != nil {
		return err
	}
	if params == nil {
		return nil
	}
	return s.retryOnRateLimit(ctx, func() error {
		_, err := s.sess.WebhookExecute(s.webhookID, s.token, false, params, discordgo.WithContext(ctx))
		return err
	})
}

func notable(t events.Type) bool {
	switch t {
	case events.TypePickMade, events.TypeDraftStarted, events.TypeDraftPaused,
		events.TypeDraftResumed, events.TypeDraftCompleted:
		return true
	}
	return false
}

func (s *Sink) render(ev events.Event) (*discordgo.WebhookParams, error) {
	var embed *discordgo.MessageEmbed
	switch ev.Type {
	case events.TypePickMade:
		var p events.PickMadePayload
		if err := ev.Decode(&p); err != nil {
			return nil, err
		}
		player := p.PlayerName
		if player == "" {
			player = p.PlayerID
		}
		embed = &discordgo.MessageEmbed{
			Title:       fmt.Sprintf("Pick %d (round %d)", p.OverallPick, p.Round),
			Description: fmt.Sprintf("**%s** selects **%s**", p.Team, player),
			Color:       colorPick,
		}
		if p.MadeBy == models.MadeByAutopick {
			embed.Footer = &discordgo.MessageEmbedFooter{Text: "auto-picked when the clock ran out"}
		}
	case events.TypeDraftStarted:
		var p events.DraftStartedPayload
		if err := ev.Decode(&p); err != nil {
			return nil, err
		}
		embed = &discordgo.MessageEmbed{
			Title:       "The draft is live",
			Description: fmt.Sprintf("%d rounds, %d picks. Good luck!", p.TotalRounds, p.TotalPicks),
			Color:       colorStatus,
		}
	case events.TypeDraftPaused:
		var p events.DraftPausedPayload
		if err := ev.Decode(&p); err != nil {
			return nil, err
		}
		desc := fmt.Sprintf("%ds left on the clock", p.RemainingMs/1000)
		if p.Reason != "" {
			desc = p.Reason + ", " + desc
		}
		embed = &discordgo.MessageEmbed{Title: "Draft paused", Description: desc, Color: colorPause}
	case events.TypeDraftResumed:
		embed = &discordgo.MessageEmbed{Title: "Draft resumed", Color: colorStatus}
	case events.TypeDraftCompleted:
		var p events.DraftCompletedPayload
		if err := ev.Decode(&p); err != nil {
			return nil, err
		}
		embed = &discordgo.MessageEmbed{
			Title:       "Draft complete",
			Description: fmt.Sprintf("%d picks in %s", p.TotalPicks, p.Duration),
			Color:       colorDone,
		}
	default:
		return nil, nil
	}
	embed.Timestamp = ev.OccurredAt.Format(time.RFC3339)
	return &discordgo.WebhookParams{
		Username: s.username,
		Embeds:   []*discordgo.MessageEmbed{embed},
	}, nil
}

func (s *Sink) retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var restErr *discordgo.RESTError
		if !errors.As(err, &restErr) || restErr.Response == nil || restErr.Response.StatusCode != http.StatusTooManyRequests {
			return fmt.Errorf("discord: execute webhook: %w", err)
		}
		if attempt == maxRetries {
			return fmt.Errorf("discord: still rate limited after %d retries: %w", maxRetries, err)
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * s.baseBackoff
		if wait > maxBackoff {
			wait = maxBackoff
		}
		log.Warn().Int("attempt", attempt+1).Dur("wait", wait).Msg("discord rate limited, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
