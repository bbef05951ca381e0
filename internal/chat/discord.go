package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
)

const (
	archiveAfterMins  = 1440
	embedColor        = 0xFFCC00
	maxThreadNameLen  = 100
	maxEmbedFieldsLen = 25
)

type DiscordConfig struct {
	Token     string
	ChannelID string
	GuildID   string
	// APIURL replaces discordgo's API base, for proxies and tests.
	APIURL string
}

// Discord creates public threads under one channel through the REST API.
// No gateway connection is opened.
type Discord struct {
	cfg     DiscordConfig
	session *discordgo.Session
}

func NewDiscord(cfg DiscordConfig) (*Discord, error) {
	if cfg.Token == "" || cfg.ChannelID == "" {
		return nil, fmt.Errorf("chat: discord token and channel id are required")
	}
	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("chat: discord session: %w", err)
	}
	client := &http.Client{Timeout: 15 * time.Second}
	if cfg.APIURL != "" {
		base, err := url.Parse(strings.TrimRight(cfg.APIURL, "/"))
		if err != nil {
			return nil, fmt.Errorf("chat: discord api url: %w", err)
		}
		api, _ := url.Parse(discordgo.EndpointAPI)
		client.Transport = &rebase{from: strings.TrimRight(api.Path, "/"), to: base, next: http.DefaultTransport}
	}
	s.Client = client
	return &Discord{cfg: cfg, session: s}, nil
}

func (d *Discord) CreateThread(ctx context.Context, name string) (Thread, error) {
	ch, err := d.session.ThreadStartComplex(d.cfg.ChannelID, &discordgo.ThreadStart{
		Name:                truncateRunes(name, maxThreadNameLen),
		Type:                discordgo.ChannelTypeGuildPublicThread,
		AutoArchiveDuration: archiveAfterMins,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return Thread{}, fmt.Errorf("creating thread: %w", classify(err))
	}
	return Thread{ID: ch.ID, URL: d.threadURL(ch.ID)}, nil
}

func (d *Discord) UnarchiveThread(ctx context.Context, id string) (Thread, error) {
	archived := false
	_, err := d.session.ChannelEditComplex(id, &discordgo.ChannelEdit{Archived: &archived}, discordgo.WithContext(ctx))
	if err != nil {
		return Thread{}, fmt.Errorf("unarchiving thread %s: %w", id, classify(err))
	}
	return Thread{ID: id, URL: d.threadURL(id)}, nil
}

func (d *Discord) Post(ctx context.Context, threadID string, msg Message) error {
	e := &discordgo.MessageEmbed{Title: msg.Title, Description: msg.Body, Color: embedColor}
	for i, f := range msg.Fields {
		if i == maxEmbedFieldsLen {
			break
		}
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if msg.ImageURL != "" {
		e.Image = &discordgo.MessageEmbedImage{URL: msg.ImageURL}
	}
	if _, err := d.session.ChannelMessageSendEmbed(threadID, e, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("posting to thread %s: %w", threadID, classify(err))
	}
	return nil
}

func (d *Discord) threadURL(id string) string {
	if d.cfg.GuildID == "" {
		return ""
	}
	return fmt.Sprintf("https://discord.com/channels/%s/%s", d.cfg.GuildID, id)
}

// classify maps a missing channel onto ErrThreadNotFound.
func classify(err error) error {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %v", ErrThreadNotFound, err)
	}
	return err
}

// truncateRunes cuts s to at most n characters without splitting one.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// rebase sends discordgo's requests to another API base.
type rebase struct {
	from string
	to   *url.URL
	next http.RoundTripper
}

func (t *rebase) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.URL.Scheme = t.to.Scheme
	r.URL.Host = t.to.Host
	r.Host = t.to.Host
	r.URL.Path = t.to.Path + strings.TrimPrefix(req.URL.Path, t.from)
	r.URL.RawPath = ""
	return t.next.RoundTrip(r)
}
