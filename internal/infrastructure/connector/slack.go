package connector

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/slack-go/slack"

	"github.com/knowwhyhq/knowwhy/errors"
	"github.com/knowwhyhq/knowwhy/internal/domain/entities"
	"github.com/knowwhyhq/knowwhy/internal/domain/repositories"
)

// SlackConnector discovers decision candidates in Slack channels using each
// user's stored bot token.
type SlackConnector struct {
	integrations repositories.IntegrationRepository
	recency      time.Duration
	apiURL       string
}

// SlackOption is a functional option for connector configuration
type SlackOption func(*SlackConnector)

// WithSlackAPIURL overrides the Slack API base URL
func WithSlackAPIURL(url string) SlackOption {
	return func(c *SlackConnector) {
		c.apiURL = url
	}
}

// NewSlackConnector creates a new Slack connector
func NewSlackConnector(integrations repositories.IntegrationRepository, recency time.Duration, opts ...SlackOption) *SlackConnector {
	c := &SlackConnector{
		integrations: integrations,
		recency:      recency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the source this connector serves
func (c *SlackConnector) Name() entities.DecisionSource {
	return entities.SourceSlack
}

func (c *SlackConnector) newClient(token string) *slack.Client {
	if c.apiURL != "" {
		return slack.New(token, slack.OptionAPIURL(c.apiURL))
	}
	return slack.New(token)
}

func (c *SlackConnector) clientFor(ctx context.Context, userID uuid.UUID) (*slack.Client, error) {
	integration, err := c.integrations.FindByUserAndSource(ctx, userID, entities.SourceSlack)
	if err != nil {
		if err == entities.ErrIntegrationNotFound {
			return nil, errors.ErrNotConnected(string(entities.SourceSlack))
		}
		return nil, err
	}
	return c.newClient(integration.AccessToken), nil
}

// ListCandidates returns one candidate per active public channel the bot has
// joined. Channels with fewer than 2 members cannot hold a team decision and
// are excluded.
func (c *SlackConnector) ListCandidates(ctx context.Context, userID uuid.UUID) ([]Candidate, error) {
	api, err := c.clientFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	var cursor string

	for {
		params := &slack.GetConversationsParameters{
			Types:           []string{"public_channel"},
			ExcludeArchived: true,
			Limit:           100,
			Cursor:          cursor,
		}

		convs, nextCursor, err := api.GetConversationsContext(ctx, params)
		if err != nil {
			return nil, errors.ErrUpstream(string(entities.SourceSlack), err)
		}

		for _, conv := range convs {
			if !conv.IsMember || conv.NumMembers < 2 {
				continue
			}
			candidates = append(candidates, Candidate{
				Source:    entities.SourceSlack,
				Key:       conv.ID,
				Title:     "#" + conv.Name,
				UpdatedAt: time.Now(),
			})
		}

		if nextCursor == "" {
			break
		}
		cursor = nextCursor
	}

	return candidates, nil
}

// FetchTranscript renders the channel history of the recency window as
// "display_name: text" lines, oldest first. Bot and system messages are
// dropped.
func (c *SlackConnector) FetchTranscript(ctx context.Context, userID uuid.UUID, candidate Candidate) (string, error) {
	api, err := c.clientFor(ctx, userID)
	if err != nil {
		return "", err
	}

	oldest := strconv.FormatInt(time.Now().Add(-c.recency).Unix(), 10)
	resp, err := api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: candidate.Key,
		Oldest:    oldest,
		Limit:     200,
	})
	if err != nil {
		return "", errors.ErrUpstream(string(entities.SourceSlack), err)
	}

	names := make(map[string]string)
	var lines []string

	// History is newest first; walk backwards to keep chronological order.
	for i := len(resp.Messages) - 1; i >= 0; i-- {
		msg := resp.Messages[i]
		if msg.SubType != "" || msg.BotID != "" || msg.Text == "" {
			continue
		}
		name, ok := names[msg.User]
		if !ok {
			name = c.resolveUserName(ctx, api, msg.User)
			names[msg.User] = name
		}
		lines = append(lines, fmt.Sprintf("%s: %s", name, msg.Text))
	}

	return strings.Join(lines, "\n"), nil
}

func (c *SlackConnector) resolveUserName(ctx context.Context, api *slack.Client, userID string) string {
	if userID == "" {
		return "unknown"
	}
	info, err := api.GetUserInfoContext(ctx, userID)
	if err != nil {
		return userID
	}
	if info.Profile.DisplayName != "" {
		return info.Profile.DisplayName
	}
	if info.RealName != "" {
		return info.RealName
	}
	return info.Name
}

// PostMessage sends a notification message to a channel. Best-effort, used
// after a decision is persisted.
func (c *SlackConnector) PostMessage(ctx context.Context, userID uuid.UUID, channelID, text string) error {
	api, err := c.clientFor(ctx, userID)
	if err != nil {
		return err
	}
	if _, _, err := api.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false)); err != nil {
		return errors.ErrUpstream(string(entities.SourceSlack), err)
	}
	return nil
}

// VerifyToken checks a bot token via auth.test and returns the workspace
// team ID, stored in integration metadata for webhook routing.
func (c *SlackConnector) VerifyToken(ctx context.Context, token string) (string, error) {
	api := c.newClient(token)
	resp, err := api.AuthTestContext(ctx)
	if err != nil {
		return "", errors.ErrUpstream(string(entities.SourceSlack), err)
	}
	return resp.TeamID, nil
}
