package notify

import (
	"context"
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/disgo/webhook"

	"github.com/dimasma0305/devwatch/internal/devwatch/types"
)

// Embed colors per transition kind
const (
	colorRed    = 0xe74c3c
	colorGreen  = 0x2ecc71
	colorYellow = 0xf1c40f
	colorBlue   = 0x3498db
)

// Discord posts notifications to a webhook
type Discord struct {
	client *webhook.Client
}

// NewDiscord creates a sender from a webhook URL
func NewDiscord(webhookURL string) (*Discord, error) {
	client, err := webhook.NewWithURL(webhookURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook client: %w", err)
	}
	return &Discord{client: client}, nil
}

// Name implements Sender
func (d *Discord) Name() string { return "discord" }

// Send implements Sender
func (d *Discord) Send(ctx context.Context, n Notification) error {
	_, err := d.client.CreateEmbeds([]discord.Embed{buildEmbed(n)}, rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	return nil
}

func buildEmbed(n Notification) discord.Embed {
	b := discord.NewEmbedBuilder().
		SetTitle(n.Title).
		SetDescription(n.Body).
		SetColor(colorFor(n.Kind)).
		SetTimestamp(n.Time).
		SetFooter("devwatch", "")
	if n.Project != "" {
		b = b.AddField("Project", fmt.Sprintf("`%s`", n.Project), false)
	}
	return b.Build()
}

func colorFor(kind types.TransitionKind) int {
	switch kind {
	case types.ProcessCrashed, types.NetworkDown:
		return colorRed
	case types.ProcessStarted, types.NetworkUp:
		return colorGreen
	case types.ReadinessChanged:
		return colorYellow
	default:
		return colorBlue
	}
}
