package notify

import (
	"context"
	"fmt"

	"wagerbook/domain/entities"
	"wagerbook/domain/events"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

const (
	colorSuccess = 0x57F287
	colorDanger  = 0xED4245
	colorInfo    = 0x3498DB

	queueSize = 128
)

// messageSender is the slice of the Discord session the notifier needs
type messageSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts settlement notices to a Discord channel.
// Delivery is best effort: a full queue or a failed send is logged and dropped.
type DiscordNotifier struct {
	sender    messageSender
	channelID string
	queue     chan events.WagerSettledEvent
}

// NewDiscordSession creates a REST-only Discord session for a bot token
func NewDiscordSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	return session, nil
}

// NewDiscordNotifier creates a notifier posting to channelID
func NewDiscordNotifier(session *discordgo.Session, channelID string) *DiscordNotifier {
	return newDiscordNotifier(session, channelID)
}

func newDiscordNotifier(sender messageSender, channelID string) *DiscordNotifier {
	return &DiscordNotifier{
		sender:    sender,
		channelID: channelID,
		queue:     make(chan events.WagerSettledEvent, queueSize),
	}
}

// HandleWagerSettled queues a notice for a settled wager without blocking
func (n *DiscordNotifier) HandleWagerSettled(ctx context.Context, event events.Event) error {
	settled, ok := event.(events.WagerSettledEvent)
	if !ok {
		return nil
	}

	select {
	case n.queue <- settled:
	default:
		log.WithFields(log.Fields{
			"wagerID": settled.WagerID,
			"userID":  settled.UserID,
		}).Warn("Settlement notice queue full, dropping notice")
	}
	return nil
}

// Run sends queued notices until ctx is done
func (n *DiscordNotifier) Run(ctx context.Context) error {
	log.WithField("channelID", n.channelID).Info("Settlement notifier started")
	for {
		select {
		case <-ctx.Done():
			log.Info("Settlement notifier shutting down (context cancelled)...")
			return nil
		case settled := <-n.queue:
			n.send(settled)
		}
	}
}

func (n *DiscordNotifier) send(settled events.WagerSettledEvent) {
	if _, err := n.sender.ChannelMessageSendEmbed(n.channelID, settlementEmbed(settled)); err != nil {
		log.WithFields(log.Fields{
			"wagerID":   settled.WagerID,
			"channelID": n.channelID,
			"error":     err,
		}).Error("Failed to send settlement notice")
		return
	}

	log.WithFields(log.Fields{
		"wagerID": settled.WagerID,
		"status":  settled.Status,
	}).Debug("Sent settlement notice")
}

// settlementEmbed renders one settled wager as a Discord embed
func settlementEmbed(settled events.WagerSettledEvent) *discordgo.MessageEmbed {
	var title string
	var color int
	switch settled.Status {
	case entities.WagerStatusWon:
		title = "Wager won"
		color = colorSuccess
	case entities.WagerStatusLost:
		title = "Wager lost"
		color = colorDanger
	case entities.WagerStatusPush:
		title = "Wager pushed"
		color = colorInfo
	default:
		title = "Wager settled"
		color = colorInfo
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Side", Value: settled.SideName, Inline: true},
		{Name: "Currency", Value: string(settled.Currency), Inline: true},
		{Name: "Matched", Value: fmt.Sprintf("%d", settled.MatchedAmount), Inline: true},
	}
	if settled.Payout > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Payout", Value: fmt.Sprintf("%d", settled.Payout), Inline: true})
	}
	if settled.RefundAmount > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Refunded", Value: fmt.Sprintf("%d", settled.RefundAmount), Inline: true})
	}

	return &discordgo.MessageEmbed{
		Title:       title,
		Description: fmt.Sprintf("Wager `%s` by user `%s` on market `%s`", settled.WagerID, settled.UserID, settled.MarketID),
		Color:       color,
		Fields:      fields,
		Footer:      &discordgo.MessageEmbedFooter{Text: "wagerbook"},
	}
}
