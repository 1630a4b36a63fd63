package publish

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

const messageLimit = 2000

// DiscordPublisher posts persona texts into a single channel.
type DiscordPublisher struct {
	session   *discordgo.Session
	channelID string
}

func NewDiscordPublisher(token, channelID string) (*DiscordPublisher, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	if err := session.Open(); err != nil {
		return nil, err
	}
	return &DiscordPublisher{session: session, channelID: channelID}, nil
}

func (p *DiscordPublisher) Close() error {
	return p.session.Close()
}

// Publish sends text, chunked under the Discord message limit. Returns the
// id of the first message sent.
func (p *DiscordPublisher) Publish(ctx context.Context, text string) (string, error) {
	var firstID string
	for _, chunk := range splitMessage(text, messageLimit) {
		msg, err := p.session.ChannelMessageSend(p.channelID, chunk, discordgo.WithContext(ctx))
		if err != nil {
			return firstID, err
		}
		if firstID == "" {
			firstID = msg.ID
		}
		time.Sleep(200 * time.Millisecond)
	}
	return firstID, nil
}

func splitMessage(msg string, limit int) []string {
	var result []string
	for len(msg) > limit {
		cut := strings.LastIndex(msg[:limit], "\n")
		if cut == -1 {
			cut = limit
		}
		result = append(result, strings.TrimSpace(msg[:cut]))
		msg = strings.TrimSpace(msg[cut:])
	}
	if msg != "" {
		result = append(result, msg)
	}
	return result
}
