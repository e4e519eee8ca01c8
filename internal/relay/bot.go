package relay

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examhub/internal/metrics"
	"github.com/stemsi/examhub/internal/model"
	"github.com/stemsi/examhub/internal/service"
)

// Registrar creates and links directory users.
type Registrar interface {
	Register(ctx context.Context, reg model.Registration) (*model.Credentials, error)
	ResolveChat(ctx context.Context, chatID int64) (*model.User, error)
}

// HistoryReader lists a user's exam history.
type HistoryReader interface {
	History(ctx context.Context, userID uuid.UUID) ([]model.ResultEntry, error)
}

// Bot answers chat messages: /start, /results, and registration text.
type Bot struct {
	registrar Registrar
	history   HistoryReader
	messenger Messenger
	region    string
	workers   int
	log       zerolog.Logger
}

// NewBot creates a Bot. region is the default phone region for numbers
// sent without a country code.
func NewBot(registrar Registrar, history HistoryReader, messenger Messenger, region string, workers int, log zerolog.Logger) *Bot {
	if workers < 1 {
		workers = 1
	}
	return &Bot{
		registrar: registrar,
		history:   history,
		messenger: messenger,
		region:    region,
		workers:   workers,
		log:       log.With().Str("component", "bot").Logger(),
	}
}

// Run consumes messages until in is closed or ctx ends. Messages of one
// chat are handled strictly in arrival order; different chats run in
// parallel across the worker lanes.
func (b *Bot) Run(ctx context.Context, in <-chan Incoming) {
	lanes := make([]chan Incoming, b.workers)
	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan Incoming, 16)
		wg.Add(1)
		go func(lane <-chan Incoming) {
			defer wg.Done()
			for msg := range lane {
				b.HandleMessage(ctx, msg)
			}
		}(lanes[i])
	}

	defer func() {
		for _, l := range lanes {
			close(l)
		}
		wg.Wait()
		b.log.Info().Msg("Bot stopped")
	}()

	b.log.Info().Int("workers", b.workers).Msg("Bot started")
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			lane := msg.ChatID % int64(b.workers)
			if lane < 0 {
				lane = -lane
			}
			select {
			case lanes[lane] <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

// HandleMessage answers one message.
func (b *Bot) HandleMessage(ctx context.Context, msg Incoming) {
	text := strings.TrimSpace(msg.Text)
	var reply string
	switch {
	case text == "":
		return
	case isCommand(text, "start"):
		reply = b.start(ctx, msg.ChatID)
	case isCommand(text, "results"):
		reply = b.results(ctx, msg.ChatID)
	case strings.HasPrefix(text, "/"):
		reply = msgFormatHelp
	default:
		reply = b.register(ctx, msg, text)
	}

	err := b.messenger.Send(ctx, msg.ChatID, reply)
	metrics.RelayDeliveries.WithLabelValues("reply", metrics.Result(err)).Inc()
	if err != nil {
		b.log.Error().Err(err).Int64("chat_id", msg.ChatID).Msg("Failed to send reply")
	}
}

// isCommand matches "/name" and "/name@BotName", with or without arguments.
func isCommand(text, name string) bool {
	cmd, _, _ := strings.Cut(text, " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.EqualFold(cmd, "/"+name)
}

func (b *Bot) start(ctx context.Context, chatID int64) string {
	user, err := b.registrar.ResolveChat(ctx, chatID)
	if err != nil {
		if !errors.Is(err, service.ErrNotFound) {
			b.log.Error().Err(err).Int64("chat_id", chatID).Msg("Resolve chat failed")
		}
		return welcomeText(nil)
	}
	return welcomeText(user)
}

func (b *Bot) results(ctx context.Context, chatID int64) string {
	user, err := b.registrar.ResolveChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return msgNotRegistered
		}
		b.log.Error().Err(err).Int64("chat_id", chatID).Msg("Resolve chat failed")
		return msgGenericFailure
	}

	entries, err := b.history.History(ctx, user.ID)
	if err != nil {
		b.log.Error().Err(err).Str("user_id", user.ID.String()).Msg("History lookup failed")
		return msgGenericFailure
	}
	return resultsText(entries)
}

func (b *Bot) register(ctx context.Context, msg Incoming, text string) string {
	reg, err := ParseRegistration(text, b.region)
	switch {
	case errors.Is(err, ErrPhone):
		return msgPhoneInvalid
	case err != nil:
		return msgFormatHelp
	}
	reg.ChatID = msg.ChatID
	reg.Username = msg.Username

	creds, err := b.registrar.Register(ctx, reg)
	switch {
	case err == nil:
		return credentialsText(creds)
	case errors.Is(err, service.ErrAlreadyLinked):
		return msgAlreadyLinked
	case errors.Is(err, service.ErrChatLinkedElsewhere):
		return msgChatTaken
	case errors.Is(err, service.ErrValidation):
		return msgFormatHelp
	default:
		b.log.Error().Err(err).Int64("chat_id", msg.ChatID).Msg("Registration failed")
		return msgGenericFailure
	}
}
