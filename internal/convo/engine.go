package convo

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"expense-bot/internal/extract"
	"expense-bot/internal/metrics"
	"expense-bot/internal/repo"
	"expense-bot/internal/wa"

	"github.com/google/uuid"
	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

const (
	replyResend       = "Please send a text message or a photo so I can look for payment information."
	replyUnparsable   = "Sorry, I couldn't understand the extracted data for your message. Please try rephrasing it."
	replyNoData       = "I couldn't find any payment information in your message."
	replySaveFailed   = "Sorry, there was an error saving your payment. Please try again."
	replyGenericError = "Sorry, there was an error processing your message. Please try again."
)

// Sender delivers one outbound text reply to a chat.
type Sender interface {
	SendText(ctx context.Context, to types.JID, text string) error
}

// Downloader resolves and fetches media content referenced by a message.
type Downloader interface {
	DownloadMedia(ctx context.Context, msg *waProto.Message) ([]byte, string, error)
}

// Extractor turns normalized message content into an extraction result.
type Extractor interface {
	Extract(ctx context.Context, content extract.Content) (*extract.Result, error)
}

// PaymentStore persists qualifying extractions.
type PaymentStore interface {
	InsertPayment(ctx context.Context, payment repo.Payment) (*repo.Payment, error)
}

// Inbound is a transport-normalized inbound message: the chat it came from and
// exactly one of text or an ordered photo-variant list (lowest to highest
// resolution). Text may accompany a photo as its caption.
type Inbound struct {
	Chat   types.JID
	Text   string
	Photos []*waProto.Message
}

// Engine runs the extraction pipeline for each inbound message: normalize,
// extract, parse, store-or-reject, reply. Messages are handled independently;
// the engine holds no per-message state.
type Engine struct {
	store      PaymentStore
	extractor  Extractor
	sender     Sender
	downloader Downloader
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a conversation engine with injected dependencies.
func New(store PaymentStore, extractor Extractor, sender Sender, downloader Downloader, metricRegistry *metrics.Metrics, logger *slog.Logger) *Engine {
	return &Engine{
		store:      store,
		extractor:  extractor,
		sender:     sender,
		downloader: downloader,
		metrics:    metricRegistry,
		logger:     logger.With("component", "convo"),
		now:        time.Now,
	}
}

// ProcessMessage implements wa.MessageProcessor. Every inbound message ends in
// exactly one reply; no error escalates past this method.
func (e *Engine) ProcessMessage(ctx context.Context, evt *events.Message) {
	in := inboundFromEvent(evt)
	logger := e.logger.With("message_id", uuid.NewString(), "chat", in.Chat.String())

	ctx = wa.WithReply(ctx, evt)
	reply := e.handle(ctx, logger, in)

	if err := e.sender.SendText(ctx, in.Chat, reply); err != nil {
		logger.Error("failed sending reply", "error", err)
		e.metrics.Errors.WithLabelValues("convo_send").Inc()
	}
}

// handle runs the pipeline and returns the single reply text for the message.
func (e *Engine) handle(ctx context.Context, logger *slog.Logger, in Inbound) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while handling message", "panic", r)
			e.metrics.Errors.WithLabelValues("convo_panic").Inc()
			reply = replyGenericError
		}
	}()

	if in.Text == "" && len(in.Photos) == 0 {
		return replyResend
	}

	content := extract.Content{Text: in.Text}
	if len(in.Photos) > 0 {
		// Last variant is the highest resolution.
		variant := in.Photos[len(in.Photos)-1]
		data, mime, err := e.downloader.DownloadMedia(ctx, variant)
		if err != nil {
			logger.Error("failed downloading photo", "error", err)
			e.metrics.Errors.WithLabelValues("convo_media").Inc()
			return replyGenericError
		}
		if len(data) == 0 {
			logger.Error("photo download returned no data")
			e.metrics.Errors.WithLabelValues("convo_media").Inc()
			return replyGenericError
		}
		content.Image = &extract.Image{Data: data, MIMEType: mime}
	}

	res, err := e.extractor.Extract(ctx, content)
	if err != nil {
		if errors.Is(err, extract.ErrUnparsable) {
			return replyUnparsable
		}
		logger.Error("extraction failed", "error", err)
		e.metrics.Errors.WithLabelValues("convo_extract").Inc()
		return replyGenericError
	}

	if res.Value == nil {
		return replyNoData
	}

	payedAt := res.PayedAtTime()
	if payedAt == nil {
		t := e.now()
		payedAt = &t
	}

	stored, err := e.store.InsertPayment(ctx, repo.Payment{
		Value:       *res.Value,
		Description: res.Description,
		Category:    res.Category,
		PayedAt:     *payedAt,
		Data:        res.Data,
	})
	if err != nil {
		logger.Error("failed saving payment", "error", err)
		e.metrics.PaymentInserts.WithLabelValues("error").Inc()
		return replySaveFailed
	}
	e.metrics.PaymentInserts.WithLabelValues("ok").Inc()
	logger.Info("payment saved", "payment_id", stored.ID, "value", stored.Value)

	return formatSuccess(stored)
}

func inboundFromEvent(evt *events.Message) Inbound {
	in := Inbound{Chat: evt.Info.Chat}
	msg := evt.Message
	if msg == nil {
		return in
	}

	switch {
	case msg.GetConversation() != "":
		in.Text = msg.GetConversation()
	case msg.ExtendedTextMessage != nil:
		in.Text = msg.GetExtendedTextMessage().GetText()
	case msg.ImageMessage != nil:
		in.Text = msg.GetImageMessage().GetCaption()
		in.Photos = []*waProto.Message{msg}
	}
	return in
}
