package convo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"expense-bot/internal/extract"
	"expense-bot/internal/metrics"
	"expense-bot/internal/repo"

	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

type fakeExtractor struct {
	res        *extract.Result
	err        error
	calls      int
	gotContent extract.Content
}

func (f *fakeExtractor) Extract(ctx context.Context, content extract.Content) (*extract.Result, error) {
	f.calls++
	f.gotContent = content
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

type fakeStore struct {
	err      error
	inserted []repo.Payment
}

func (f *fakeStore) InsertPayment(ctx context.Context, payment repo.Payment) (*repo.Payment, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inserted = append(f.inserted, payment)
	out := payment
	out.ID = "pay-1"
	out.CreatedAt = time.Now()
	out.UpdatedAt = out.CreatedAt
	return &out, nil
}

type fakeDownloader struct {
	data []byte
	mime string
	err  error
	got  []*waProto.Message
}

func (f *fakeDownloader) DownloadMedia(ctx context.Context, msg *waProto.Message) ([]byte, string, error) {
	f.got = append(f.got, msg)
	if f.err != nil {
		return nil, "", f.err
	}
	return f.data, f.mime, nil
}

type fakeSender struct {
	sent []string
	to   []types.JID
}

func (f *fakeSender) SendText(ctx context.Context, to types.JID, text string) error {
	f.to = append(f.to, to)
	f.sent = append(f.sent, text)
	return nil
}

var fixedNow = time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)

func newTestEngine(store *fakeStore, extractor *fakeExtractor, sender *fakeSender, downloader *fakeDownloader) *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := New(store, extractor, sender, downloader, metrics.Registry("convo_test"), logger)
	e.now = func() time.Time { return fixedNow }
	return e
}

func textInbound(text string) Inbound {
	return Inbound{
		Chat: types.NewJID("12345", types.DefaultUserServer),
		Text: text,
	}
}

func floatPtr(v float64) *float64 { return &v }

func strPtr(s string) *string { return &s }

func TestHandleEmptyMessageAsksToResend(t *testing.T) {
	store := &fakeStore{}
	extractor := &fakeExtractor{}
	downloader := &fakeDownloader{}
	engine := newTestEngine(store, extractor, &fakeSender{}, downloader)

	reply := engine.handle(context.Background(), engine.logger, textInbound(""))

	if reply != replyResend {
		t.Fatalf("expected resend guidance, got %q", reply)
	}
	if extractor.calls != 0 {
		t.Fatalf("expected no extraction call, got %d", extractor.calls)
	}
	if len(store.inserted) != 0 {
		t.Fatalf("expected no inserts, got %d", len(store.inserted))
	}
}

func TestHandleTextNeverDownloadsMedia(t *testing.T) {
	store := &fakeStore{}
	extractor := &fakeExtractor{res: &extract.Result{}}
	downloader := &fakeDownloader{}
	engine := newTestEngine(store, extractor, &fakeSender{}, downloader)

	engine.handle(context.Background(), engine.logger, textInbound("hello, how are you?"))

	if len(downloader.got) != 0 {
		t.Fatalf("expected no media download for text message, got %d", len(downloader.got))
	}
	if extractor.gotContent.Image != nil {
		t.Fatal("expected no image content for text message")
	}
}

func TestHandlePhotoUsesLastVariant(t *testing.T) {
	lowRes := &waProto.Message{ImageMessage: &waProto.ImageMessage{Caption: proto.String("low")}}
	highRes := &waProto.Message{ImageMessage: &waProto.ImageMessage{Caption: proto.String("high")}}

	store := &fakeStore{}
	extractor := &fakeExtractor{res: &extract.Result{}}
	downloader := &fakeDownloader{data: []byte{0xff, 0xd8, 0xff}, mime: "image/jpeg"}
	engine := newTestEngine(store, extractor, &fakeSender{}, downloader)

	in := Inbound{
		Chat:   types.NewJID("12345", types.DefaultUserServer),
		Photos: []*waProto.Message{lowRes, highRes},
	}
	engine.handle(context.Background(), engine.logger, in)

	if len(downloader.got) != 1 {
		t.Fatalf("expected exactly one download, got %d", len(downloader.got))
	}
	if downloader.got[0] != highRes {
		t.Fatal("expected the last (highest resolution) variant to be downloaded")
	}
	if extractor.gotContent.Image == nil || len(extractor.gotContent.Image.Data) == 0 {
		t.Fatal("expected non-empty image payload")
	}
	if extractor.gotContent.Image.MIMEType != "image/jpeg" {
		t.Fatalf("unexpected mime type %q", extractor.gotContent.Image.MIMEType)
	}
}

func TestHandlePhotoDownloadFailureIsTerminal(t *testing.T) {
	store := &fakeStore{}
	extractor := &fakeExtractor{res: &extract.Result{}}
	downloader := &fakeDownloader{err: errors.New("media gone")}
	engine := newTestEngine(store, extractor, &fakeSender{}, downloader)

	in := Inbound{
		Chat:   types.NewJID("12345", types.DefaultUserServer),
		Photos: []*waProto.Message{{ImageMessage: &waProto.ImageMessage{}}},
	}
	reply := engine.handle(context.Background(), engine.logger, in)

	if reply != replyGenericError {
		t.Fatalf("expected generic error reply, got %q", reply)
	}
	if extractor.calls != 0 {
		t.Fatal("expected no extraction call after download failure")
	}
}

func TestHandleUnparsableOutput(t *testing.T) {
	store := &fakeStore{}
	extractor := &fakeExtractor{err: extract.ErrUnparsable}
	engine := newTestEngine(store, extractor, &fakeSender{}, &fakeDownloader{})

	reply := engine.handle(context.Background(), engine.logger, textInbound("spent money"))

	if reply != replyUnparsable {
		t.Fatalf("expected unparsable reply, got %q", reply)
	}
	if len(store.inserted) != 0 {
		t.Fatalf("expected zero store writes, got %d", len(store.inserted))
	}
}

func TestHandleExtractionFailure(t *testing.T) {
	store := &fakeStore{}
	extractor := &fakeExtractor{err: errors.New("provider timeout")}
	engine := newTestEngine(store, extractor, &fakeSender{}, &fakeDownloader{})

	reply := engine.handle(context.Background(), engine.logger, textInbound("spent money"))

	if reply != replyGenericError {
		t.Fatalf("expected generic error reply, got %q", reply)
	}
	if len(store.inserted) != 0 {
		t.Fatalf("expected zero store writes, got %d", len(store.inserted))
	}
}

func TestHandleNoPaymentInformation(t *testing.T) {
	store := &fakeStore{}
	extractor := &fakeExtractor{res: &extract.Result{}}
	engine := newTestEngine(store, extractor, &fakeSender{}, &fakeDownloader{})

	reply := engine.handle(context.Background(), engine.logger, textInbound("hello, how are you?"))

	if reply != replyNoData {
		t.Fatalf("expected no-data guidance, got %q", reply)
	}
	if len(store.inserted) != 0 {
		t.Fatalf("expected zero store writes, got %d", len(store.inserted))
	}
}

func TestHandleSavesPaymentAndDefaultsDate(t *testing.T) {
	store := &fakeStore{}
	extractor := &fakeExtractor{res: &extract.Result{
		Value:       floatPtr(25.5),
		Description: strPtr("lunch"),
		Category:    strPtr("food"),
	}}
	engine := newTestEngine(store, extractor, &fakeSender{}, &fakeDownloader{})

	reply := engine.handle(context.Background(), engine.logger, textInbound("Spent $25.50 on lunch today"))

	if len(store.inserted) != 1 {
		t.Fatalf("expected exactly one insert, got %d", len(store.inserted))
	}
	payment := store.inserted[0]
	if payment.Value != 25.5 {
		t.Fatalf("expected value 25.5, got %v", payment.Value)
	}
	if payment.Category == nil || *payment.Category != "food" {
		t.Fatalf("expected category food, got %v", payment.Category)
	}
	if !payment.PayedAt.Equal(fixedNow) {
		t.Fatalf("expected payed_at defaulted to now, got %v", payment.PayedAt)
	}
	if !strings.Contains(reply, "Amount: $25.5") {
		t.Fatalf("expected reply to contain amount, got %q", reply)
	}
	if !strings.Contains(reply, "Category: food") {
		t.Fatalf("expected reply to contain category, got %q", reply)
	}
	if !strings.Contains(reply, "Description: lunch") {
		t.Fatalf("expected reply to contain description, got %q", reply)
	}
}

func TestHandleKeepsProvidedDate(t *testing.T) {
	store := &fakeStore{}
	extractor := &fakeExtractor{res: &extract.Result{
		Value:   floatPtr(100),
		PayedAt: strPtr("2023-12-24T18:30:00Z"),
	}}
	engine := newTestEngine(store, extractor, &fakeSender{}, &fakeDownloader{})

	engine.handle(context.Background(), engine.logger, textInbound("paid 100 on christmas eve"))

	if len(store.inserted) != 1 {
		t.Fatalf("expected exactly one insert, got %d", len(store.inserted))
	}
	want := time.Date(2023, 12, 24, 18, 30, 0, 0, time.UTC)
	if !store.inserted[0].PayedAt.Equal(want) {
		t.Fatalf("expected payed_at %v, got %v", want, store.inserted[0].PayedAt)
	}
}

type panickyExtractor struct{}

func (panickyExtractor) Extract(ctx context.Context, content extract.Content) (*extract.Result, error) {
	panic("extractor blew up")
}

func TestHandleRecoversFromPanic(t *testing.T) {
	store := &fakeStore{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := New(store, panickyExtractor{}, &fakeSender{}, &fakeDownloader{}, metrics.Registry("convo_test"), logger)

	reply := engine.handle(context.Background(), engine.logger, textInbound("spent 10 on coffee"))

	if reply != replyGenericError {
		t.Fatalf("expected generic error reply after panic, got %q", reply)
	}
	if len(store.inserted) != 0 {
		t.Fatalf("expected zero store writes, got %d", len(store.inserted))
	}
}

func TestProcessMessageStillRepliesAfterPanic(t *testing.T) {
	sender := &fakeSender{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := New(&fakeStore{}, panickyExtractor{}, sender, &fakeDownloader{}, metrics.Registry("convo_test"), logger)

	chat := types.NewJID("12345", types.DefaultUserServer)
	evt := &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{Chat: chat},
		},
		Message: &waProto.Message{Conversation: proto.String("spent 10 on coffee")},
	}
	engine.ProcessMessage(context.Background(), evt)

	if len(sender.sent) != 1 {
		t.Fatalf("expected exactly one reply, got %d", len(sender.sent))
	}
	if sender.sent[0] != replyGenericError {
		t.Fatalf("expected generic error reply, got %q", sender.sent[0])
	}
}

func TestHandleSaveFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	extractor := &fakeExtractor{res: &extract.Result{Value: floatPtr(10)}}
	engine := newTestEngine(store, extractor, &fakeSender{}, &fakeDownloader{})

	reply := engine.handle(context.Background(), engine.logger, textInbound("paid 10"))

	if reply != replySaveFailed {
		t.Fatalf("expected save-failed reply, got %q", reply)
	}
}

func TestProcessMessageSendsExactlyOneReply(t *testing.T) {
	store := &fakeStore{}
	extractor := &fakeExtractor{res: &extract.Result{}}
	sender := &fakeSender{}
	engine := newTestEngine(store, extractor, sender, &fakeDownloader{})

	chat := types.NewJID("12345", types.DefaultUserServer)
	evt := &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{Chat: chat},
		},
		Message: &waProto.Message{Conversation: proto.String("hello, how are you?")},
	}
	engine.ProcessMessage(context.Background(), evt)

	if len(sender.sent) != 1 {
		t.Fatalf("expected exactly one reply, got %d", len(sender.sent))
	}
	if sender.sent[0] != replyNoData {
		t.Fatalf("expected no-data reply, got %q", sender.sent[0])
	}
	if sender.to[0] != chat {
		t.Fatalf("expected reply to originating chat, got %v", sender.to[0])
	}
}

func TestInboundFromEventImageCaption(t *testing.T) {
	chat := types.NewJID("12345", types.DefaultUserServer)
	evt := &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{Chat: chat},
		},
		Message: &waProto.Message{
			ImageMessage: &waProto.ImageMessage{Caption: proto.String("dinner receipt")},
		},
	}

	in := inboundFromEvent(evt)

	if in.Text != "dinner receipt" {
		t.Fatalf("expected caption as text, got %q", in.Text)
	}
	if len(in.Photos) != 1 {
		t.Fatalf("expected one photo variant, got %d", len(in.Photos))
	}
}
