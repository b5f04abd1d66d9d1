package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-chat-relay/internal/domain"
	"github.com/tbourn/go-chat-relay/internal/media"
	"github.com/tbourn/go-chat-relay/internal/observability"
	"github.com/tbourn/go-chat-relay/internal/presence"
	"github.com/tbourn/go-chat-relay/internal/services"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Client-facing failure messages.
const (
	msgHistoryFailed    = "Failed to fetch chat history"
	msgInboxFailed      = "Failed to fetch main chat"
	msgAdminInboxFailed = "Failed to fetch admin chat list"
	msgMarkConvFailed   = "Failed to mark conversation as read"
	msgSendFailed       = "Failed to send message"
	msgReadFailed       = "Failed to mark messages as read"
	msgUploadFailed     = "Failed to upload file"
	msgSearchFailed     = "Failed to search main chat list"
	msgAdminRequired    = "Admin role required"
	msgInternal         = "Internal error"
)

var (
	errIgnored = errors.New("event ignored")
	errDenied  = errors.New("admin role required")
)

type handlerFunc func(ctx context.Context, s *Session, data json.RawMessage) error

// Router dispatches inbound events of every session.
type Router struct {
	Registry  *presence.Registry
	Messages  *services.MessageService
	Views     *services.ConversationService
	Media     *media.Store
	Assembler *media.Assembler
	// AdminEnforced restricts admin events to sessions registered as admins
	// and narrows admin-inbox broadcasts to admins.
	AdminEnforced bool

	validate *validator.Validate
	handlers map[string]handlerFunc
}

// NewRouter wires a Router. assembler may be nil when chunked uploads are
// disabled.
func NewRouter(reg *presence.Registry, msgs *services.MessageService, views *services.ConversationService, store *media.Store, assembler *media.Assembler, adminEnforced bool) *Router {
	r := &Router{
		Registry:      reg,
		Messages:      msgs,
		Views:         views,
		Media:         store,
		Assembler:     assembler,
		AdminEnforced: adminEnforced,
		validate:      validator.New(),
	}
	r.handlers = map[string]handlerFunc{
		EventRegister:             r.handleRegister,
		EventGetSubChat:           r.handleGetSubChat,
		EventGetMainChat:          r.handleGetMainChat,
		EventGetAdminMainChat:     r.handleGetAdminMainChat,
		EventMarkConversationRead: r.handleMarkConversationRead,
		EventSendMessage:          r.handleSendMessage,
		EventReadMessage:          r.handleReadMessage,
		EventTyping:               r.handleTyping,
		EventFileChunk:            r.handleFileChunk,
		EventSearchMainChat:       r.handleSearchMainChat,
		EventSearchAdminMainChat:  r.handleSearchAdminMainChat,
	}
	return r
}

func (r *Router) tracer() trace.Tracer { return otel.Tracer("realtime/Router") }

// Connect attaches a new session to the registry.
func (r *Router) Connect(s *Session) {
	r.Registry.Attach(s.Conn)
	s.Logger().Debug().Msg("ws: connected")
}

// Dispatch handles one inbound envelope. Events of a disconnected session
// and unknown events are dropped. A panicking handler is recovered and
// reported to the origin as a generic error event.
func (r *Router) Dispatch(ctx context.Context, s *Session, env Envelope) {
	if s.State() == StateDisconnected {
		observability.EventsTotal.WithLabelValues(eventLabel(env.Event), observability.OutcomeIgnored).Inc()
		return
	}
	h, ok := r.handlers[env.Event]
	if !ok {
		s.Logger().Debug().Str("event", env.Event).Msg("ws: unknown event")
		observability.EventsTotal.WithLabelValues("unknown", observability.OutcomeIgnored).Inc()
		return
	}

	ctx, span := r.tracer().Start(ctx, env.Event,
		trace.WithAttributes(attribute.String("conn.id", s.Conn.ID())),
	)
	defer span.End()

	start := time.Now()
	outcome := observability.OutcomeOK
	defer func() {
		if rec := recover(); rec != nil {
			s.Logger().Error().Interface("panic", rec).Str("event", env.Event).Msg("ws: handler panic")
			s.fail(msgInternal)
			outcome = observability.OutcomeError
		}
		observability.EventsTotal.WithLabelValues(env.Event, outcome).Inc()
		observability.EventDuration.WithLabelValues(env.Event).Observe(time.Since(start).Seconds())
	}()

	switch err := h(ctx, s, env.Data); {
	case err == nil:
	case errors.Is(err, errIgnored):
		outcome = observability.OutcomeIgnored
	case errors.Is(err, errDenied):
		outcome = observability.OutcomeDenied
	default:
		outcome = observability.OutcomeError
		span.RecordError(err)
	}
}

// Disconnect ends the session, releases its registry binding and drops its
// partial uploads. Calling it twice is harmless.
func (r *Router) Disconnect(ctx context.Context, s *Session) {
	if !s.end() {
		return
	}
	r.Registry.Unregister(ctx, s.Conn)
	if r.Assembler != nil {
		if n := r.Assembler.Discard(s.Conn.ID()); n > 0 {
			s.Logger().Debug().Int("uploads", n).Msg("ws: discarded partial uploads")
		}
	}
	r.Registry.Detach(s.Conn)
	s.Logger().Debug().Msg("ws: disconnected")
}

func eventLabel(ev string) string {
	if ev == "" {
		return "unknown"
	}
	return ev
}

func (r *Router) decode(data json.RawMessage, dst any) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && !bytes.Equal(data, []byte("null")) {
		if err := json.Unmarshal(data, dst); err != nil {
			return fmt.Errorf("%w: %v", media.ErrMalformedPayload, err)
		}
	}
	return r.validate.Struct(dst)
}

func (r *Router) requireAdmin(s *Session) error {
	if !r.AdminEnforced || r.Registry.IsAdmin(s.Conn) {
		return nil
	}
	s.Logger().Debug().Msg("ws: admin event from non-admin session")
	s.fail(msgAdminRequired)
	return errDenied
}

// failWith logs err, reports message to the origin and returns err.
func failWith(s *Session, err error, message string) error {
	s.Logger().Error().Err(err).Msg("ws: " + strings.ToLower(message))
	s.fail(message)
	return err
}

func (r *Router) handleRegister(ctx context.Context, s *Session, data json.RawMessage) error {
	userID, err := parseRegister(data)
	if err != nil || userID == 0 {
		s.Logger().Debug().Err(err).Msg("ws: register without user id")
		return errIgnored
	}
	prev, ok := s.bind(userID)
	if !ok {
		return errIgnored
	}
	if prev != 0 && prev != userID {
		r.Registry.Unregister(ctx, s.Conn)
	}
	r.Registry.Register(ctx, userID, s.Conn)
	s.Logger().Info().Msg("ws: registered")
	return nil
}

func (r *Router) handleGetSubChat(ctx context.Context, s *Session, data json.RawMessage) error {
	var p GetSubChatPayload
	if err := r.decode(data, &p); err != nil {
		return failWith(s, err, msgHistoryFailed)
	}
	views, err := r.Views.Transcript(ctx, p.UserID.Uint(), p.ReceiverID.Uint(), p.MaxID.Uint())
	if err != nil {
		return failWith(s, err, msgHistoryFailed)
	}
	s.emit(EventGetSubChat, views)
	return nil
}

func (r *Router) handleGetMainChat(ctx context.Context, s *Session, data json.RawMessage) error {
	var p GetMainChatPayload
	if err := r.decode(data, &p); err != nil {
		return failWith(s, err, msgInboxFailed)
	}
	list, err := r.Views.Inbox(ctx, p.UserID.Uint())
	if err != nil {
		return failWith(s, err, msgInboxFailed)
	}
	s.emit(EventGetMainChat, list)
	return nil
}

func (r *Router) handleGetAdminMainChat(ctx context.Context, s *Session, _ json.RawMessage) error {
	if err := r.requireAdmin(s); err != nil {
		return err
	}
	list, err := r.Views.AdminInbox(ctx)
	if err != nil {
		return failWith(s, err, msgAdminInboxFailed)
	}
	s.emit(EventGetAdminMainChat, list)
	return nil
}

func (r *Router) handleMarkConversationRead(ctx context.Context, s *Session, data json.RawMessage) error {
	if err := r.requireAdmin(s); err != nil {
		return err
	}
	var p MarkConversationReadPayload
	if err := r.decode(data, &p); err != nil {
		return failWith(s, err, msgMarkConvFailed)
	}
	a, b := p.UserAID.Uint(), p.UserBID.Uint()
	if _, err := r.Messages.MarkAdminRead(ctx, a, b); err != nil {
		return failWith(s, err, msgMarkConvFailed)
	}
	views, err := r.Views.Transcript(ctx, a, b, 0)
	if err != nil {
		return failWith(s, err, msgMarkConvFailed)
	}
	s.emit(EventGetSubChat, views)
	return r.publishAdminInbox(ctx)
}

func (r *Router) handleSendMessage(ctx context.Context, s *Session, data json.RawMessage) error {
	var p SendMessagePayload
	if err := r.decode(data, &p); err != nil {
		s.Logger().Debug().Err(err).Msg("ws: invalid send_message ignored")
		return errIgnored
	}
	in := domain.NewMessage{
		SenderID:   p.SenderID.Uint(),
		ReceiverID: p.ReceiverID.Uint(),
		Body:       p.Message,
		Image:      p.Image,
		File:       p.File,
	}
	if _, _, err := r.Send(ctx, in, ""); err != nil {
		if services.IsValidation(err) {
			s.Logger().Debug().Err(err).Msg("ws: invalid send_message ignored")
			return errIgnored
		}
		return failWith(s, err, msgSendFailed)
	}
	return nil
}

// Send stores a new message and fans it out. Inline data URIs in Image and
// File are written to the media store first; paths of stored uploads are
// kept as they are and anything else is dropped. Image takes only image
// data URIs and File takes everything but those. A non-empty key makes the
// call idempotent per (sender, receiver): a replay returns the original
// message with replayed=true and emits nothing.
func (r *Router) Send(ctx context.Context, in domain.NewMessage, key string) (*domain.Message, bool, error) {
	if in.Body != nil {
		in.Body = domain.StringPtr(*in.Body)
	}
	var err error
	if in.Image, err = r.attachment(ctx, in.Image, media.CategoryChatMedia, true); err != nil {
		return nil, false, err
	}
	if in.File, err = r.attachment(ctx, in.File, media.CategoryChatFiles, false); err != nil {
		return nil, false, err
	}

	m, replayed, err := r.Messages.AppendIdempotent(ctx, in, key)
	if err != nil || replayed {
		return m, replayed, err
	}
	r.fanOut(ctx, m.SenderID, m.ReceiverID)
	return m, false, nil
}

func (r *Router) attachment(ctx context.Context, v *string, category string, imageOnly bool) (*string, error) {
	if v == nil {
		return nil, nil
	}
	raw := strings.TrimSpace(*v)
	switch {
	case raw == "":
		return nil, nil
	case strings.HasPrefix(raw, media.WebPrefix+"/"):
		return &raw, nil
	case imageOnly != isImageDataURI(raw):
		return nil, nil
	case media.IsDataURI(raw):
		if r.Media == nil {
			return nil, nil
		}
		p, err := r.Media.SaveDataURI(ctx, raw, category)
		if err != nil {
			return nil, err
		}
		return &p, nil
	default:
		return nil, nil
	}
}

func isImageDataURI(s string) bool {
	return len(s) >= len("data:image/") && strings.EqualFold(s[:len("data:image/")], "data:image/")
}

// fanOut pushes fresh views of the sender/receiver conversation. Order:
// sender transcript (sender, admins), sender inbox, admin inbox, receiver
// transcript (receiver, admins), receiver inbox. View failures are logged
// and the remaining steps still run.
func (r *Router) fanOut(ctx context.Context, senderID, receiverID uint) {
	r.pushTranscript(ctx, senderID, receiverID)
	r.pushInbox(ctx, senderID)
	if err := r.publishAdminInbox(ctx); err != nil {
		logFanOut(err, "admin inbox")
	}
	r.pushTranscript(ctx, receiverID, senderID)
	r.pushInbox(ctx, receiverID)
}

func (r *Router) pushTranscript(ctx context.Context, viewer, peer uint) {
	views, err := r.Views.Transcript(ctx, viewer, peer, 0)
	if err != nil {
		logFanOut(err, "transcript")
		return
	}
	r.Registry.Send(viewer, EventGetSubChat, views)
	r.Registry.SendToAdmins(EventGetSubChat, views)
}

func (r *Router) pushInbox(ctx context.Context, userID uint) {
	if !r.Registry.IsRegistered(userID) {
		return
	}
	list, err := r.Views.Inbox(ctx, userID)
	if err != nil {
		logFanOut(err, "inbox")
		return
	}
	r.Registry.Send(userID, EventGetMainChat, list)
}

func logFanOut(err error, step string) {
	log.Error().Err(err).Str("step", step).Msg("ws: fan-out")
}

func (r *Router) publishAdminInbox(ctx context.Context) error {
	list, err := r.Views.AdminInbox(ctx)
	if err != nil {
		return err
	}
	if r.AdminEnforced {
		r.Registry.SendToAdmins(EventGetAdminMainChat, list)
	} else {
		r.Registry.Broadcast(EventGetAdminMainChat, list)
	}
	return nil
}

func (r *Router) handleReadMessage(ctx context.Context, s *Session, data json.RawMessage) error {
	var p ReadMessagePayload
	if err := r.decode(data, &p); err != nil {
		s.Logger().Debug().Err(err).Msg("ws: invalid read_message ignored")
		return errIgnored
	}
	sender, receiver := p.SenderID.Uint(), p.ReceiverID.Uint()
	n, err := r.Messages.MarkRead(ctx, sender, receiver)
	if err != nil {
		return failWith(s, err, msgReadFailed)
	}
	s.Logger().Debug().Int64("messages", n).Uint("sender_id", sender).Msg("ws: marked read")

	r.pushTranscript(ctx, receiver, sender)
	r.pushTranscript(ctx, sender, receiver)
	r.pushInbox(ctx, receiver)
	r.pushInbox(ctx, sender)
	s.emit(EventMessagesMarkedRead, readAck{SenderID: sender, ReceiverID: receiver})
	return nil
}

func (r *Router) handleTyping(_ context.Context, s *Session, data json.RawMessage) error {
	var p TypingPayload
	if err := r.decode(data, &p); err != nil {
		return errIgnored
	}
	if !r.Registry.Send(p.ReceiverID.Uint(), EventTyping, typingNotice{SenderID: p.SenderID.Uint(), IsTyping: p.IsTyping}) {
		return errIgnored
	}
	return nil
}

func (r *Router) handleFileChunk(ctx context.Context, s *Session, data json.RawMessage) error {
	if r.Assembler == nil {
		return errIgnored
	}
	var p FileChunkPayload
	if err := r.decode(data, &p); err != nil {
		return failWith(s, err, msgUploadFailed)
	}
	up, err := r.Assembler.Append(ctx, media.Chunk{
		Owner:        s.Conn.ID(),
		FileName:     p.FileName,
		Data:         p.Chunk,
		IsLast:       p.IsLast,
		DeclaredSize: p.FileSize,
	})
	if err != nil {
		return failWith(s, err, msgUploadFailed)
	}
	if up == nil {
		return nil
	}

	name, size := up.FileName, up.Size
	in := domain.NewMessage{
		SenderID:   p.SenderID.Uint(),
		ReceiverID: p.ReceiverID.Uint(),
		FileName:   &name,
		FileSize:   &size,
	}
	path := up.WebPath
	if up.IsImage {
		in.Image = &path
	} else {
		in.File = &path
	}
	m, err := r.Messages.Append(ctx, in)
	if err != nil {
		return failWith(s, err, msgUploadFailed)
	}
	s.Logger().Info().Uint("message_id", m.ID).Str("path", path).Msg("ws: upload stored")
	r.fanOut(ctx, m.SenderID, m.ReceiverID)
	return nil
}

func (r *Router) handleSearchMainChat(ctx context.Context, s *Session, data json.RawMessage) error {
	var p SearchPayload
	if err := r.decode(data, &p); err != nil || p.UserID == 0 {
		return errIgnored
	}
	list, err := r.Views.SearchInbox(ctx, p.UserID.Uint(), p.SearchText)
	if err != nil {
		s.Logger().Error().Err(err).Msg("ws: search main chat")
		s.emit(EventSearchResult, []domain.ConversationSummary{})
		return err
	}
	s.emit(EventSearchResult, list)
	return nil
}

func (r *Router) handleSearchAdminMainChat(ctx context.Context, s *Session, data json.RawMessage) error {
	if err := r.requireAdmin(s); err != nil {
		return err
	}
	var p SearchPayload
	if err := r.decode(data, &p); err != nil || p.UserID == 0 {
		s.emit(EventSearchResult, []domain.AdminConversationSummary{})
		return errIgnored
	}
	list, err := r.Views.SearchAdminInbox(ctx, p.SearchText)
	if err != nil {
		return failWith(s, err, msgSearchFailed)
	}
	s.emit(EventSearchResult, list)
	return nil
}
