package channel

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/oklog/ulid/v2"

	"github.com/voxtask/voxtask/internal/dispatch"
	"github.com/voxtask/voxtask/internal/observe"
	"github.com/voxtask/voxtask/internal/resilience"
	"github.com/voxtask/voxtask/internal/taskstore"
	"github.com/voxtask/voxtask/pkg/provider/stt"
)

// Defaults for the channel's own knobs.
const (
	DefaultMaxAudioBytes     = 10 << 20
	DefaultTranscribeTimeout = 15 * time.Second

	// outBuffer is the per-connection outbound frame queue depth.
	outBuffer = 32
)

// ServerConfig assembles a [Server]. Dispatcher and Tokens are required; an
// absent STT provider limits the channel to text input.
type ServerConfig struct {
	// Dispatcher handles every utterance.
	Dispatcher *dispatch.Dispatcher

	// STT, when non-nil, transcribes audio voice input.
	STT stt.Provider

	// Hub fans out notifications. When nil a private hub is created, which
	// still delivers same-user cross-connection pushes as long as the
	// dispatcher is wired to it.
	Hub *Hub

	// Tokens maps bearer tokens to user IDs.
	Tokens map[string]string

	// AllowedOrigins is passed to the WebSocket origin check. Empty means
	// same-origin only.
	AllowedOrigins []string

	// MaxAudioBytes caps a decoded audio clip. Default: 10 MiB.
	MaxAudioBytes int

	// TranscribeTimeout bounds one transcription call. Default: 15s.
	TranscribeTimeout time.Duration

	// Metrics, when non-nil, receives connection and transcription
	// instrumentation.
	Metrics *observe.Metrics
}

// Server upgrades HTTP requests to voice command sessions.
type Server struct {
	dispatcher *dispatch.Dispatcher
	stt        stt.Provider
	sttBreaker *resilience.CircuitBreaker
	hub        *Hub
	tokens     map[string]string
	origins    []string
	maxAudio   int
	sttTimeout time.Duration
	metrics    *observe.Metrics
}

// Hub implements the dispatcher's notifier contract.
var _ dispatch.Notifier = (*Hub)(nil)

// NewServer creates a [Server] from cfg, applying documented defaults for
// zero values.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Hub == nil {
		cfg.Hub = NewHub()
	}
	if cfg.MaxAudioBytes <= 0 {
		cfg.MaxAudioBytes = DefaultMaxAudioBytes
	}
	if cfg.TranscribeTimeout <= 0 {
		cfg.TranscribeTimeout = DefaultTranscribeTimeout
	}

	s := &Server{
		dispatcher: cfg.Dispatcher,
		stt:        cfg.STT,
		hub:        cfg.Hub,
		tokens:     cfg.Tokens,
		origins:    cfg.AllowedOrigins,
		maxAudio:   cfg.MaxAudioBytes,
		sttTimeout: cfg.TranscribeTimeout,
		metrics:    cfg.Metrics,
	}
	if cfg.STT != nil {
		s.sttBreaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name: "stt",
		})
	}
	return s
}

// ServeHTTP authenticates the request, upgrades it, and runs the session
// until the client disconnects. Disconnecting leaves any pending
// conversation context intact; a reconnect within the inactivity window
// resumes it.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.authenticate(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.origins,
	})
	if err != nil {
		slog.Warn("channel: accept failed", "user", userID, "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "session ended")

	sessionID := ulid.Make().String()
	slog.Info("channel: session started", "user", userID, "session", sessionID)

	if s.metrics != nil {
		s.metrics.ActiveConnections.Add(r.Context(), 1)
		defer s.metrics.ActiveConnections.Add(r.Context(), -1)
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := make(chan serverMessage, outBuffer)
	notifications := make(chan taskstore.Notification, notifyBuffer)
	unregister := s.hub.register(userID, notifications)
	defer unregister()

	// Single writer goroutine; the read loop and the notification forwarder
	// both enqueue instead of writing directly.
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-out:
				if err := wsjson.Write(ctx, conn, msg); err != nil {
					cancel()
					return
				}
			}
		}
	}()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-notifications:
				s.enqueue(ctx, out, serverMessage{Type: typeNotification, Notification: &n})
			}
		}
	}()

	s.readLoop(ctx, conn, userID, sessionID, out)

	cancel()
	<-writeDone
	conn.Close(websocket.StatusNormalClosure, "")
	slog.Info("channel: session ended", "user", userID, "session", sessionID)
}

// authenticate resolves the request's bearer token to a user ID. The token
// is taken from the Authorization header, or from the "token" query
// parameter since browsers cannot set headers on WebSocket dials.
func (s *Server) authenticate(r *http.Request) (string, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" || token == r.Header.Get("Authorization") {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return "", false
	}
	userID, ok := s.tokens[token]
	return userID, ok
}

// readLoop handles inbound frames one at a time until the connection drops.
// Handling is synchronous, which is what guarantees per-user ordering.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, userID, sessionID string, out chan<- serverMessage) {
	for {
		var msg clientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				slog.Debug("channel: read failed", "user", userID, "error", err)
			}
			return
		}

		switch msg.Type {
		case typePing:
			s.enqueue(ctx, out, serverMessage{Type: typePong})

		case typeVoiceInput:
			s.enqueue(ctx, out, s.handleVoiceInput(ctx, userID, sessionID, msg))

		default:
			s.enqueue(ctx, out, serverMessage{
				Type:    typeError,
				Code:    codeBadMessage,
				Message: fmt.Sprintf("unsupported message type %q", msg.Type),
			})
		}
	}
}

// handleVoiceInput transcribes the input if needed and dispatches it.
func (s *Server) handleVoiceInput(ctx context.Context, userID, sessionID string, msg clientMessage) serverMessage {
	text := msg.Text
	confidence := 1.0
	if msg.Confidence > 0 {
		confidence = msg.Confidence
	}

	if text == "" && msg.Audio != "" {
		transcript, errMsg := s.transcribe(ctx, msg)
		if errMsg != nil {
			return *errMsg
		}
		text = transcript.Text
		confidence = transcript.Confidence
	}

	result := s.dispatcher.Dispatch(ctx, userID, dispatch.Utterance{
		Text:       text,
		Confidence: confidence,
		Timestamp:  time.Now(),
		SessionID:  sessionID,
	})
	return serverMessage{Type: typeResponse, Transcription: text, Confidence: confidence, Result: &result}
}

// transcribe decodes and transcribes an audio clip. A non-nil serverMessage
// return is the frame to send instead of a dispatch response.
func (s *Server) transcribe(ctx context.Context, msg clientMessage) (stt.Transcript, *serverMessage) {
	if s.stt == nil {
		return stt.Transcript{}, &serverMessage{
			Type:    typeError,
			Code:    codeSTTUnavailable,
			Message: "audio input is not enabled on this server",
		}
	}

	audio, err := base64.StdEncoding.DecodeString(msg.Audio)
	if err != nil {
		return stt.Transcript{}, &serverMessage{
			Type:    typeError,
			Code:    codeBadMessage,
			Message: "audio is not valid base64",
		}
	}
	if len(audio) > s.maxAudio {
		return stt.Transcript{}, &serverMessage{
			Type:    typeError,
			Code:    codeAudioTooLarge,
			Message: fmt.Sprintf("audio clip exceeds %d bytes", s.maxAudio),
		}
	}

	var transcript stt.Transcript
	start := time.Now()
	err = s.sttBreaker.Execute(func() error {
		return resilience.WithTimeout(ctx, s.sttTimeout, func(tctx context.Context) error {
			var terr error
			transcript, terr = s.stt.Transcribe(tctx, audio, stt.ClipConfig{
				Language: msg.Language,
				MIMEType: msg.MIMEType,
			})
			return terr
		})
	})
	if s.metrics != nil {
		s.metrics.TranscriptionDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		slog.Warn("channel: transcription failed", "error", err)
		failed := dispatch.TranscriptionFailureResult()
		return stt.Transcript{}, &serverMessage{Type: typeResponse, Result: &failed}
	}
	return transcript, nil
}

// enqueue places msg on the outbound queue unless the session is closing.
func (s *Server) enqueue(ctx context.Context, out chan<- serverMessage, msg serverMessage) {
	select {
	case out <- msg:
	case <-ctx.Done():
	}
}
