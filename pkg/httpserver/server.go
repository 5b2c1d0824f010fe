// Package httpserver exposes the dialogue pipeline over HTTP: the provider
// webhook, a direct message endpoint for manual testing, and a pair of
// operational endpoints.
package httpserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/vrtravels/tour-concierge/agent/contract"
	"github.com/vrtravels/tour-concierge/agent/session"
	"github.com/vrtravels/tour-concierge/pkg/whatsapp"
)

const (
	maxProcessedMessages  = 1000
	trimProcessedMessages = 500
	debounceWindow        = 3 * time.Second
	debounceSweepAge      = 30 * time.Second
	debounceSweepFloor    = 500
	debounceKeyPrefixLen  = 50
)

type Config struct {
	Host string `envconfig:"HOST" split_words:"true" default:"0.0.0.0"`
	Port int    `envconfig:"PORT" split_words:"true" default:"3000"`
}

// Answerer produces one reply for one user query.
type Answerer interface {
	Answer(ctx context.Context, query, userIdentifier string) string
}

type Server struct {
	cfg              Config
	answerer         Answerer
	sessions         *session.Manager
	deliverer        contract.Deliverer
	integratedNumber string

	mu           sync.Mutex
	processed    map[string]struct{}
	processedSeq []string
	lastReplies  map[string]time.Time

	httpServer *http.Server
	now        func() time.Time
}

func NewServer(cfg Config, answerer Answerer, sessions *session.Manager, deliverer contract.Deliverer, integratedNumber string) *Server {
	s := &Server{
		cfg:              cfg,
		answerer:         answerer,
		sessions:         sessions,
		deliverer:        deliverer,
		integratedNumber: integratedNumber,
		processed:        make(map[string]struct{}),
		lastReplies:      make(map[string]time.Time),
		now:              time.Now,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	api.POST("/message", s.handleWebhook)
	api.POST("/simple-message", s.handleSimpleMessage)
	api.GET("/health", s.handleHealth)
	api.GET("/chat-history/:phoneNumber", s.handleChatHistory)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: router,
	}
	return s
}

// Start blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	inbound := whatsapp.ParseWebhook(body)
	if inbound == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if s.alreadyProcessed(inbound.MessageID) {
		log.Debug().Str("messageId", inbound.MessageID).Msg("duplicate webhook message skipped")
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	}

	log.Info().
		Str("from", inbound.RecipientNumber).
		Str("userName", inbound.UserName).
		Msg("webhook message received")

	s.sessions.AppendHistory(inbound.RecipientNumber, "user", inbound.Message)
	reply := s.answerer.Answer(c.Request.Context(), inbound.Message, inbound.RecipientNumber)
	s.sessions.AppendHistory(inbound.RecipientNumber, "assistant", reply)

	if s.debounced(inbound.RecipientNumber, reply) {
		log.Debug().Str("recipient", inbound.RecipientNumber).Msg("reply debounced")
		c.JSON(http.StatusOK, gin.H{"status": "debounced"})
		return
	}

	if s.deliverer != nil {
		if err := s.deliverer.Send(c.Request.Context(), reply, inbound.RecipientNumber); err != nil {
			log.Error().Err(err).Str("recipient", inbound.RecipientNumber).Msg("delivery failed")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "processed",
		"response": reply,
	})
}

type simpleMessageRequest struct {
	Message     string `json:"message"`
	PhoneNumber string `json:"phoneNumber"`
}

func (s *Server) handleSimpleMessage(c *gin.Context) {
	var req simpleMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}
	user := req.PhoneNumber
	if user == "" {
		user = "api-user"
	}

	s.sessions.AppendHistory(user, "user", req.Message)
	reply := s.answerer.Answer(c.Request.Context(), req.Message, user)
	s.sessions.AppendHistory(user, "assistant", reply)

	c.JSON(http.StatusOK, gin.H{"response": reply})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "OK",
		"message":          "WhatsApp Tour Bot is running",
		"timestamp":        s.now().UTC().Format(time.RFC3339),
		"integratedNumber": s.integratedNumber,
		"activeSessions":   s.sessions.Count(),
	})
}

func (s *Server) handleChatHistory(c *gin.Context) {
	phoneNumber := c.Param("phoneNumber")
	sess, ok := s.sessions.Lookup(phoneNumber)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No chat history found for this number"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"phoneNumber":     phoneNumber,
		"chatHistory":     sess.History,
		"lastInteraction": sess.LastInteraction,
		"currentTourId":   sess.CurrentTourID,
		"awaitingTourId":  sess.AwaitingTourID,
	})
}

// alreadyProcessed records id and reports whether it was seen before. The set
// is bounded so long-running processes do not grow without limit.
func (s *Server) alreadyProcessed(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.processed[id]; ok {
		return true
	}
	s.processed[id] = struct{}{}
	s.processedSeq = append(s.processedSeq, id)

	if len(s.processedSeq) > maxProcessedMessages {
		drop := len(s.processedSeq) - trimProcessedMessages
		for _, old := range s.processedSeq[:drop] {
			delete(s.processed, old)
		}
		s.processedSeq = append(s.processedSeq[:0], s.processedSeq[drop:]...)
	}
	return false
}

// debounced suppresses identical replies to the same recipient inside a short
// window. The provider occasionally replays webhooks back to back.
func (s *Server) debounced(recipient, reply string) bool {
	prefix := reply
	if len(prefix) > debounceKeyPrefixLen {
		prefix = prefix[:debounceKeyPrefixLen]
	}
	key := recipient + "|" + prefix

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if last, ok := s.lastReplies[key]; ok && now.Sub(last) < debounceWindow {
		return true
	}
	s.lastReplies[key] = now

	if len(s.lastReplies) > debounceSweepFloor {
		for k, t := range s.lastReplies {
			if now.Sub(t) > debounceSweepAge {
				delete(s.lastReplies, k)
			}
		}
	}
	return false
}
