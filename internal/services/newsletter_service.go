package services

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var ErrInvalidEmail = errors.New("invalid email address")

// noticeTTL is how long the subscription confirmation stays visible before
// it auto-clears.
const noticeTTL = 3 * time.Second

// NewsletterService records newsletter sign-ups and keeps the transient
// "thank you" notice shown right after subscribing.
type NewsletterService struct {
	db     *sql.DB
	logger zerolog.Logger

	mu          sync.Mutex
	notice      string
	noticeTimer *time.Timer
}

func NewNewsletterService(db *sql.DB, logger zerolog.Logger) *NewsletterService {
	return &NewsletterService{db: db, logger: logger}
}

// Subscribe validates the address locally and records it. Subscribing the
// same address twice is a no-op. On success a confirmation notice is set and
// auto-cleared after a fixed delay.
func (s *NewsletterService) Subscribe(email string) (string, error) {
	if email == "" || !emailPattern.MatchString(email) {
		return "", ErrInvalidEmail
	}

	_, err := s.db.Exec(
		"INSERT INTO newsletter_subscribers (email) VALUES (?) ON DUPLICATE KEY UPDATE email = email",
		email,
	)
	if err != nil {
		s.logger.Error().Err(err).Str("email", email).Msg("Error recording newsletter subscription")
		return "", fmt.Errorf("failed to subscribe: %w", err)
	}

	notice := "Thank you for subscribing! Check your email for a special welcome gift."
	s.setNotice(notice)

	s.logger.Info().Str("email", email).Msg("Newsletter subscription recorded")
	return notice, nil
}

func (s *NewsletterService) setNotice(notice string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notice = notice
	if s.noticeTimer != nil {
		s.noticeTimer.Stop()
	}
	s.noticeTimer = time.AfterFunc(noticeTTL, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.notice = ""
	})
}

// Notice returns the currently visible confirmation notice, empty once it
// has auto-cleared.
func (s *NewsletterService) Notice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notice
}

// Close cancels the pending auto-clear.
func (s *NewsletterService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.noticeTimer != nil {
		s.noticeTimer.Stop()
		s.noticeTimer = nil
	}
}
