package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/kladdkaka/internal/metrics"
	"github.com/shrimpsizemoose/kladdkaka/internal/models"
	"github.com/shrimpsizemoose/kladdkaka/internal/rules"
	"github.com/shrimpsizemoose/kladdkaka/internal/store"
)

type Service struct {
	Config *Config
	Store  store.LedgerStore
	Auth   *Auth
}

func NewService(configPath string) (*Service, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	store, err := NewStore(config.Database.DSN, config.Database.MigrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	auth, err := NewAuth(config)
	if err != nil {
		return nil, fmt.Errorf("failed to init auth: %w", err)
	}

	return &Service{
		Config: config,
		Store:  store,
		Auth:   auth,
	}, nil
}

// NewBotService wires a service around an existing store for callers that
// bring their own config surface, like the bot. Credit amounts get the
// same per-field defaults LoadConfig applies.
func NewBotService(ledger store.LedgerStore, credits rules.Amounts) *Service {
	config := &Config{}
	config.Credits = credits
	config.setDefaults()

	return &Service{
		Config: config,
		Store:  ledger,
		Auth:   &Auth{},
	}
}

// AttendanceMark is one row of an organizer's attendance sheet.
type AttendanceMark struct {
	StudentID string `json:"student_id"`
	Status    string `json:"status"`
}

func (s *Service) ValidateAuthAndUser(r *http.Request, course, user string) error {
	if !s.Config.Server.EnableAuth {
		return nil
	}

	authHeader := r.Header.Get(s.Auth.tokenHeader)
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return fmt.Errorf("Invalid authorization header format")
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")

	return s.Auth.ValidateToken(r.Context(), course, user, token)
}

func (s *Service) ValidateHeaders(headers map[string][]string) bool {
	for _, required := range s.Config.API.RequiredHeaders {
		value := headers[http.CanonicalHeaderKey(required.Name)]
		if len(value) == 0 || !strings.EqualFold(value[0], required.Value) {
			return false
		}
	}
	return true
}

func (s *Service) retryLedger(ctx context.Context, fn func() error) error {
	return withRetry(
		ctx,
		s.Config.Retry.MaxAttempts,
		time.Duration(s.Config.Retry.BaseDelayMs)*time.Millisecond,
		fn,
	)
}

// grantCredit writes the transaction an event maps to. Returns false when
// the event was already credited (dedup hit) or carries no credit.
func (s *Service) grantCredit(ctx context.Context, ev rules.Event) (bool, error) {
	tx, err := rules.Transaction(ev, s.Config.Credits, time.Now().Unix())
	if err != nil {
		return false, err
	}
	if tx == nil {
		return false, nil
	}

	var inserted bool
	err = s.retryLedger(ctx, func() error {
		var err error
		inserted, err = s.Store.CreateTransaction(tx)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to record credit: %w", err)
	}

	if inserted {
		metrics.CreditGrantsTotal.WithLabelValues(string(ev.Kind)).Inc()
		metrics.CreditAmountHistogram.WithLabelValues(string(ev.Kind)).Observe(float64(tx.Amount))
	}
	return inserted, nil
}

// revokeCredit deletes the transaction an event previously produced.
func (s *Service) revokeCredit(ctx context.Context, ev rules.Event) (bool, error) {
	key := ev.DedupKey()
	if key == "" {
		return false, fmt.Errorf("event %s has no dedup key to revoke by", ev.Kind)
	}

	var deleted bool
	err := s.retryLedger(ctx, func() error {
		var err error
		deleted, err = s.Store.DeleteTransactionByDedupKey(ev.UserID, key)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to revoke credit: %w", err)
	}

	if deleted {
		metrics.CreditRevocationsTotal.WithLabelValues(string(ev.Kind)).Inc()
	}
	return deleted, nil
}

// RecordEngagement grants the small self-issued credit for a post,
// comment or shared material. Replays of the same entity are no-ops.
func (s *Service) RecordEngagement(ctx context.Context, ev rules.Event) (bool, error) {
	switch ev.Kind {
	case rules.KindPost, rules.KindComment, rules.KindMaterial:
	default:
		return false, fmt.Errorf("not an engagement event: %s", ev.Kind)
	}

	return s.grantCredit(ctx, ev)
}

// SaveAttendance upserts the organizer's sheet for one lecture and
// reconciles attendance credit per student: present gets the lecture's
// credit exactly once, absent takes it back. The attendance row is the
// primary action; a failed credit write is logged and counted but never
// fails the save.
func (s *Service) SaveAttendance(ctx context.Context, lectureID, lectureTitle, organizerID string, marks []AttendanceMark) error {
	var errs []error

	for _, mark := range marks {
		rec := models.AttendanceRecord{
			LectureID:   lectureID,
			StudentID:   mark.StudentID,
			Status:      mark.Status,
			OrganizerID: organizerID,
			MarkedAt:    time.Now().Unix(),
		}
		if err := rec.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("student %s: %w", mark.StudentID, err))
			continue
		}

		if err := s.Store.UpsertAttendance(rec); err != nil {
			errs = append(errs, fmt.Errorf("student %s: %w", mark.StudentID, err))
			continue
		}

		ev := rules.Event{
			Kind:     rules.KindAttendance,
			UserID:   mark.StudentID,
			IssuerID: organizerID,
			EntityID: lectureID,
			Title:    lectureTitle,
		}

		var err error
		if mark.Status == models.AttendancePresent {
			_, err = s.grantCredit(ctx, ev)
		} else {
			_, err = s.revokeCredit(ctx, ev)
		}
		if err != nil {
			logger.Error.Printf("Attendance credit for %s/%s failed: %v", lectureID, mark.StudentID, err)
			metrics.CreditFailuresTotal.WithLabelValues(string(rules.KindAttendance)).Inc()
		}
	}

	return errors.Join(errs...)
}

// SubmitHomework upserts a student's answer to an assignment. Resubmitting
// replaces content and file; an existing grade stays until the next
// grading pass.
func (s *Service) SubmitHomework(ctx context.Context, assignmentID, studentID, content, fileURL string) error {
	if strings.TrimSpace(content) == "" && fileURL == "" {
		return fmt.Errorf("submission needs content or a file")
	}

	sub := &models.HomeworkSubmission{
		AssignmentID: assignmentID,
		StudentID:    studentID,
		Content:      content,
		FileURL:      fileURL,
		SubmittedAt:  time.Now().Unix(),
	}
	if err := sub.Validate(); err != nil {
		return err
	}

	return s.Store.CreateSubmission(sub)
}

// GradeSubmission saves grade and feedback on the submission, then
// replaces any previous credit for this assignment with one worth the new
// grade. Re-grading from G1 to G2 nets exactly G2-G1 on the ledger.
func (s *Service) GradeSubmission(ctx context.Context, assignmentID, assignmentTitle, studentID, issuerID string, grade int, feedback string) error {
	ev := rules.Event{
		Kind:     rules.KindHomework,
		UserID:   studentID,
		IssuerID: issuerID,
		EntityID: assignmentID,
		Title:    assignmentTitle,
		Grade:    grade,
	}
	if err := ev.Validate(s.Config.Credits); err != nil {
		return err
	}

	if err := s.Store.SaveGrade(assignmentID, studentID, grade, feedback, time.Now().Unix()); err != nil {
		return err
	}

	if _, err := s.revokeCredit(ctx, ev); err != nil {
		logger.Error.Printf("Grade credit revoke for %s/%s failed: %v", assignmentID, studentID, err)
		metrics.CreditFailuresTotal.WithLabelValues(string(rules.KindHomework)).Inc()
		return nil
	}
	if _, err := s.grantCredit(ctx, ev); err != nil {
		logger.Error.Printf("Grade credit for %s/%s failed: %v", assignmentID, studentID, err)
		metrics.CreditFailuresTotal.WithLabelValues(string(rules.KindHomework)).Inc()
	}

	return nil
}

// AwardBonus appends an organizer bonus. Unlike automatic credit it has
// no dedup key: awarding twice with the same reason credits twice.
func (s *Service) AwardBonus(ctx context.Context, userID, issuerID string, amount int, reason string) (*models.CreditTransaction, error) {
	ev := rules.Event{
		Kind:     rules.KindBonus,
		UserID:   userID,
		IssuerID: issuerID,
		Amount:   amount,
		Reason:   strings.TrimSpace(reason),
	}

	tx, err := rules.Transaction(ev, s.Config.Credits, time.Now().Unix())
	if err != nil {
		return nil, err
	}

	err = s.retryLedger(ctx, func() error {
		_, err := s.Store.CreateTransaction(tx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to award bonus: %w", err)
	}

	metrics.CreditGrantsTotal.WithLabelValues(string(rules.KindBonus)).Inc()
	metrics.CreditAmountHistogram.WithLabelValues(string(rules.KindBonus)).Observe(float64(amount))

	return tx, nil
}

func (s *Service) History(userID string) ([]models.CreditTransaction, error) {
	return s.Store.ListTransactions(userID)
}

func (s *Service) Balance(userID string) (int, error) {
	return s.Store.TotalCredits(userID)
}

func (s *Service) Leaderboard() ([]models.LeaderboardRow, error) {
	return s.Store.FetchLeaderboard(s.Config.Leaderboard.Limit)
}

// PromoteUser is the only privilege escalation path: a shared secret
// flips a profile to organizer, one way.
func (s *Service) PromoteUser(secret, userID string) error {
	if s.Config.Promotion.Secret == "" {
		return fmt.Errorf("promotion is not configured")
	}
	if secret != s.Config.Promotion.Secret {
		return fmt.Errorf("invalid promotion secret")
	}
	if userID == "" {
		return fmt.Errorf("user id is required")
	}

	return s.Store.PromoteToOrganizer(userID)
}

func (s *Service) Close() error {
	var errs []error

	if err := s.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if err := s.Auth.Close(); err != nil {
		errs = append(errs, fmt.Errorf("auth: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors while closing: %v", errs)
	}
	return nil
}
