package store

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/shrimpsizemoose/kladdkaka/internal/models"
)

type LedgerStore interface {
	Close() error
	ApplyMigrations(dir string) error

	// CreateTransaction appends a ledger row. Returns false without an
	// error when the row's dedup key is already present, so callers can
	// tell "granted" from "already granted". The uniqueness lives in the
	// schema, not in a read-then-write check.
	CreateTransaction(tx *models.CreditTransaction) (bool, error)
	GetTransactionByDedupKey(userID, dedupKey string) (*models.CreditTransaction, error)
	DeleteTransactionByDedupKey(userID, dedupKey string) (bool, error)
	ListTransactions(userID string) ([]models.CreditTransaction, error)
	TotalCredits(userID string) (int, error)
	FetchLeaderboard(limit int) ([]models.LeaderboardRow, error)

	GetAttendance(lectureID, studentID string) (*models.AttendanceRecord, error)
	UpsertAttendance(rec models.AttendanceRecord) error
	ListLectureAttendance(lectureID string) ([]models.AttendanceRecord, error)

	GetSubmission(assignmentID, studentID string) (*models.HomeworkSubmission, error)
	CreateSubmission(sub *models.HomeworkSubmission) error
	SaveGrade(assignmentID, studentID string, grade int, feedback string, gradedAt int64) error

	GetProfile(userID string) (*models.Profile, error)
	CreateProfile(p models.Profile) error
	PromoteToOrganizer(userID string) error
}

// BaseStore provides common functionality for different DB implementations
type BaseStore struct {
	DB        *sqlx.DB
	Converter func(string) string
}

func (s *BaseStore) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// ApplyMigrations applies SQL migrations from a directory, translating dialect if needed
func (s *BaseStore) ApplyMigrations(dir string, translateSQL func(string) string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	for _, file := range files {
		if !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		content, err := os.ReadFile(fmt.Sprintf("%s/%s", dir, file.Name()))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file.Name(), err)
		}

		sql := string(content)
		if translateSQL != nil {
			sql = translateSQL(sql)
		}

		if _, err := s.DB.Exec(sql); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file.Name(), err)
		}
	}

	return nil
}

func (s *BaseStore) GetTransactionByDedupKey(userID, dedupKey string) (*models.CreditTransaction, error) {
	var tx models.CreditTransaction
	query := s.Converter(`
		SELECT id, user_id, amount, reason, dedup_key, issuer_id, created_at
		FROM credit_transactions
		WHERE user_id = ?
		AND dedup_key = ?
	`)

	err := s.DB.Get(&tx, query, userID, dedupKey)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction by dedup key: %w", err)
	}
	return &tx, nil
}

func (s *BaseStore) DeleteTransactionByDedupKey(userID, dedupKey string) (bool, error) {
	query := s.Converter(`
		DELETE FROM credit_transactions
		WHERE user_id = ?
		AND dedup_key = ?
	`)

	res, err := s.DB.Exec(query, userID, dedupKey)
	if err != nil {
		return false, fmt.Errorf("failed to delete transaction: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to count deleted rows: %w", err)
	}
	return n > 0, nil
}

func (s *BaseStore) ListTransactions(userID string) ([]models.CreditTransaction, error) {
	var txs []models.CreditTransaction
	query := s.Converter(`
		SELECT id, user_id, amount, reason, dedup_key, issuer_id, created_at
		FROM credit_transactions
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`)

	err := s.DB.Select(&txs, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	return txs, nil
}

func (s *BaseStore) TotalCredits(userID string) (int, error) {
	var total int
	query := s.Converter(`
		SELECT COALESCE(SUM(amount), 0)
		FROM credit_transactions
		WHERE user_id = ?
	`)

	if err := s.DB.Get(&total, query, userID); err != nil {
		return 0, fmt.Errorf("failed to sum credits: %w", err)
	}
	return total, nil
}

func (s *BaseStore) FetchLeaderboard(limit int) ([]models.LeaderboardRow, error) {
	var rows []models.LeaderboardRow
	query := s.Converter(`
		SELECT
			p.id AS user_id,
			p.display_name,
			COALESCE(SUM(t.amount), 0) AS total
		FROM profiles p
		LEFT JOIN credit_transactions t ON t.user_id = p.id
		GROUP BY p.id, p.display_name
		ORDER BY total DESC, p.display_name ASC
		LIMIT ?
	`)

	err := s.DB.Select(&rows, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch leaderboard: %w", err)
	}

	return rows, nil
}

func (s *BaseStore) GetAttendance(lectureID, studentID string) (*models.AttendanceRecord, error) {
	var rec models.AttendanceRecord
	query := s.Converter(`
		SELECT lecture_id, student_id, status, organizer_id, marked_at
		FROM attendance_records
		WHERE lecture_id = ?
		AND student_id = ?
	`)

	err := s.DB.Get(&rec, query, lectureID, studentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attendance record: %w", err)
	}
	return &rec, nil
}

func (s *BaseStore) UpsertAttendance(rec models.AttendanceRecord) error {
	_, err := s.DB.NamedExec(`
		INSERT INTO attendance_records (lecture_id, student_id, status, organizer_id, marked_at)
		VALUES (:lecture_id, :student_id, :status, :organizer_id, :marked_at)
		ON CONFLICT(lecture_id, student_id) DO UPDATE SET
		status = :status,
		organizer_id = :organizer_id,
		marked_at = :marked_at
	`, rec)
	if err != nil {
		return fmt.Errorf("failed to upsert attendance record: %w", err)
	}
	return nil
}

func (s *BaseStore) ListLectureAttendance(lectureID string) ([]models.AttendanceRecord, error) {
	var recs []models.AttendanceRecord
	query := s.Converter(`
		SELECT lecture_id, student_id, status, organizer_id, marked_at
		FROM attendance_records
		WHERE lecture_id = ?
		ORDER BY student_id ASC
	`)

	err := s.DB.Select(&recs, query, lectureID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}

	return recs, nil
}

func (s *BaseStore) GetSubmission(assignmentID, studentID string) (*models.HomeworkSubmission, error) {
	var sub models.HomeworkSubmission
	query := s.Converter(`
		SELECT assignment_id, student_id, content, file_url, grade, feedback, submitted_at, graded_at
		FROM homework_submissions
		WHERE assignment_id = ?
		AND student_id = ?
	`)

	err := s.DB.Get(&sub, query, assignmentID, studentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return &sub, nil
}

func (s *BaseStore) CreateSubmission(sub *models.HomeworkSubmission) error {
	_, err := s.DB.NamedExec(`
		INSERT INTO homework_submissions (assignment_id, student_id, content, file_url, feedback, submitted_at)
		VALUES (:assignment_id, :student_id, :content, :file_url, :feedback, :submitted_at)
		ON CONFLICT(assignment_id, student_id) DO UPDATE SET
		content = :content,
		file_url = :file_url,
		submitted_at = :submitted_at
	`, sub)
	if err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}
	return nil
}

func (s *BaseStore) SaveGrade(assignmentID, studentID string, grade int, feedback string, gradedAt int64) error {
	query := s.Converter(`
		UPDATE homework_submissions
		SET grade = ?, feedback = ?, graded_at = ?
		WHERE assignment_id = ?
		AND student_id = ?
	`)

	res, err := s.DB.Exec(query, grade, feedback, gradedAt, assignmentID, studentID)
	if err != nil {
		return fmt.Errorf("failed to save grade: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count graded rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("no submission for assignment %s by student %s", assignmentID, studentID)
	}
	return nil
}

func (s *BaseStore) GetProfile(userID string) (*models.Profile, error) {
	var p models.Profile
	query := s.Converter(`
		SELECT id, display_name, role, created_at
		FROM profiles
		WHERE id = ?
	`)

	err := s.DB.Get(&p, query, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

func (s *BaseStore) CreateProfile(p models.Profile) error {
	_, err := s.DB.NamedExec(`
		INSERT INTO profiles (id, display_name, role, created_at)
		VALUES (:id, :display_name, :role, :created_at)
	`, p)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// PromoteToOrganizer flips role one way. Promoting an organizer again is
// a no-op, there is no demotion path.
func (s *BaseStore) PromoteToOrganizer(userID string) error {
	query := s.Converter(`
		UPDATE profiles
		SET role = 'organizer'
		WHERE id = ?
	`)

	res, err := s.DB.Exec(query, userID)
	if err != nil {
		return fmt.Errorf("failed to promote user: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count promoted rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("no profile with id %s", userID)
	}
	return nil
}
