// internal/store/sqlite/store_test.go
package sqlite

import (
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/kladdkaka/internal/models"
)

// setupTestDB creates an in-memory SQLite database with the real migrations
func setupTestDB(t *testing.T) (*SQLiteStore, func()) {
	s, err := NewSQLiteStore(":memory:", "../../../migrations")
	require.NoError(t, err, "Failed to create store")

	cleanup := func() {
		err := s.Close()
		require.NoError(t, err, "Failed to close database")
	}

	return s, cleanup
}

type testData struct {
	store *SQLiteStore
	now   time.Time
}

func setupTestData(t *testing.T) (*testData, func()) {
	s, cleanup := setupTestDB(t)
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	profiles := []models.Profile{
		{ID: "anna.k", DisplayName: "Anna K", Role: models.RoleStudent, CreatedAt: now.Unix()},
		{ID: "bob.m", DisplayName: "Bob M", Role: models.RoleStudent, CreatedAt: now.Unix()},
		{ID: "org.1", DisplayName: "Olga Org", Role: models.RoleOrganizer, CreatedAt: now.Unix()},
	}
	for _, p := range profiles {
		require.NoError(t, s.CreateProfile(p), "Failed to insert test profile")
	}

	return &testData{
		store: s,
		now:   now,
	}, cleanup
}

func TestMain(m *testing.M) {
	log.Println("Starting SQLite store tests...")
	code := m.Run()
	log.Println("Finished SQLite store tests")
	os.Exit(code)
}

func strPtr(s string) *string {
	return &s
}

func TestCreateAndGetTransaction(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()

	tx := models.CreditTransaction{
		UserID:    "anna.k",
		Amount:    5,
		Reason:    `Attendance for lecture: "Graph algorithms"`,
		DedupKey:  strPtr("attendance:lec-42"),
		IssuerID:  "org.1",
		CreatedAt: td.now.Unix(),
	}

	t.Run("create transaction", func(t *testing.T) {
		inserted, err := td.store.CreateTransaction(&tx)
		require.NoError(t, err, "Failed to create transaction")
		assert.True(t, inserted)
		assert.NotZero(t, tx.ID, "Insert should backfill the id")
	})

	t.Run("get by dedup key", func(t *testing.T) {
		got, err := td.store.GetTransactionByDedupKey("anna.k", "attendance:lec-42")
		require.NoError(t, err, "Failed to get transaction")
		require.NotNil(t, got)
		assert.Equal(t, tx.ID, got.ID)
		assert.Equal(t, tx.Amount, got.Amount)
		assert.Equal(t, tx.Reason, got.Reason)
		assert.Equal(t, tx.IssuerID, got.IssuerID)
	})

	t.Run("get non-existent dedup key", func(t *testing.T) {
		got, err := td.store.GetTransactionByDedupKey("anna.k", "attendance:lec-999")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestCreateTransaction_DedupConflict(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()

	tx := models.CreditTransaction{
		UserID:    "anna.k",
		Amount:    5,
		Reason:    `Attendance for lecture: "Graph algorithms"`,
		DedupKey:  strPtr("attendance:lec-42"),
		IssuerID:  "org.1",
		CreatedAt: td.now.Unix(),
	}

	inserted, err := td.store.CreateTransaction(&tx)
	require.NoError(t, err)
	require.True(t, inserted)

	t.Run("duplicate automatic credit is rejected silently", func(t *testing.T) {
		dup := tx
		dup.ID = 0
		inserted, err := td.store.CreateTransaction(&dup)
		require.NoError(t, err)
		assert.False(t, inserted)

		total, err := td.store.TotalCredits("anna.k")
		require.NoError(t, err)
		assert.Equal(t, 5, total)
	})

	t.Run("same dedup key for another user is fine", func(t *testing.T) {
		other := tx
		other.ID = 0
		other.UserID = "bob.m"
		inserted, err := td.store.CreateTransaction(&other)
		require.NoError(t, err)
		assert.True(t, inserted)
	})

	t.Run("bonuses without dedup key may repeat", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			bonus := models.CreditTransaction{
				UserID:    "anna.k",
				Amount:    15,
				Reason:    "helpful peer",
				IssuerID:  "org.1",
				CreatedAt: td.now.Unix(),
			}
			inserted, err := td.store.CreateTransaction(&bonus)
			require.NoError(t, err)
			assert.True(t, inserted)
		}

		total, err := td.store.TotalCredits("anna.k")
		require.NoError(t, err)
		assert.Equal(t, 35, total)
	})
}

func TestDeleteTransactionByDedupKey(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()

	tx := models.CreditTransaction{
		UserID:    "anna.k",
		Amount:    5,
		Reason:    `Attendance for lecture: "Graph algorithms"`,
		DedupKey:  strPtr("attendance:lec-42"),
		IssuerID:  "org.1",
		CreatedAt: td.now.Unix(),
	}
	_, err := td.store.CreateTransaction(&tx)
	require.NoError(t, err)

	t.Run("delete existing", func(t *testing.T) {
		deleted, err := td.store.DeleteTransactionByDedupKey("anna.k", "attendance:lec-42")
		require.NoError(t, err)
		assert.True(t, deleted)

		total, err := td.store.TotalCredits("anna.k")
		require.NoError(t, err)
		assert.Equal(t, 0, total)
	})

	t.Run("delete missing is a no-op", func(t *testing.T) {
		deleted, err := td.store.DeleteTransactionByDedupKey("anna.k", "attendance:lec-42")
		require.NoError(t, err)
		assert.False(t, deleted)
	})
}

func TestListTransactions_NewestFirst(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()

	for i, key := range []string{"post:p1", "comment:c1", "attendance:lec-1"} {
		tx := models.CreditTransaction{
			UserID:    "anna.k",
			Amount:    i + 1,
			Reason:    "entry",
			DedupKey:  strPtr(key),
			IssuerID:  "anna.k",
			CreatedAt: td.now.Add(time.Duration(i) * time.Hour).Unix(),
		}
		_, err := td.store.CreateTransaction(&tx)
		require.NoError(t, err)
	}

	txs, err := td.store.ListTransactions("anna.k")
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, "attendance:lec-1", *txs[0].DedupKey)
	assert.Equal(t, "comment:c1", *txs[1].DedupKey)
	assert.Equal(t, "post:p1", *txs[2].DedupKey)
}

func TestTotalCredits_MatchesLedgerSum(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()

	amounts := []int{2, 1, 5, -3, 15}
	for i, amount := range amounts {
		tx := models.CreditTransaction{
			UserID:    "anna.k",
			Amount:    amount,
			Reason:    "entry",
			DedupKey:  strPtr(string(rune('a' + i))),
			IssuerID:  "org.1",
			CreatedAt: td.now.Unix(),
		}
		_, err := td.store.CreateTransaction(&tx)
		require.NoError(t, err)
	}

	total, err := td.store.TotalCredits("anna.k")
	require.NoError(t, err)
	assert.Equal(t, 20, total)

	t.Run("unknown user has zero", func(t *testing.T) {
		total, err := td.store.TotalCredits("not.exists")
		require.NoError(t, err)
		assert.Equal(t, 0, total)
	})
}

func TestFetchLeaderboard(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()

	grants := map[string]int{
		"anna.k": 8,
		"bob.m":  15,
	}
	for user, amount := range grants {
		tx := models.CreditTransaction{
			UserID:    user,
			Amount:    amount,
			Reason:    "seed",
			IssuerID:  "org.1",
			CreatedAt: td.now.Unix(),
		}
		_, err := td.store.CreateTransaction(&tx)
		require.NoError(t, err)
	}

	rows, err := td.store.FetchLeaderboard(10)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "bob.m", rows[0].UserID)
	assert.Equal(t, 15, rows[0].Total)
	assert.Equal(t, "anna.k", rows[1].UserID)
	assert.Equal(t, 8, rows[1].Total)
	// organizer has no transactions but still shows up with zero
	assert.Equal(t, "org.1", rows[2].UserID)
	assert.Equal(t, 0, rows[2].Total)

	t.Run("limit is respected", func(t *testing.T) {
		rows, err := td.store.FetchLeaderboard(1)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "bob.m", rows[0].UserID)
	})
}

func TestAttendanceOperations(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()

	rec := models.AttendanceRecord{
		LectureID:   "lec-42",
		StudentID:   "anna.k",
		Status:      models.AttendancePresent,
		OrganizerID: "org.1",
		MarkedAt:    td.now.Unix(),
	}

	t.Run("upsert creates", func(t *testing.T) {
		require.NoError(t, td.store.UpsertAttendance(rec))

		got, err := td.store.GetAttendance("lec-42", "anna.k")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, models.AttendancePresent, got.Status)
	})

	t.Run("upsert overwrites same pair", func(t *testing.T) {
		rec.Status = models.AttendanceAbsent
		require.NoError(t, td.store.UpsertAttendance(rec))

		got, err := td.store.GetAttendance("lec-42", "anna.k")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, models.AttendanceAbsent, got.Status)

		recs, err := td.store.ListLectureAttendance("lec-42")
		require.NoError(t, err)
		assert.Len(t, recs, 1, "one row per (lecture, student) pair")
	})

	t.Run("get non-existent record", func(t *testing.T) {
		got, err := td.store.GetAttendance("lec-42", "not.exists")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestSubmissionOperations(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()

	sub := models.HomeworkSubmission{
		AssignmentID: "hw-7",
		StudentID:    "anna.k",
		Content:      "my solution",
		SubmittedAt:  td.now.Unix(),
	}

	t.Run("create submission", func(t *testing.T) {
		require.NoError(t, td.store.CreateSubmission(&sub))

		got, err := td.store.GetSubmission("hw-7", "anna.k")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "my solution", got.Content)
		assert.Nil(t, got.Grade)
	})

	t.Run("save grade", func(t *testing.T) {
		gradedAt := td.now.Add(time.Hour).Unix()
		require.NoError(t, td.store.SaveGrade("hw-7", "anna.k", 17, "well done", gradedAt))

		got, err := td.store.GetSubmission("hw-7", "anna.k")
		require.NoError(t, err)
		require.NotNil(t, got)
		require.NotNil(t, got.Grade)
		assert.Equal(t, 17, *got.Grade)
		assert.Equal(t, "well done", got.Feedback)
		require.NotNil(t, got.GradedAt)
		assert.Equal(t, gradedAt, *got.GradedAt)
	})

	t.Run("grade of missing submission errors", func(t *testing.T) {
		err := td.store.SaveGrade("hw-404", "anna.k", 10, "", td.now.Unix())
		assert.Error(t, err)
	})
}

func TestProfileOperations(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()

	t.Run("get existing profile", func(t *testing.T) {
		p, err := td.store.GetProfile("anna.k")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, models.RoleStudent, p.Role)
	})

	t.Run("promote to organizer", func(t *testing.T) {
		require.NoError(t, td.store.PromoteToOrganizer("anna.k"))

		p, err := td.store.GetProfile("anna.k")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, models.RoleOrganizer, p.Role)
	})

	t.Run("promote is idempotent", func(t *testing.T) {
		require.NoError(t, td.store.PromoteToOrganizer("anna.k"))
	})

	t.Run("promote unknown user errors", func(t *testing.T) {
		assert.Error(t, td.store.PromoteToOrganizer("not.exists"))
	})

	t.Run("get non-existent profile", func(t *testing.T) {
		p, err := td.store.GetProfile("not.exists")
		require.NoError(t, err)
		assert.Nil(t, p)
	})
}
