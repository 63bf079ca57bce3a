package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edubridge-api/internal/models"
	"github.com/noah-isme/edubridge-api/internal/repository"
	appErrors "github.com/noah-isme/edubridge-api/pkg/errors"
)

type stubAttendanceRepo struct {
	records []models.AttendanceRecord
	failure error
}

func (s *stubAttendanceRepo) Append(_ context.Context, record *models.AttendanceRecord) error {
	if s.failure != nil {
		return s.failure
	}
	s.records = append(s.records, *record)
	return nil
}

func (s *stubAttendanceRepo) Exists(_ context.Context, studentID, code string) (bool, error) {
	if s.failure != nil {
		return false, s.failure
	}
	for _, record := range s.records {
		if record.StudentID == studentID && record.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubAttendanceRepo) List(_ context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	if s.failure != nil {
		return nil, 0, s.failure
	}
	return s.records, len(s.records), nil
}

func newAttendanceFixture(t *testing.T) (*AttendanceService, *stubAttendanceRepo, *time.Time) {
	t.Helper()
	repo := &stubAttendanceRepo{}
	svc := NewAttendanceService(repository.NewMemoryCodeStore(0), repo, nil, nil, AttendanceServiceConfig{})
	now := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	clock := &now
	svc.now = func() time.Time { return *clock }
	return svc, repo, clock
}

func teacherClaims(section string) *models.JWTClaims {
	return &models.JWTClaims{UserID: "t-1", Role: models.RoleTeacher, Section: section}
}

func studentClaims(id, section string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleStudent, Section: section}
}

func TestIssueCodeRejectsOutOfRangeDuration(t *testing.T) {
	svc, _, _ := newAttendanceFixture(t)

	for _, seconds := range []int{0, 5, 9, 601, 3600} {
		code, err := svc.IssueCode(context.Background(), teacherClaims("10A"), seconds)
		assert.Nil(t, code, "duration %d", seconds)
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestIssueCodeRejectionLeavesActiveCodeUntouched(t *testing.T) {
	svc, _, _ := newAttendanceFixture(t)
	ctx := context.Background()

	first, err := svc.IssueCode(ctx, teacherClaims("10A"), 60)
	require.NoError(t, err)

	_, err = svc.IssueCode(ctx, teacherClaims("10A"), 5)
	require.Error(t, err)

	record, err := svc.ValidateSubmission(ctx, studentClaims("s-1", "10A"), SubmitRequest{
		Code: first.Code, StudentName: "Asha", RollNumber: "12",
	})
	require.NoError(t, err)
	assert.Equal(t, first.Code, record.Code)
}

func TestIssueCodeProperties(t *testing.T) {
	svc, _, _ := newAttendanceFixture(t)

	code, err := svc.IssueCode(context.Background(), teacherClaims("10A"), 60)
	require.NoError(t, err)
	assert.Len(t, code.Code, 6)
	for _, r := range code.Code {
		assert.Contains(t, codeAlphabet, string(r))
	}
	assert.Equal(t, 60, code.DurationSeconds())
	assert.Equal(t, code.IssuedAt.Add(60*time.Second), code.ExpiresAt)
	assert.Equal(t, "10A", code.Section)
}

func TestValidateSubmissionLifecycle(t *testing.T) {
	svc, repo, clock := newAttendanceFixture(t)
	ctx := context.Background()

	// Nothing issued yet.
	_, err := svc.ValidateSubmission(ctx, studentClaims("s-1", "10A"), SubmitRequest{Code: "AAAAAA", StudentName: "Asha", RollNumber: "12"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNoActiveCode.Code, appErrors.FromError(err).Code)

	code, err := svc.IssueCode(ctx, teacherClaims("10A"), 60)
	require.NoError(t, err)

	// Wrong code fifty seconds in.
	*clock = clock.Add(50 * time.Second)
	_, err = svc.ValidateSubmission(ctx, studentClaims("s-1", "10A"), SubmitRequest{Code: "ZZZZZZ", StudentName: "Asha", RollNumber: "12"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCodeMismatch.Code, appErrors.FromError(err).Code)

	// Correct code inside the window.
	record, err := svc.ValidateSubmission(ctx, studentClaims("s-1", "10A"), SubmitRequest{Code: code.Code, StudentName: "Asha", RollNumber: "12"})
	require.NoError(t, err)
	assert.Equal(t, "s-1", record.StudentID)
	assert.Equal(t, *clock, record.SubmittedAt)
	require.Len(t, repo.records, 1)

	// Same student again against the same code.
	_, err = svc.ValidateSubmission(ctx, studentClaims("s-1", "10A"), SubmitRequest{Code: code.Code, StudentName: "Asha", RollNumber: "12"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateSubmission.Code, appErrors.FromError(err).Code)
	assert.Len(t, repo.records, 1)

	// Past the expiry instant the expiry check wins over mismatch.
	*clock = clock.Add(11 * time.Second)
	_, err = svc.ValidateSubmission(ctx, studentClaims("s-2", "10A"), SubmitRequest{Code: "ZZZZZZ", StudentName: "Bilal", RollNumber: "7"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCodeExpired.Code, appErrors.FromError(err).Code)
}

func TestValidateSubmissionNormalisesCase(t *testing.T) {
	svc, _, _ := newAttendanceFixture(t)
	ctx := context.Background()

	code, err := svc.IssueCode(ctx, teacherClaims("10A"), 60)
	require.NoError(t, err)

	lower := " " + strings.ToLower(code.Code) + " "
	record, err := svc.ValidateSubmission(ctx, studentClaims("s-1", "10A"), SubmitRequest{Code: lower, StudentName: "Asha", RollNumber: "12"})
	require.NoError(t, err)
	assert.Equal(t, code.Code, record.Code)
}

func TestReissueDisplacesPriorCode(t *testing.T) {
	svc, _, _ := newAttendanceFixture(t)
	ctx := context.Background()

	first, err := svc.IssueCode(ctx, teacherClaims("10A"), 60)
	require.NoError(t, err)
	second, err := svc.IssueCode(ctx, teacherClaims("10A"), 120)
	require.NoError(t, err)
	require.NotEqual(t, first.Code, second.Code)

	_, err = svc.ValidateSubmission(ctx, studentClaims("s-1", "10A"), SubmitRequest{Code: first.Code, StudentName: "Asha", RollNumber: "12"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCodeMismatch.Code, appErrors.FromError(err).Code)

	record, err := svc.ValidateSubmission(ctx, studentClaims("s-1", "10A"), SubmitRequest{Code: second.Code, StudentName: "Asha", RollNumber: "12"})
	require.NoError(t, err)
	assert.Equal(t, second.Code, record.Code)
}

func TestDuplicateCheckScopedToStudentAndCode(t *testing.T) {
	svc, repo, _ := newAttendanceFixture(t)
	ctx := context.Background()

	code, err := svc.IssueCode(ctx, teacherClaims("10A"), 60)
	require.NoError(t, err)

	_, err = svc.ValidateSubmission(ctx, studentClaims("s-1", "10A"), SubmitRequest{Code: code.Code, StudentName: "Asha", RollNumber: "12"})
	require.NoError(t, err)
	_, err = svc.ValidateSubmission(ctx, studentClaims("s-2", "10A"), SubmitRequest{Code: code.Code, StudentName: "Bilal", RollNumber: "7"})
	require.NoError(t, err)
	assert.Len(t, repo.records, 2)
}

func TestSectionsAreIndependent(t *testing.T) {
	svc, _, _ := newAttendanceFixture(t)
	ctx := context.Background()

	code, err := svc.IssueCode(ctx, teacherClaims("10A"), 60)
	require.NoError(t, err)

	_, err = svc.ValidateSubmission(ctx, studentClaims("s-9", "10B"), SubmitRequest{Code: code.Code, StudentName: "Chen", RollNumber: "3"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNoActiveCode.Code, appErrors.FromError(err).Code)
}

func TestValidateSubmissionSurfacesRepositoryFailure(t *testing.T) {
	svc, repo, _ := newAttendanceFixture(t)
	ctx := context.Background()

	code, err := svc.IssueCode(ctx, teacherClaims("10A"), 60)
	require.NoError(t, err)

	repo.failure = errors.New("connection reset")
	_, err = svc.ValidateSubmission(ctx, studentClaims("s-1", "10A"), SubmitRequest{Code: code.Code, StudentName: "Asha", RollNumber: "12"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPersistence.Code, appErrors.FromError(err).Code)
}

func TestExportRecordsFormats(t *testing.T) {
	svc, repo, _ := newAttendanceFixture(t)
	ctx := context.Background()
	repo.records = []models.AttendanceRecord{{
		StudentID: "s-1", StudentName: "Asha", RollNumber: "12",
		Code: "AB12CD", Section: "10A",
		SubmittedAt: time.Date(2026, 3, 9, 8, 1, 0, 0, time.UTC),
	}}

	csvOut, name, err := svc.ExportRecords(ctx, models.AttendanceFilter{}, "csv")
	require.NoError(t, err)
	assert.Contains(t, string(csvOut), "Asha")
	assert.Contains(t, name, ".csv")

	pdfOut, name, err := svc.ExportRecords(ctx, models.AttendanceFilter{}, "pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdfOut[:4]))
	assert.Contains(t, name, ".pdf")

	_, _, err = svc.ExportRecords(ctx, models.AttendanceFilter{}, "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
