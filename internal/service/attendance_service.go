package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edubridge-api/internal/models"
	appErrors "github.com/noah-isme/edubridge-api/pkg/errors"
	"github.com/noah-isme/edubridge-api/pkg/export"
)

// codeAlphabet matches the upper base-36 tokens teachers read out in class.
// Six characters give a little over 31 bits of entropy.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// AttendanceCodeStore holds the single active code per section. Implemented
// by the Redis store in production and an in-memory map when Redis is not
// configured.
type AttendanceCodeStore interface {
	Put(ctx context.Context, code *models.AttendanceCode) error
	Get(ctx context.Context, section string) (*models.AttendanceCode, error)
}

type attendanceRepository interface {
	Append(ctx context.Context, record *models.AttendanceRecord) error
	Exists(ctx context.Context, studentID, code string) (bool, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error)
}

// AttendanceServiceConfig bounds code issuance.
type AttendanceServiceConfig struct {
	MinCodeDuration time.Duration
	MaxCodeDuration time.Duration
	CodeLength      int
}

// AttendanceService manages the per-section attendance code lifecycle:
// NoCode -> Active on issue, Active -> Active on re-issue (old code
// discarded), Active -> Expired by wall-clock comparison at submission time.
// There is no revoke; a new issuance is the only way to displace a live code.
type AttendanceService struct {
	codes   AttendanceCodeStore
	repo    attendanceRepository
	logger  *zap.Logger
	metrics *MetricsService
	config  AttendanceServiceConfig

	now func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewAttendanceService constructs the service.
func NewAttendanceService(codes AttendanceCodeStore, repo attendanceRepository, logger *zap.Logger, metrics *MetricsService, config AttendanceServiceConfig) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MinCodeDuration <= 0 {
		config.MinCodeDuration = 10 * time.Second
	}
	if config.MaxCodeDuration <= 0 {
		config.MaxCodeDuration = 10 * time.Minute
	}
	if config.CodeLength <= 0 {
		config.CodeLength = 6
	}
	return &AttendanceService{
		codes:   codes,
		repo:    repo,
		logger:  logger,
		metrics: metrics,
		config:  config,
		now:     time.Now,
		locks:   make(map[string]*sync.Mutex),
	}
}

// sectionLock returns the mutex guarding one section's issue/validate pair.
// Issue-then-read-then-append has to be atomic per section to keep the
// single-active-code and no-duplicate-record invariants under concurrency.
func (s *AttendanceService) sectionLock(section string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[section]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[section] = lock
	}
	return lock
}

// IssueCode generates a fresh code for the teacher's section, replacing any
// previously active one. Durations outside the configured bounds are
// rejected and leave the active code untouched.
func (s *AttendanceService) IssueCode(ctx context.Context, issuer *models.JWTClaims, durationSeconds int) (*models.AttendanceCode, error) {
	duration := time.Duration(durationSeconds) * time.Second
	if duration < s.config.MinCodeDuration || duration > s.config.MaxCodeDuration {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf(
			"code duration must be between %d and %d seconds",
			int(s.config.MinCodeDuration/time.Second), int(s.config.MaxCodeDuration/time.Second)))
	}

	value, err := s.generateCode()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate attendance code")
	}

	lock := s.sectionLock(issuer.Section)
	lock.Lock()
	defer lock.Unlock()

	issuedAt := s.now().UTC()
	code := &models.AttendanceCode{
		Code:      value,
		IssuerID:  issuer.UserID,
		Section:   issuer.Section,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(duration),
		Duration:  duration,
	}
	if err := s.codes.Put(ctx, code); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to store attendance code")
	}

	s.metrics.RecordCodeIssued()
	s.logger.Info("attendance code issued",
		zap.String("section", code.Section),
		zap.String("issuer_id", code.IssuerID),
		zap.Time("expires_at", code.ExpiresAt),
	)
	return code, nil
}

// SubmitRequest is a student's attempt against the active code.
type SubmitRequest struct {
	Code        string `json:"code" binding:"required"`
	StudentName string `json:"name" binding:"required"`
	RollNumber  string `json:"roll" binding:"required"`
}

// ValidateSubmission checks a submission in fixed order: no active code,
// expired, mismatch, duplicate. Accepted submissions are appended to the
// record log and returned.
func (s *AttendanceService) ValidateSubmission(ctx context.Context, submitter *models.JWTClaims, req SubmitRequest) (*models.AttendanceRecord, error) {
	record, err := s.validateSubmission(ctx, submitter, req)
	if err != nil {
		s.metrics.RecordSubmission(appErrors.FromError(err).Code)
		return nil, err
	}
	s.metrics.RecordSubmission("ACCEPTED")
	return record, nil
}

func (s *AttendanceService) validateSubmission(ctx context.Context, submitter *models.JWTClaims, req SubmitRequest) (*models.AttendanceRecord, error) {
	lock := s.sectionLock(submitter.Section)
	lock.Lock()
	defer lock.Unlock()

	active, err := s.codes.Get(ctx, submitter.Section)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load attendance code")
	}
	if active == nil {
		return nil, appErrors.ErrNoActiveCode
	}

	now := s.now().UTC()
	if !active.Active(now) {
		return nil, appErrors.ErrCodeExpired
	}

	submitted := strings.ToUpper(strings.TrimSpace(req.Code))
	if submitted != active.Code {
		return nil, appErrors.ErrCodeMismatch
	}

	exists, err := s.repo.Exists(ctx, submitter.UserID, submitted)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to check prior submissions")
	}
	if exists {
		return nil, appErrors.ErrDuplicateSubmission
	}

	record := &models.AttendanceRecord{
		StudentID:   submitter.UserID,
		StudentName: req.StudentName,
		RollNumber:  req.RollNumber,
		Code:        submitted,
		Section:     submitter.Section,
		SubmittedAt: now,
	}
	if err := s.repo.Append(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to store attendance record")
	}
	return record, nil
}

// ListRecords returns attendance records with pagination.
func (s *AttendanceService) ListRecords(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 100
	}
	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list attendance records")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return records, pagination, nil
}

// ExportRecords renders the attendance register as CSV or PDF bytes.
func (s *AttendanceService) ExportRecords(ctx context.Context, filter models.AttendanceFilter, format string) ([]byte, string, error) {
	filter.Page = 1
	filter.PageSize = 500
	records, _, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load attendance records")
	}

	data := export.Dataset{Headers: []string{"Name", "Roll Number", "Code", "Section", "Submitted At"}}
	for _, record := range records {
		data.Rows = append(data.Rows, []string{
			record.StudentName,
			record.RollNumber,
			record.Code,
			record.Section,
			record.SubmittedAt.Format("2006-01-02 15:04:05"),
		})
	}

	stamp := s.now().UTC().Format("2006-01-02")
	switch strings.ToLower(format) {
	case "pdf":
		out, err := export.RenderPDF(data, "Attendance Register")
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return out, fmt.Sprintf("attendance_%s.pdf", stamp), nil
	case "", "csv":
		out, err := export.RenderCSV(data)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return out, fmt.Sprintf("attendance_%s.csv", stamp), nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}

func (s *AttendanceService) generateCode() (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	buf := make([]byte, s.config.CodeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
