package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/tenancy"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/export"
	"github.com/noah-isme/lms-api/pkg/storage"
)

type exportEnrollmentLister interface {
	QueryConfig() tenancy.Config
	List(ctx context.Context, clause tenancy.Clause) ([]models.EnrollmentDetail, int, error)
}

type exportAuditor interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportRequest selects the dataset and format of an export.
type ExportRequest struct {
	Type     models.ReportType   `json:"type" validate:"required,oneof=overview engagement enrollments"`
	Format   models.ReportFormat `json:"format" validate:"required,oneof=csv pdf"`
	TenantID *int64              `json:"tenant_id"`
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string              `json:"-"`
	Token        string              `json:"token"`
	URL          string              `json:"url"`
	Format       models.ReportFormat `json:"format"`
	ExpiresAt    time.Time           `json:"expires_at"`
}

// ExportService builds tenant report datasets and persists rendered files.
// Downloads go through signed tokens so the storage layout never leaks.
type ExportService struct {
	analytics   AnalyticsRepository
	enrollments exportEnrollmentLister
	auditor     exportAuditor
	storage     fileStorage
	csv         csvRenderer
	pdf         pdfRenderer
	signer      *storage.SignedURLSigner
	logger      *zap.Logger
	cfg         ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(analytics AnalyticsRepository, enrollments exportEnrollmentLister, auditor exportAuditor, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		analytics:   analytics,
		enrollments: enrollments,
		auditor:     auditor,
		storage:     files,
		csv:         csv,
		pdf:         pdf,
		signer:      signer,
		logger:      logger,
		cfg:         cfg,
	}
}

// Generate builds the requested dataset within the principal's scope, renders
// it, stores the file, and returns a signed download grant.
func (s *ExportService) Generate(ctx context.Context, p tenancy.Principal, req ExportRequest) (*ExportResult, error) {
	tenantID, filter, err := resolveTenant(p, req.TenantID)
	if err != nil {
		return nil, err
	}

	dataset, title, err := s.buildDataset(ctx, filter, tenantID, req.Type)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build export dataset")
	}

	var payload []byte
	switch req.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %s", req.Format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	exportID := uuid.NewString()
	filename := fmt.Sprintf("%s_t%d_%s.%s", req.Type, tenantID, time.Now().UTC().Format("20060102_150405"), req.Format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(exportID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	if s.auditor != nil {
		if err := s.auditor.CreateAuditLog(ctx, &models.AuditLog{
			TenantID:   &tenantID,
			UserID:     &p.UserID,
			Action:     models.AuditActionExport,
			Resource:   "export",
			ResourceID: &exportID,
			NewValues:  []byte(fmt.Sprintf(`{"type":%q,"format":%q}`, req.Type, req.Format)),
		}); err != nil {
			s.logger.Warn("failed to record export audit log", zap.Error(err))
		}
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/%s", prefix, token),
		Format:       req.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (exportID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL
// when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildDataset(ctx context.Context, filter tenancy.AccessFilter, tenantID int64, reportType models.ReportType) (export.Dataset, string, error) {
	switch reportType {
	case models.ReportTypeOverview:
		return s.buildOverviewDataset(ctx, filter, tenantID)
	case models.ReportTypeEngagement:
		return s.buildEngagementDataset(ctx, filter, tenantID)
	case models.ReportTypeEnrollments:
		return s.buildEnrollmentDataset(ctx, filter, tenantID)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", reportType)
	}
}

func (s *ExportService) buildOverviewDataset(ctx context.Context, filter tenancy.AccessFilter, tenantID int64) (export.Dataset, string, error) {
	overview, err := s.analytics.TenantOverview(ctx, filter, tenantID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	rows := []map[string]string{
		{"Metric": "Students", "Value": fmt.Sprintf("%d", overview.StudentCount)},
		{"Metric": "Teachers", "Value": fmt.Sprintf("%d", overview.TeacherCount)},
		{"Metric": "Courses", "Value": fmt.Sprintf("%d", overview.CourseCount)},
		{"Metric": "Active Enrollments", "Value": fmt.Sprintf("%d", overview.ActiveEnrollments)},
		{"Metric": "Completed Enrollments", "Value": fmt.Sprintf("%d", overview.CompletedEnrollments)},
		{"Metric": "Completion Rate (%)", "Value": fmt.Sprintf("%.2f", overview.CompletionRate)},
	}
	dataset := export.Dataset{
		Headers: []string{"Metric", "Value"},
		Rows:    rows,
	}
	return dataset, fmt.Sprintf("Tenant Overview %d", tenantID), nil
}

func (s *ExportService) buildEngagementDataset(ctx context.Context, filter tenancy.AccessFilter, tenantID int64) (export.Dataset, string, error) {
	engagement, err := s.analytics.CourseEngagement(ctx, filter, tenancy.MaxLimit)
	if err != nil {
		return export.Dataset{}, "", err
	}
	rows := make([]map[string]string, 0, len(engagement))
	for _, row := range engagement {
		rows = append(rows, map[string]string{
			"Course":           row.CourseTitle,
			"Enrolled":         fmt.Sprintf("%d", row.Enrolled),
			"Completed":        fmt.Sprintf("%d", row.Completed),
			"Avg Progress (%)": fmt.Sprintf("%.2f", row.AvgProgress),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Course", "Enrolled", "Completed", "Avg Progress (%)"},
		Rows:    rows,
	}
	return dataset, fmt.Sprintf("Course Engagement %d", tenantID), nil
}

func (s *ExportService) buildEnrollmentDataset(ctx context.Context, filter tenancy.AccessFilter, tenantID int64) (export.Dataset, string, error) {
	q := tenancy.NewListQuery()
	q.Limit = tenancy.MaxLimit
	rows := make([]map[string]string, 0, tenancy.MaxLimit)
	for {
		clause, err := tenancy.Build(filter, q, s.enrollments.QueryConfig(), tenancy.Filters{})
		if err != nil {
			return export.Dataset{}, "", err
		}
		enrollments, total, err := s.enrollments.List(ctx, clause)
		if err != nil {
			return export.Dataset{}, "", err
		}
		for _, enrollment := range enrollments {
			rows = append(rows, map[string]string{
				"Student":      enrollment.StudentName,
				"Student Code": enrollment.StudentCode,
				"Course":       enrollment.CourseTitle,
				"Course Code":  enrollment.CourseCode,
				"Status":       string(enrollment.Status),
				"Progress":     fmt.Sprintf("%d", enrollment.Progress),
				"Enrolled At":  enrollment.EnrolledAt.UTC().Format(time.RFC3339),
			})
		}
		if q.Page*q.Limit >= total || len(enrollments) == 0 {
			break
		}
		q.Page++
	}
	dataset := export.Dataset{
		Headers: []string{"Student", "Student Code", "Course", "Course Code", "Status", "Progress", "Enrolled At"},
		Rows:    rows,
	}
	return dataset, fmt.Sprintf("Enrollments %d", tenantID), nil
}
