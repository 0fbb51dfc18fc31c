package models

// ReportFormat is the rendered file format of an export.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// ReportType selects the dataset an export renders.
type ReportType string

const (
	ReportTypeOverview    ReportType = "overview"
	ReportTypeEngagement  ReportType = "engagement"
	ReportTypeEnrollments ReportType = "enrollments"
)
