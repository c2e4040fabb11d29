package models

import "time"

// Report statuses. A report stays "pending" until a debate was generated
// for it to completion; only then it becomes "approved".
const (
	ReportStatusPending  = "pending"
	ReportStatusApproved = "approved"
)

// Report represents a submitted or machine-discovered topic stored in the
// 'reports' table.
type Report struct {
	ID        string    `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Content   string    `db:"content" json:"content"`
	Location  *string   `db:"location" json:"location,omitempty"`
	SourceURL *string   `db:"source_url" json:"source_url,omitempty"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
