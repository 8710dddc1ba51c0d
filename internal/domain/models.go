// Package domain defines the types shared by the persistence, service and
// transport layers: the GORM-mapped audit and idempotency rows, and the
// dynamically typed warehouse records that flow through the query pipeline.
package domain

import "time"

// Route values recorded on audit rows.
const (
	RouteSQL  = "sql"
	RouteChat = "chat"
)

// QueryAudit is the append-only trail of processed questions.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserID: requester identity; indexed together with CreatedAt for per-user listing.
//   - Question: the question as received (after prefix stripping).
//   - GeneratedSQL: validated SQL that was executed, empty on the chat path.
//   - Route: "sql" or "chat" (enforced by DB constraint).
//   - Success: whether the request produced a response without a fatal error.
//   - Cached: whether the result came from the result cache.
//   - RowCount / ExecutionTimeMs: result metadata.
//   - CreatedAt: insertion time managed by GORM.
type QueryAudit struct {
	ID              string    `json:"id"                gorm:"type:char(36);primaryKey"`
	UserID          string    `json:"user_id"           gorm:"type:varchar(128);not null;index:idx_audit_user,priority:1"`
	Question        string    `json:"question"          gorm:"type:text;not null"`
	GeneratedSQL    string    `json:"generated_sql"     gorm:"type:text"`
	Route           string    `json:"route"             gorm:"type:varchar(8);not null;check:route IN ('sql','chat')"`
	Success         bool      `json:"success"           gorm:"not null"`
	Cached          bool      `json:"cached"            gorm:"not null;default:false"`
	RowCount        int       `json:"row_count"`
	ExecutionTimeMs int64     `json:"execution_time_ms"`
	CreatedAt       time.Time `json:"created_at"        gorm:"index:idx_audit_user,priority:2"`
}

// TableName returns the database table name for QueryAudit.
func (QueryAudit) TableName() string { return "query_audit" }
