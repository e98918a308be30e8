package models

import "time"

// ArticleStatus defines the lifecycle states of a program report.
type ArticleStatus string

const (
	ArticleStatusDraft           ArticleStatus = "DRAFT"
	ArticleStatusPendingApproval ArticleStatus = "PENDING_APPROVAL"
	ArticleStatusPublished       ArticleStatus = "PUBLISHED"
	ArticleStatusRejected        ArticleStatus = "REJECTED"
)

// Article is a report written by a content author, optionally about a program.
type Article struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	Title     string        `gorm:"size:200;not null" json:"title"`
	Body      string        `gorm:"type:text;not null" json:"body"`
	Status    ArticleStatus `gorm:"type:varchar(20);not null;default:'DRAFT';index" json:"status"`
	AuthorID  uint          `gorm:"not null;index" json:"author_id"`
	Author    *User         `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	ProgramID *uint         `gorm:"index" json:"program_id"`
	Program   *Program      `gorm:"foreignKey:ProgramID" json:"program,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Editable reports whether the author may still change the article.
func (a *Article) Editable() bool {
	return a.Status == ArticleStatusDraft || a.Status == ArticleStatusRejected
}
