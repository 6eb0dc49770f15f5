package db

// ProjectHistory records which planning projects this machine has opened.
// Pure client-side convenience data; the server never sees it.
type ProjectHistory struct {
	ProjectID     string `gorm:"column:project_id;primaryKey"`
	Name          string `gorm:"column:name"`
	FirstOpenedAt int64  `gorm:"column:first_opened_at"`
	LastOpenedAt  int64  `gorm:"column:last_opened_at;index"`
	OpenCount     int    `gorm:"column:open_count"`
}

func (ProjectHistory) TableName() string { return "project_history" }
