package database

import "donasi/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Program{},
		&models.Article{},
		&models.RoleUpgradeRequest{},
		&models.Approval{},
		&models.ApprovalAction{},
		&models.Donation{},
	}
}
