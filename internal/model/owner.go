package model

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
	RoleSupport  Role = "support"
)

// Owner is the holder of accounts. Registration and credentials live in
// another service; this table only backs the foreign key and notifications.
type Owner struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Email       string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	DisplayName string `gorm:"type:varchar(100);not null" json:"display_name"`
	Active      bool   `gorm:"not null;default:true" json:"active"`
	Role        Role   `gorm:"type:varchar(20);not null;default:customer" json:"role"`
}

func (Owner) TableName() string {
	return "owners"
}

// OwnerActivity is one row of the top-owners report.
type OwnerActivity struct {
	OwnerID          int64  `json:"owner_id"`
	DisplayName      string `json:"display_name"`
	TransactionCount int64  `json:"transaction_count"`
}

// OwnerCounts is the active-owners report.
type OwnerCounts struct {
	Active   int64 `json:"active"`
	Inactive int64 `json:"inactive"`
}
