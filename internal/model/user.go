package model

type UserRole string

const (
	Student UserRole = "student"
	Company UserRole = "company"
	Admin   UserRole = "admin"
)

// swagger:model User
type User struct {
	BaseModel
	Name     string   `gorm:"size:100;not null" json:"name"`
	Email    string   `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Password string   `gorm:"size:100;not null" json:"-"`
	Role     UserRole `gorm:"size:20;not null;default:'student';index" json:"role"`
	Avatar   string   `gorm:"size:255" json:"avatar"`
	Disabled bool     `gorm:"default:false" json:"disabled"`
}

func (User) TableName() string {
	return "users"
}
