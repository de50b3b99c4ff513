package model

import "time"

type AdminUser struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Email        string    `gorm:"size:128;uniqueIndex;not null" json:"email"`
	Name         string    `gorm:"size:128" json:"name"`
	PasswordHash string    `gorm:"size:128;not null" json:"-"`
}

func (AdminUser) TableName() string { return "admin_users" }

type AdminSession struct {
	ID        uint      `gorm:"primarykey" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	Token     string    `gorm:"size:64;uniqueIndex;not null" json:"-"`
	AdminID   uint      `gorm:"not null;index" json:"admin_id"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
}

func (AdminSession) TableName() string { return "admin_sessions" }

// Activity 审计记录：谁（admin 邮箱或 system）对哪个订单做了什么。
type Activity struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	Actor     string    `gorm:"size:128;not null" json:"actor"`
	Action    string    `gorm:"size:64;not null;index" json:"action"`
	OrderNo   string    `gorm:"size:32;index" json:"order_no,omitempty"`
	Detail    string    `gorm:"size:255" json:"detail,omitempty"`
}

func (Activity) TableName() string { return "activities" }

// ActorSystem attributes background actions.
const ActorSystem = "system"

// All lists every model for AutoMigrate.
func All() []any {
	return []any{&Category{}, &Product{}, &Order{}, &Coupon{}, &Cart{}, &AdminUser{}, &AdminSession{}, &Activity{}}
}
