package store

import (
	"context"
	"time"

	"storefront/internal/model"

	"gorm.io/gorm"
)

// Admins 管理员账号、会话与操作审计。
type Admins struct {
	db *gorm.DB
}

func NewAdmins(db *gorm.DB) *Admins {
	return &Admins{db: db}
}

func (s *Admins) FindByEmail(ctx context.Context, email string) (*model.AdminUser, error) {
	var u model.AdminUser
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *Admins) Create(ctx context.Context, u *model.AdminUser) error {
	return s.db.WithContext(ctx).Create(u).Error
}

func (s *Admins) CreateSession(ctx context.Context, sess *model.AdminSession) error {
	return s.db.WithContext(ctx).Create(sess).Error
}

// Authenticate 通过会话 token 查找未过期会话对应的管理员。
func (s *Admins) Authenticate(ctx context.Context, token string, now time.Time) (*model.AdminUser, error) {
	var sess model.AdminSession
	err := s.db.WithContext(ctx).Where("token = ? AND expires_at > ?", token, now).First(&sess).Error
	if err != nil {
		return nil, notFound(err)
	}
	var u model.AdminUser
	if err := s.db.WithContext(ctx).First(&u, sess.AdminID).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *Admins) DeleteSession(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).Where("token = ?", token).Delete(&model.AdminSession{}).Error
}

func (s *Admins) RecordActivity(ctx context.Context, a *model.Activity) error {
	return s.db.WithContext(ctx).Create(a).Error
}

func (s *Admins) ListActivity(ctx context.Context, skip, limit int) ([]model.Activity, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var list []model.Activity
	err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Offset(skip).Limit(limit).Find(&list).Error
	return list, err
}
