package service

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/inkwell/internal/db"
	"gorm.io/gorm"
)

var (
	ErrSubscriberNotFound = errors.New("subscriber not found")
	ErrAlreadySubscribed  = errors.New("email already subscribed")
)

var emailPattern = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,})+$`)

// SubscriberService wraps mailing list database operations.
type SubscriberService struct {
	db *gorm.DB
}

// NewSubscriberService creates a SubscriberService instance.
func NewSubscriberService(gdb *gorm.DB) *SubscriberService {
	return &SubscriberService{db: gdb}
}

// Subscribe 执行幂等订阅：已退订的邮箱会被重新激活，已激活的邮箱
// 返回 ErrAlreadySubscribed，其余创建新记录。返回值第二项表示是否
// 为重新激活。
func (s *SubscriberService) Subscribe(email string, now time.Time) (*db.Subscriber, bool, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, false, err
	}

	var existing db.Subscriber
	err = s.db.Where("email = ?", normalized).First(&existing).Error
	switch {
	case err == nil:
		if existing.Status == db.SubscriberUnsubscribed {
			existing.Status = db.SubscriberActive
			if err := s.db.Save(&existing).Error; err != nil {
				return nil, false, err
			}
			return &existing, true, nil
		}
		return nil, false, ErrAlreadySubscribed
	case errors.Is(err, gorm.ErrRecordNotFound):
		// fallthrough to create
	default:
		return nil, false, err
	}

	subscriber := db.Subscriber{
		Email:        normalized,
		Status:       db.SubscriberActive,
		SubscribedAt: now,
	}
	if err := s.db.Create(&subscriber).Error; err != nil {
		// 唯一索引兜底：并发订阅同一邮箱时视为已订阅
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, false, ErrAlreadySubscribed
		}
		return nil, false, err
	}
	return &subscriber, false, nil
}

// ListAll returns all subscribers ordered by subscription time descending.
func (s *SubscriberService) ListAll() ([]db.Subscriber, error) {
	var subscribers []db.Subscriber
	if err := s.db.Order("subscribed_at desc").Find(&subscribers).Error; err != nil {
		return nil, err
	}
	return subscribers, nil
}

// Delete removes a subscriber by id.
func (s *SubscriberService) Delete(id uint) error {
	result := s.db.Delete(&db.Subscriber{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSubscriberNotFound
	}
	return nil
}

// UpdateStatus 修改订阅状态，仅接受 active 与 unsubscribed。
func (s *SubscriberService) UpdateStatus(id uint, status string) (*db.Subscriber, error) {
	if status != db.SubscriberActive && status != db.SubscriberUnsubscribed {
		return nil, newValidationError("invalid subscriber status %q", status)
	}

	var subscriber db.Subscriber
	if err := s.db.First(&subscriber, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriberNotFound
		}
		return nil, err
	}

	subscriber.Status = status
	if err := s.db.Save(&subscriber).Error; err != nil {
		return nil, err
	}
	return &subscriber, nil
}

func normalizeEmail(email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return "", newValidationError("email is required")
	}
	if !emailPattern.MatchString(normalized) {
		return "", newValidationError("invalid email format")
	}
	return normalized, nil
}
