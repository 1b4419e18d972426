package db

import "time"

// 订阅状态取值
const (
	SubscriberActive       = "active"
	SubscriberUnsubscribed = "unsubscribed"
)

// Subscriber 邮件订阅者，邮箱统一小写后全局唯一。
type Subscriber struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Email         string     `gorm:"size:254;uniqueIndex;not null" json:"email"`
	Status        string     `gorm:"size:16;default:active" json:"status"`
	SubscribedAt  time.Time  `json:"subscribedAt"`
	LastEmailSent *time.Time `json:"lastEmailSent,omitempty"`
}
