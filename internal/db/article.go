package db

import "time"

// Article 定义了文章模型。Version 用于乐观并发控制：
// 每次成功的编辑恰好加一，浏览计数的累加不会推进它。
type Article struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"not null" json:"title"`
	Content     string    `gorm:"not null" json:"content"`
	Category    string    `gorm:"not null" json:"category"`
	Author      string    `gorm:"not null" json:"author"`
	AuthorImage string    `gorm:"not null" json:"authorImg"`
	CoverImage  string    `gorm:"not null" json:"image"`
	ViewCount   uint64    `gorm:"default:0" json:"views"`
	Version     uint64    `gorm:"default:1" json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ArticleViewEntry 是按次追加的浏览流水，一条记录代表某天的一次计数。
// 同一天可能存在多条记录，消费方按日期字符串求和。
type ArticleViewEntry struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	ArticleID uint      `gorm:"index" json:"-"`
	Date      time.Time `gorm:"index" json:"date"`
	Count     uint      `gorm:"default:1" json:"count"`
}

// TableName 指定自定义表名。
func (ArticleViewEntry) TableName() string {
	return "article_view_history"
}
