package db

import "time"

// ViewRecord 是浏览去重台账：每个 (文章, 访客地址, 用户) 组合在保留窗口内
// 至多存在一条记录，联合唯一索引是判定重复的唯一依据。
// UserID 为 0 表示匿名访客；同一地址上匿名与登录访问各自独立计数。
// 记录从不原地更新，过期后由后台清理任务删除。
type ViewRecord struct {
	ID        uint      `gorm:"primaryKey"`
	ArticleID uint      `gorm:"uniqueIndex:idx_view_records_viewer"`
	IPAddress string    `gorm:"size:64;uniqueIndex:idx_view_records_viewer"`
	UserID    uint      `gorm:"uniqueIndex:idx_view_records_viewer"`
	CreatedAt time.Time `gorm:"index"`
}

// TableName 指定自定义表名。
func (ViewRecord) TableName() string {
	return "view_records"
}
