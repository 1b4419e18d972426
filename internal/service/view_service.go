package service

import (
	"context"
	"errors"
	"time"

	"github.com/inkwell/internal/db"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultViewRetention = 3 * time.Hour

// fallbackViewerAddress 是解析不到任何访客地址时的固定占位符。
// 被剥掉转发头的访客会坍缩到同一个去重键上，造成匿名访客被少算，
// 这里沿用该行为并显式记下。
const fallbackViewerAddress = "127.0.0.1"

// ViewOutcome 表示一次浏览登记的结果。
type ViewOutcome int

const (
	// ViewCounted 该访客在窗口内首次浏览，计数已累加。
	ViewCounted ViewOutcome = iota
	// ViewDeduplicated 窗口内的重复浏览，计数不变。这不是错误。
	ViewDeduplicated
)

// ViewerKey 标识一次浏览的访客：网络地址加可选的登录用户。
// UserID 为 0 表示匿名；同一地址上匿名与登录访问是两个独立的键。
type ViewerKey struct {
	IPAddress string
	UserID    uint
}

// ViewService 负责浏览去重台账与文章浏览计数。
type ViewService struct {
	db        *gorm.DB
	retention time.Duration
}

// NewViewService 创建 ViewService，默认保留窗口为 3 小时。
func NewViewService(gdb *gorm.DB) *ViewService {
	return &ViewService{db: gdb, retention: defaultViewRetention}
}

// WithRetention 允许在测试或特定场景下调整保留窗口。
func (s *ViewService) WithRetention(d time.Duration) *ViewService {
	if d <= 0 {
		return s
	}
	s.retention = d
	return s
}

// RegisterView 登记一次浏览。台账插入的唯一约束是判定重复的唯一依据：
// 插入成功才累加文章计数并追加当日流水；并发登记同一键时恰好一方胜出，
// 另一方得到 ViewDeduplicated。
func (s *ViewService) RegisterView(articleID uint, viewer ViewerKey, now time.Time) (ViewOutcome, error) {
	if articleID == 0 {
		return ViewDeduplicated, errors.New("invalid article id")
	}

	if viewer.IPAddress == "" {
		viewer.IPAddress = fallbackViewerAddress
	}

	record := db.ViewRecord{
		ArticleID: articleID,
		IPAddress: viewer.IPAddress,
		UserID:    viewer.UserID,
		CreatedAt: now,
	}

	insert := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "article_id"},
			{Name: "ip_address"},
			{Name: "user_id"},
		},
		DoNothing: true,
	}).Create(&record)
	if insert.Error != nil {
		// 并发插入竞争同一键时可能绕过 DoNothing 直接报唯一冲突，
		// 一律视为窗口内的重复浏览。
		if errors.Is(insert.Error, gorm.ErrDuplicatedKey) {
			return ViewDeduplicated, nil
		}
		return ViewDeduplicated, insert.Error
	}

	if insert.RowsAffected == 0 {
		return ViewDeduplicated, nil
	}

	// 台账插入成功之后才允许累加计数；浏览计数不推进文章的编辑版本号。
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&db.Article{}).
			Where("id = ?", articleID).
			UpdateColumn("view_count", gorm.Expr("view_count + 1"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrArticleNotFound
		}

		return tx.Create(&db.ArticleViewEntry{
			ArticleID: articleID,
			Date:      now,
			Count:     1,
		}).Error
	}); err != nil {
		return ViewDeduplicated, err
	}

	return ViewCounted, nil
}

// ExpireStale 删除早于保留窗口的台账记录，返回删除数量。
// 过期是最终一致的：刚过窗口、尚未被清理的记录仍会使登记判定为重复。
func (s *ViewService) ExpireStale(now time.Time) (int64, error) {
	cutoff := now.Add(-s.retention)
	result := s.db.Where("created_at < ?", cutoff).Delete(&db.ViewRecord{})
	return result.RowsAffected, result.Error
}

// StartSweeper 启动后台清理循环，直到 ctx 结束。
// 数据库没有原生 TTL，窗口过期靠这里的周期扫描兑现。
func (s *ViewService) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case tick := <-ticker.C:
				if removed, err := s.ExpireStale(tick.UTC()); err != nil {
					log.Error().Err(err).Msg("failed to expire stale view records")
				} else if removed > 0 {
					log.Debug().Int64("removed", removed).Msg("expired stale view records")
				}
			}
		}
	}()
}
