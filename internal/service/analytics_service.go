package service

import (
	"time"

	"github.com/inkwell/internal/db"
	"gorm.io/gorm"
)

// AnalyticsService 负责后台仪表盘的统计聚合。
type AnalyticsService struct {
	db *gorm.DB
}

// NewAnalyticsService 创建 AnalyticsService。
func NewAnalyticsService(gdb *gorm.DB) *AnalyticsService {
	return &AnalyticsService{db: gdb}
}

// PeriodStat 描述某项指标在当前与上一周期的数值及环比变化。
type PeriodStat struct {
	Current  int64   `json:"current"`
	Previous int64   `json:"previous"`
	Total    int64   `json:"total"`
	Change   float64 `json:"change"`
}

// DailyCount 是图表用的单日计数。
type DailyCount struct {
	Day   string `json:"date"`
	Count int64  `json:"count"`
}

// CategoryStat 描述热门分类。
type CategoryStat struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
	Views    int64  `json:"views"`
}

// PeriodInfo 记录统计周期的边界。
type PeriodInfo struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DashboardData 汇总仪表盘需要的全部数据。
type DashboardData struct {
	Articles         PeriodStat     `json:"posts"`
	Subscribers      PeriodStat     `json:"subscribers"`
	Views            PeriodStat     `json:"views"`
	CurrentPeriod    PeriodInfo     `json:"currentPeriod"`
	PreviousPeriod   PeriodInfo     `json:"previousPeriod"`
	DailyViews       []DailyCount   `json:"dailyViews"`
	DailySubscribers []DailyCount   `json:"dailySubscribers"`
	RecentArticles   []db.Article   `json:"recentPosts"`
	TopCategories    []CategoryStat `json:"categories"`
}

// Dashboard 按时间范围（7d/30d/90d/180d/365d，默认 7d）计算当前周期、
// 等长的上一周期的文章数、活跃订阅数与浏览量，并给出环比变化、
// 按天的图表序列、最近文章和热门分类。
func (s *AnalyticsService) Dashboard(rangeKey string, now time.Time) (*DashboardData, error) {
	days := rangeDays(rangeKey)
	start := now.AddDate(0, 0, -days)
	prevStart := now.AddDate(0, 0, -2*days)
	prevEnd := start

	data := &DashboardData{
		CurrentPeriod:  PeriodInfo{Start: start, End: now},
		PreviousPeriod: PeriodInfo{Start: prevStart, End: prevEnd},
	}

	// 文章
	if err := s.db.Model(&db.Article{}).
		Where("created_at >= ? AND created_at <= ?", start, now).
		Count(&data.Articles.Current).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&db.Article{}).
		Where("created_at >= ? AND created_at <= ?", prevStart, prevEnd).
		Count(&data.Articles.Previous).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&db.Article{}).Count(&data.Articles.Total).Error; err != nil {
		return nil, err
	}
	data.Articles.Change = calculatePoP(data.Articles.Current, data.Articles.Previous)

	// 订阅者（只统计活跃）
	if err := s.db.Model(&db.Subscriber{}).
		Where("status = ? AND subscribed_at >= ? AND subscribed_at <= ?", db.SubscriberActive, start, now).
		Count(&data.Subscribers.Current).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&db.Subscriber{}).
		Where("status = ? AND subscribed_at >= ? AND subscribed_at <= ?", db.SubscriberActive, prevStart, prevEnd).
		Count(&data.Subscribers.Previous).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&db.Subscriber{}).
		Where("status = ?", db.SubscriberActive).
		Count(&data.Subscribers.Total).Error; err != nil {
		return nil, err
	}
	data.Subscribers.Change = calculatePoP(data.Subscribers.Current, data.Subscribers.Previous)

	// 浏览量：按天流水求和，天粒度的原始存储形态由消费方聚合
	var err error
	if data.Views.Current, err = s.viewsBetween(start, now); err != nil {
		return nil, err
	}
	if data.Views.Previous, err = s.viewsBetween(prevStart, prevEnd); err != nil {
		return nil, err
	}
	var totalViews struct{ Total int64 }
	if err := s.db.Model(&db.Article{}).
		Select("COALESCE(SUM(view_count), 0) AS total").
		Scan(&totalViews).Error; err != nil {
		return nil, err
	}
	data.Views.Total = totalViews.Total
	data.Views.Change = calculatePoP(data.Views.Current, data.Views.Previous)

	// 图表序列
	if err := s.db.Model(&db.ArticleViewEntry{}).
		Select("strftime('%Y-%m-%d', date) AS day, SUM(count) AS count").
		Where("date >= ? AND date <= ?", start, now).
		Group("day").
		Order("day").
		Scan(&data.DailyViews).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&db.Subscriber{}).
		Select("strftime('%Y-%m-%d', subscribed_at) AS day, COUNT(*) AS count").
		Where("status = ? AND subscribed_at >= ? AND subscribed_at <= ?", db.SubscriberActive, start, now).
		Group("day").
		Order("day").
		Scan(&data.DailySubscribers).Error; err != nil {
		return nil, err
	}

	// 最近文章
	if err := s.db.Order("created_at desc").Limit(5).Find(&data.RecentArticles).Error; err != nil {
		return nil, err
	}

	// 热门分类
	if err := s.db.Model(&db.Article{}).
		Select("category, COUNT(*) AS count, COALESCE(SUM(view_count), 0) AS views").
		Group("category").
		Order("count DESC").
		Limit(4).
		Scan(&data.TopCategories).Error; err != nil {
		return nil, err
	}

	return data, nil
}

func (s *AnalyticsService) viewsBetween(start, end time.Time) (int64, error) {
	var row struct{ Total int64 }
	err := s.db.Model(&db.ArticleViewEntry{}).
		Select("COALESCE(SUM(count), 0) AS total").
		Where("date >= ? AND date <= ?", start, end).
		Scan(&row).Error
	return row.Total, err
}

func rangeDays(rangeKey string) int {
	switch rangeKey {
	case "365d":
		return 365
	case "180d":
		return 180
	case "90d":
		return 90
	case "30d":
		return 30
	default:
		return 7
	}
}

func calculatePoP(current, previous int64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return float64(current-previous) / float64(previous) * 100
}
