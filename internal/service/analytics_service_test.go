package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/inkwell/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupAnalyticsTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:analytics-service-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := gdb.AutoMigrate(&db.Article{}, &db.ArticleViewEntry{}, &db.Subscriber{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return gdb
}

func createArticleAt(t *testing.T, gdb *gorm.DB, title, category string, views uint64, createdAt time.Time) *db.Article {
	t.Helper()
	article := db.Article{
		Title:       title,
		Content:     "正文",
		Category:    category,
		Author:      "tester",
		AuthorImage: "https://example.com/a.png",
		CoverImage:  "https://example.com/c.jpg",
		ViewCount:   views,
		Version:     1,
	}
	if err := gdb.Create(&article).Error; err != nil {
		t.Fatalf("create article: %v", err)
	}
	// AutoCreateTime 会覆盖传入值，建好后再校正
	if err := gdb.Model(&article).UpdateColumn("created_at", createdAt).Error; err != nil {
		t.Fatalf("backdate article: %v", err)
	}
	return &article
}

func TestDashboardPeriodCounts(t *testing.T) {
	gdb := setupAnalyticsTestDB(t)
	svc := NewAnalyticsService(gdb)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	// 当前周期 2 篇，上一周期 1 篇，更早 1 篇
	createArticleAt(t, gdb, "current-1", "tech", 10, now.AddDate(0, 0, -1))
	createArticleAt(t, gdb, "current-2", "tech", 5, now.AddDate(0, 0, -3))
	createArticleAt(t, gdb, "previous-1", "life", 8, now.AddDate(0, 0, -10))
	createArticleAt(t, gdb, "ancient", "life", 2, now.AddDate(0, 0, -60))

	data, err := svc.Dashboard("7d", now)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}

	if data.Articles.Current != 2 || data.Articles.Previous != 1 || data.Articles.Total != 4 {
		t.Fatalf("unexpected article stats: %+v", data.Articles)
	}
	if data.Articles.Change != 100 {
		t.Fatalf("expected +100%% article change, got %v", data.Articles.Change)
	}
	if data.Views.Total != 25 {
		t.Fatalf("expected total views 25, got %d", data.Views.Total)
	}
}

func TestDashboardDailyViewsAggregatesRows(t *testing.T) {
	gdb := setupAnalyticsTestDB(t)
	svc := NewAnalyticsService(gdb)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	article := createArticleAt(t, gdb, "a", "tech", 0, now.AddDate(0, 0, -2))

	// 同一天的多条流水在图表里合并为一行
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	for _, at := range []time.Time{day.Add(9 * time.Hour), day.Add(15 * time.Hour), day.Add(21 * time.Hour)} {
		entry := db.ArticleViewEntry{ArticleID: article.ID, Date: at, Count: 1}
		if err := gdb.Create(&entry).Error; err != nil {
			t.Fatalf("create view entry: %v", err)
		}
	}
	other := db.ArticleViewEntry{ArticleID: article.ID, Date: day.AddDate(0, 0, -1), Count: 1}
	if err := gdb.Create(&other).Error; err != nil {
		t.Fatalf("create view entry: %v", err)
	}

	data, err := svc.Dashboard("7d", now)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}

	if len(data.DailyViews) != 2 {
		t.Fatalf("expected 2 chart days, got %d: %+v", len(data.DailyViews), data.DailyViews)
	}
	if data.DailyViews[1].Day != "2026-03-14" || data.DailyViews[1].Count != 3 {
		t.Fatalf("expected 2026-03-14 with 3 views, got %+v", data.DailyViews[1])
	}
	if data.Views.Current != 4 {
		t.Fatalf("expected 4 views in period, got %d", data.Views.Current)
	}
}

func TestDashboardSubscriberStats(t *testing.T) {
	gdb := setupAnalyticsTestDB(t)
	svc := NewAnalyticsService(gdb)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	subscribers := []db.Subscriber{
		{Email: "a@example.com", Status: db.SubscriberActive, SubscribedAt: now.AddDate(0, 0, -1)},
		{Email: "b@example.com", Status: db.SubscriberActive, SubscribedAt: now.AddDate(0, 0, -2)},
		{Email: "c@example.com", Status: db.SubscriberActive, SubscribedAt: now.AddDate(0, 0, -12)},
		// 退订的不计入任何周期
		{Email: "d@example.com", Status: db.SubscriberUnsubscribed, SubscribedAt: now.AddDate(0, 0, -1)},
	}
	for i := range subscribers {
		if err := gdb.Create(&subscribers[i]).Error; err != nil {
			t.Fatalf("create subscriber: %v", err)
		}
	}

	data, err := svc.Dashboard("7d", now)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}

	if data.Subscribers.Current != 2 || data.Subscribers.Previous != 1 || data.Subscribers.Total != 3 {
		t.Fatalf("unexpected subscriber stats: %+v", data.Subscribers)
	}
	if len(data.DailySubscribers) != 2 {
		t.Fatalf("expected 2 subscriber chart days, got %d", len(data.DailySubscribers))
	}
}

func TestDashboardTopCategoriesAndRecent(t *testing.T) {
	gdb := setupAnalyticsTestDB(t)
	svc := NewAnalyticsService(gdb)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	categories := []string{"tech", "tech", "tech", "life", "life", "travel", "food", "music"}
	for i, category := range categories {
		createArticleAt(t, gdb, fmt.Sprintf("post-%d", i), category, uint64(i), now.AddDate(0, 0, -i-1))
	}

	data, err := svc.Dashboard("30d", now)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}

	if len(data.TopCategories) != 4 {
		t.Fatalf("expected top 4 categories, got %d", len(data.TopCategories))
	}
	if data.TopCategories[0].Category != "tech" || data.TopCategories[0].Count != 3 {
		t.Fatalf("expected tech on top with 3 articles, got %+v", data.TopCategories[0])
	}
	if data.TopCategories[0].Views != 3 {
		t.Fatalf("expected tech views 0+1+2=3, got %d", data.TopCategories[0].Views)
	}

	if len(data.RecentArticles) != 5 {
		t.Fatalf("expected 5 recent articles, got %d", len(data.RecentArticles))
	}
	if data.RecentArticles[0].Title != "post-0" {
		t.Fatalf("expected newest article first, got %q", data.RecentArticles[0].Title)
	}
}

func TestDashboardRangeFallback(t *testing.T) {
	gdb := setupAnalyticsTestDB(t)
	svc := NewAnalyticsService(gdb)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	data, err := svc.Dashboard("bogus", now)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if got := data.CurrentPeriod.Start; !got.Equal(now.AddDate(0, 0, -7)) {
		t.Fatalf("expected 7d fallback window, got start %v", got)
	}
}
