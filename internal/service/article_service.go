package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/inkwell/internal/db"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var (
	ErrArticleNotFound = errors.New("article not found")
	// ErrArticleConflict 表示条件写入落空：版本号已被其他写入者推进。
	// 调用方应重新拉取文章后重试，服务端不做合并。
	ErrArticleConflict = errors.New("article was modified by another writer")
)

// ValidationError 标记可由调用方修正的输入问题，在任何 I/O 之前返回。
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func newValidationError(format string, args ...interface{}) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// IsValidationError 判断 err 是否为输入校验错误。
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ImageStore 抽象外部图床。上传失败向上传播；删除是尽力而为的清理，
// 失败只记录日志。
type ImageStore interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, ref string) error
}

// ArticleService wraps article related database operations and the
// external image hosting side effects around them.
type ArticleService struct {
	db     *gorm.DB
	images ImageStore
}

// ArticleInput represents fields accepted when creating an article.
// 创建时所有字段必填。
type ArticleInput struct {
	Title       string
	Content     string
	Category    string
	Author      string
	AuthorImage string
}

// ArticleUpdate carries the optional fields of a partial update.
// 空字符串表示“不修改该字段”，而不是清空。
type ArticleUpdate struct {
	Title       string
	Content     string
	Category    string
	Author      string
	AuthorImage string
}

// NewArticleService creates an ArticleService instance.
func NewArticleService(gdb *gorm.DB, images ImageStore) *ArticleService {
	return &ArticleService{db: gdb, images: images}
}

// ListAll returns all articles ordered by created time descending.
func (s *ArticleService) ListAll() ([]db.Article, error) {
	var articles []db.Article
	if err := s.db.Order("created_at desc").Find(&articles).Error; err != nil {
		return nil, err
	}
	return articles, nil
}

// Get fetches an article by id.
func (s *ArticleService) Get(id uint) (*db.Article, error) {
	var article db.Article
	if err := s.db.First(&article, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrArticleNotFound
		}
		return nil, err
	}
	return &article, nil
}

// Create 校验必填字段、上传封面后落库。封面上传失败会使整个创建失败。
func (s *ArticleService) Create(ctx context.Context, input ArticleInput, cover []byte, coverType string) (*db.Article, error) {
	if err := validateArticleInput(input); err != nil {
		return nil, err
	}
	if len(cover) == 0 {
		return nil, newValidationError("image is required")
	}

	coverRef, err := s.images.Upload(ctx, cover, coverType)
	if err != nil {
		return nil, fmt.Errorf("upload cover image: %w", err)
	}

	article := db.Article{
		Title:       strings.TrimSpace(input.Title),
		Content:     input.Content,
		Category:    strings.TrimSpace(input.Category),
		Author:      strings.TrimSpace(input.Author),
		AuthorImage: strings.TrimSpace(input.AuthorImage),
		CoverImage:  coverRef,
		Version:     1,
	}

	if err := s.db.Create(&article).Error; err != nil {
		return nil, err
	}
	return &article, nil
}

// Update 以乐观并发方式应用部分更新：单条条件写入同时匹配 id 与
// expectedVersion，命中才应用变更并把版本号恰好加一。落空时区分
// Conflict（版本已前移）与 NotFound（记录已删除），绝不静默覆盖。
func (s *ArticleService) Update(ctx context.Context, id uint, expectedVersion uint64, changes ArticleUpdate, cover []byte, coverType string) (*db.Article, error) {
	var existing db.Article
	if err := s.db.First(&existing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrArticleNotFound
		}
		return nil, err
	}

	updates := map[string]interface{}{}
	if v := strings.TrimSpace(changes.Title); v != "" {
		updates["title"] = v
	}
	if changes.Content != "" {
		updates["content"] = changes.Content
	}
	if v := strings.TrimSpace(changes.Category); v != "" {
		updates["category"] = v
	}
	if v := strings.TrimSpace(changes.Author); v != "" {
		updates["author"] = v
	}
	if v := strings.TrimSpace(changes.AuthorImage); v != "" {
		updates["author_image"] = v
	}

	if len(cover) > 0 {
		// 先尽力删除旧封面，失败不阻塞更新；新封面上传失败则整体失败。
		if existing.CoverImage != "" {
			if err := s.images.Delete(ctx, existing.CoverImage); err != nil {
				log.Warn().Err(err).Uint("article", id).Msg("failed to delete previous cover image")
			}
		}

		coverRef, err := s.images.Upload(ctx, cover, coverType)
		if err != nil {
			return nil, fmt.Errorf("upload cover image: %w", err)
		}
		updates["cover_image"] = coverRef
	}

	updates["version"] = gorm.Expr("version + 1")

	result := s.db.Model(&db.Article{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		var check db.Article
		if err := s.db.First(&check, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrArticleNotFound
			}
			return nil, err
		}
		return nil, ErrArticleConflict
	}

	var updated db.Article
	if err := s.db.First(&updated, id).Error; err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete 先尽力删除外部封面，再删除记录及其浏览数据。
// 两步不在同一事务里：中断最多遗留一张外部孤儿图片，不会留下指向
// 已删图片的文章记录。
func (s *ArticleService) Delete(ctx context.Context, id uint) error {
	var article db.Article
	if err := s.db.First(&article, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrArticleNotFound
		}
		return err
	}

	if article.CoverImage != "" {
		if err := s.images.Delete(ctx, article.CoverImage); err != nil {
			log.Warn().Err(err).Uint("article", id).Msg("failed to delete cover image")
		}
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("article_id = ?", id).Delete(&db.ViewRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("article_id = ?", id).Delete(&db.ArticleViewEntry{}).Error; err != nil {
			return err
		}
		return tx.Delete(&db.Article{}, id).Error
	})
}

func validateArticleInput(input ArticleInput) error {
	required := []struct {
		name  string
		value string
	}{
		{"title", input.Title},
		{"description", input.Content},
		{"category", input.Category},
		{"author", input.Author},
		{"authorImg", input.AuthorImage},
	}

	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return newValidationError("%s is required", field.name)
		}
	}
	return nil
}
