package handler

import (
	"bytes"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/inkwell/internal/db"
	"github.com/inkwell/internal/service"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	_ "golang.org/x/image/webp"
)

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Table),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	sanitizer = bluemonday.UGCPolicy()
)

const maxCoverSize = 10 << 20 // 10MB

var allowedCoverTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

type articleDetail struct {
	db.Article
	ContentHTML string `json:"contentHtml"`
}

// GetArticles 返回全部文章，按创建时间倒序。
func (a *API) GetArticles(c *gin.Context) {
	articles, err := a.articles.ListAll()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load articles")
		return
	}
	c.JSON(http.StatusOK, articles)
}

// GetArticle 返回单篇文章并登记一次浏览。
// 带 preview=true 的请求（后台预览）不计入浏览量；
// 浏览登记失败只记录，不影响文章读取。
func (a *API) GetArticle(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	article, err := a.articles.Get(id)
	if err != nil {
		if errors.Is(err, service.ErrArticleNotFound) {
			respondError(c, http.StatusNotFound, "article not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "failed to load article")
		return
	}

	if c.Query("preview") != "true" {
		viewer := service.ViewerKey{
			IPAddress: viewerAddress(c),
			UserID:    sessionUserID(c),
		}
		outcome, viewErr := a.views.RegisterView(article.ID, viewer, time.Now().UTC())
		if viewErr != nil {
			c.Error(viewErr)
		} else if outcome == service.ViewCounted {
			article.ViewCount++
		}
	}

	c.JSON(http.StatusOK, articleDetail{
		Article:     *article,
		ContentHTML: renderMarkdown(article.Content),
	})
}

// CreateArticle 处理 multipart 创建请求，封面图必填。
func (a *API) CreateArticle(c *gin.Context) {
	input := service.ArticleInput{
		Title:       c.PostForm("title"),
		Content:     c.PostForm("description"),
		Category:    c.PostForm("category"),
		Author:      c.PostForm("author"),
		AuthorImage: c.PostForm("authorImg"),
	}

	cover, coverType, ok := readCoverImage(c, true)
	if !ok {
		return
	}

	article, err := a.articles.Create(c.Request.Context(), input, cover, coverType)
	if err != nil {
		if service.IsValidationError(err) {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
		c.Error(err)
		respondError(c, http.StatusInternalServerError, "failed to create article")
		return
	}
	c.JSON(http.StatusCreated, article)
}

// UpdateArticle 应用部分更新。请求必须携带读取时的 version，
// 版本不匹配返回 409，让前端刷新后重试。
func (a *API) UpdateArticle(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	rawVersion := c.PostForm("version")
	expectedVersion, err := strconv.ParseUint(rawVersion, 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "version is required")
		return
	}

	changes := service.ArticleUpdate{
		Title:       c.PostForm("title"),
		Content:     c.PostForm("description"),
		Category:    c.PostForm("category"),
		Author:      c.PostForm("author"),
		AuthorImage: c.PostForm("authorImg"),
	}

	cover, coverType, ok := readCoverImage(c, false)
	if !ok {
		return
	}

	article, err := a.articles.Update(c.Request.Context(), id, expectedVersion, changes, cover, coverType)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrArticleNotFound):
			respondError(c, http.StatusNotFound, "article not found")
		case errors.Is(err, service.ErrArticleConflict):
			respondError(c, http.StatusConflict, "Article was modified by another user. Please refresh and try again.")
		case service.IsValidationError(err):
			respondError(c, http.StatusBadRequest, err.Error())
		default:
			c.Error(err)
			respondError(c, http.StatusInternalServerError, "failed to update article")
		}
		return
	}
	c.JSON(http.StatusOK, article)
}

// DeleteArticle 删除文章及其浏览数据。
func (a *API) DeleteArticle(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.articles.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrArticleNotFound) {
			respondError(c, http.StatusNotFound, "article not found")
			return
		}
		c.Error(err)
		respondError(c, http.StatusInternalServerError, "failed to delete article")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "article deleted"})
}

// readCoverImage 读取并校验 multipart 中的封面图。
// required 为 false 时允许缺省（更新保留原封面）。
// 校验失败时已写入响应，调用方直接返回即可。
func readCoverImage(c *gin.Context, required bool) ([]byte, string, bool) {
	file, err := c.FormFile("image")
	if err != nil {
		if !required {
			return nil, "", true
		}
		respondError(c, http.StatusBadRequest, "image is required")
		return nil, "", false
	}

	if file.Size > maxCoverSize {
		respondError(c, http.StatusBadRequest, "image must be smaller than 10MB")
		return nil, "", false
	}

	contentType := file.Header.Get("Content-Type")
	if !allowedCoverTypes[contentType] {
		respondError(c, http.StatusBadRequest, "only JPEG, PNG and WebP images are allowed")
		return nil, "", false
	}

	src, err := file.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "failed to read uploaded image")
		return nil, "", false
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxCoverSize+1))
	if err != nil {
		respondError(c, http.StatusBadRequest, "failed to read uploaded image")
		return nil, "", false
	}
	if len(data) > maxCoverSize {
		respondError(c, http.StatusBadRequest, "image must be smaller than 10MB")
		return nil, "", false
	}

	// Content-Type 可以伪造，再用解码器确认是真实图片
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		respondError(c, http.StatusBadRequest, "uploaded file is not a valid image")
		return nil, "", false
	}

	return data, contentType, true
}

func renderMarkdown(content string) string {
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(content), &buf); err != nil {
		return ""
	}
	return string(sanitizer.SanitizeBytes(buf.Bytes()))
}
