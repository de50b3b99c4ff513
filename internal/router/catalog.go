package router

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"storefront/internal/model"
	"storefront/internal/order"
	"storefront/internal/store"

	"github.com/gin-gonic/gin"
)

// listProducts 商品列表：仅返回上架商品，支持搜索、品牌、价格区间、排序与分页。
func (h *handlers) listProducts(c *gin.Context) {
	f := store.ProductFilter{
		ActiveOnly: true,
		Brand:      c.Query("brand"),
		Search:     strings.TrimSpace(c.Query("search")),
		SortBy:     c.DefaultQuery("sort_by", "created_at"),
		Desc:       c.DefaultQuery("sort_order", "desc") == "desc",
		Skip:       queryInt(c, "skip", 0),
		Limit:      queryInt(c, "limit", 20),
	}
	if v, err := strconv.ParseUint(c.Query("category_id"), 10, 32); err == nil {
		id := uint(v)
		f.CategoryID = &id
	}
	if v, err := strconv.ParseBool(c.Query("featured")); err == nil {
		f.Featured = &v
	}
	if v, err := strconv.ParseBool(c.Query("on_sale")); err == nil {
		f.OnSale = &v
	}
	if v, err := strconv.ParseInt(c.Query("min_price"), 10, 64); err == nil {
		f.MinPrice = &v
	}
	if v, err := strconv.ParseInt(c.Query("max_price"), 10, 64); err == nil {
		f.MaxPrice = &v
	}

	list, total, err := h.products.List(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"products": list, "total": total})
}

func (h *handlers) listBrands(c *gin.Context) {
	brands, err := h.products.Brands(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, brands)
}

func (h *handlers) getProduct(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	p, err := h.products.FindByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, p)
}

func (h *handlers) getProductBySlug(c *gin.Context) {
	p, err := h.products.FindBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, p)
}

type productRequest struct {
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	Description string   `json:"description"`
	Brand       string   `json:"brand"`
	CategoryID  *uint    `json:"category_id" binding:"omitempty,min=1"`
	Images      []string `json:"images"`
	Sizes       []string `json:"sizes"`
	Price       *int64   `json:"price" binding:"omitempty,min=1"`
	SalePrice   *int64   `json:"sale_price" binding:"omitempty,min=0"`
	Stock       *int64   `json:"stock" binding:"omitempty,min=0"`
	WeightGrams *int64   `json:"weight_grams" binding:"omitempty,min=1"`
	IsActive    *bool    `json:"is_active"`
	IsFeatured  *bool    `json:"is_featured"`
	IsOnSale    *bool    `json:"is_on_sale"`
}

// createProduct 新建商品；未指定 is_active 时默认上架。
func (h *handlers) createProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" || req.Price == nil {
		badRequest(c, "name and price are required")
		return
	}
	if !h.categoryExists(c, req.CategoryID) {
		return
	}
	p := &model.Product{
		Name:        strings.TrimSpace(req.Name),
		Slug:        req.Slug,
		Description: req.Description,
		Brand:       req.Brand,
		CategoryID:  req.CategoryID,
		Images:      req.Images,
		Sizes:       req.Sizes,
		Price:       *req.Price,
		SalePrice:   req.SalePrice,
		WeightGrams: 500,
		IsActive:    true,
	}
	if req.Stock != nil {
		p.Stock = *req.Stock
	}
	if req.WeightGrams != nil {
		p.WeightGrams = *req.WeightGrams
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if req.IsFeatured != nil {
		p.IsFeatured = *req.IsFeatured
	}
	if req.IsOnSale != nil {
		p.IsOnSale = *req.IsOnSale
	}
	if err := h.products.Create(c.Request.Context(), p); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, p)
}

// updateProduct 部分更新；只修改请求中出现的字段。库存直接覆盖，属于管理员盘点操作。
func (h *handlers) updateProduct(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	fields := map[string]any{}
	if req.Name != "" {
		fields["name"] = strings.TrimSpace(req.Name)
	}
	if req.Slug != "" {
		fields["slug"] = req.Slug
	}
	if req.Description != "" {
		fields["description"] = req.Description
	}
	if req.Brand != "" {
		fields["brand"] = req.Brand
	}
	if req.CategoryID != nil {
		if !h.categoryExists(c, req.CategoryID) {
			return
		}
		fields["category_id"] = *req.CategoryID
	}
	// map 更新不经过 serializer，JSON 列需要手动编码
	if req.Images != nil {
		b, _ := json.Marshal(req.Images)
		fields["images"] = string(b)
	}
	if req.Sizes != nil {
		b, _ := json.Marshal(req.Sizes)
		fields["sizes"] = string(b)
	}
	if req.Price != nil {
		fields["price"] = *req.Price
	}
	if req.SalePrice != nil {
		fields["sale_price"] = *req.SalePrice
	}
	if req.Stock != nil {
		fields["stock"] = *req.Stock
	}
	if req.WeightGrams != nil {
		fields["weight_grams"] = *req.WeightGrams
	}
	if req.IsActive != nil {
		fields["is_active"] = *req.IsActive
	}
	if req.IsFeatured != nil {
		fields["is_featured"] = *req.IsFeatured
	}
	if req.IsOnSale != nil {
		fields["is_on_sale"] = *req.IsOnSale
	}
	p, err := h.products.Update(c.Request.Context(), id, fields)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, p)
}

func (h *handlers) deleteProduct(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	if err := h.products.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"deleted": id})
}

// categoryExists 校验商品引用的分类；id 为空时视为未分类。
func (h *handlers) categoryExists(c *gin.Context, id *uint) bool {
	if id == nil {
		return true
	}
	_, err := h.categories.FindByID(c.Request.Context(), *id)
	if errors.Is(err, store.ErrNotFound) {
		badRequest(c, "category not found")
		return false
	}
	if err != nil {
		h.fail(c, err)
		return false
	}
	return true
}

// listCategories 默认只返回启用的分类，active_only=false 时返回全部。
func (h *handlers) listCategories(c *gin.Context) {
	activeOnly := true
	if v, err := strconv.ParseBool(c.Query("active_only")); err == nil {
		activeOnly = v
	}
	list, err := h.categories.List(c.Request.Context(), activeOnly)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, list)
}

func (h *handlers) getCategory(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	cat, err := h.categories.FindByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, cat)
}

type categoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	IsActive    *bool  `json:"is_active"`
}

func (r categoryRequest) model() *model.Category {
	cat := &model.Category{
		Name:        strings.TrimSpace(r.Name),
		Slug:        strings.TrimSpace(r.Slug),
		Description: r.Description,
		ImageURL:    r.ImageURL,
		IsActive:    true,
	}
	if r.IsActive != nil {
		cat.IsActive = *r.IsActive
	}
	return cat
}

func (h *handlers) createCategory(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	cat := req.model()
	if cat.Slug == "" {
		cat.Slug = model.Slugify(cat.Name)
	}
	ctx := c.Request.Context()
	if _, err := h.categories.FindBySlug(ctx, cat.Slug); err == nil {
		h.fail(c, &order.Error{Kind: order.KindConflict, Message: "category slug already exists"})
		return
	}
	if err := h.categories.Create(ctx, cat); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, cat)
}

func (h *handlers) updateCategory(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	cat := req.model()
	if cat.Slug == "" {
		cur, err := h.categories.FindByID(ctx, id)
		if err != nil {
			h.fail(c, err)
			return
		}
		cat.Slug = cur.Slug
	} else if other, err := h.categories.FindBySlug(ctx, cat.Slug); err == nil && other.ID != id {
		h.fail(c, &order.Error{Kind: order.KindConflict, Message: "category slug already exists"})
		return
	}
	updated, err := h.categories.Update(ctx, id, cat)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, updated)
}

func (h *handlers) deleteCategory(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	if err := h.categories.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"deleted": id})
}
