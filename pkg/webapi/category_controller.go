package webapi

import (
	"net/http"

	"github.com/akademi-crypto/vidhub/pkg/vhdb/stor"
	"github.com/labstack/echo/v4"
)

type CategoryController struct {
	categoryStor stor.CategoryStor
}

func NewCategoryController(categoryStor stor.CategoryStor) *CategoryController {
	return &CategoryController{categoryStor: categoryStor}
}

type categoryRequest struct {
	Name string `json:"name" validate:"required,max=191"`
}

func (c *CategoryController) CreateCategory(ctx echo.Context) error {
	var req categoryRequest
	if err := bindAndValidate(ctx, &req); err != nil {
		return err
	}

	category, err := c.categoryStor.CreateCategory(req.Name)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusCreated, category)
}

func (c *CategoryController) ListCategories(ctx echo.Context) error {
	categories, err := c.categoryStor.ListCategories()
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, categories)
}

func (c *CategoryController) GetCategory(ctx echo.Context) error {
	category, err := c.categoryStor.GetCategoryByID(ctx.Param("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, category)
}

func (c *CategoryController) UpdateCategory(ctx echo.Context) error {
	var req categoryRequest
	if err := bindAndValidate(ctx, &req); err != nil {
		return err
	}

	category, err := c.categoryStor.UpdateCategory(ctx.Param("id"), req.Name)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, category)
}

func (c *CategoryController) DeleteCategory(ctx echo.Context) error {
	if err := c.categoryStor.DeleteCategory(ctx.Param("id")); err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, map[string]string{"message": "Category deleted"})
}
