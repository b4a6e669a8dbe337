package controllers

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/launchfox/launchfox/app/models"
	"github.com/launchfox/launchfox/app/repository"
	"github.com/launchfox/launchfox/internal/pkg/billing"
	"github.com/launchfox/launchfox/internal/pkg/database"
	"github.com/launchfox/launchfox/internal/pkg/quota"
	"github.com/launchfox/launchfox/internal/pkg/usercontext"
)

type itemRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func itemResponse(item *models.Item) fiber.Map {
	return fiber.Map{
		"uuid":        item.UUID,
		"title":       item.Title,
		"description": item.Description,
		"created_at":  item.CreatedAt,
		"updated_at":  item.UpdatedAt,
	}
}

func quotaEvaluator() *quota.Evaluator {
	return quota.NewEvaluator(
		repository.GetGlobalFactory().GetItemRepository(),
		billing.NewServiceFromDB(database.GetDB()),
	)
}

// HandleListItems returns the user's items, newest first.
func HandleListItems(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	repo := repository.GetGlobalFactory().GetItemRepository()
	items, err := repo.GetByUserID(userCtx.UserID, offset, limit)
	if err != nil {
		log.Printf("[Items] list failed for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load items")
	}

	out := make([]fiber.Map, 0, len(items))
	for i := range items {
		out = append(out, itemResponse(&items[i]))
	}
	return c.JSON(fiber.Map{"items": out, "offset": offset, "limit": limit})
}

// HandleCreateItem creates an item if the plan quota allows another one. The
// quota check is advisory; concurrent creates are not serialized against it.
func HandleCreateItem(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req itemRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Request body could not be parsed")
	}

	result, err := quotaEvaluator().Evaluate(c.Context(), userCtx.UserID)
	if err != nil {
		log.Printf("[Items] quota check failed for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Quota check failed")
	}
	if !result.CanCreate {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "quota_exceeded",
			"message": "Item limit for your plan reached. Upgrade to create more items.",
			"quota":   result,
		})
	}

	item := &models.Item{
		UserID:      userCtx.UserID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
	}
	if err := item.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", "Title is required and must be at most 200 characters")
	}

	if err := repository.GetGlobalFactory().GetItemRepository().Create(item); err != nil {
		log.Printf("[Items] create failed for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to create item")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"item": itemResponse(item)})
}

// HandleGetItem returns a single owned item.
func HandleGetItem(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	item, err := repository.GetGlobalFactory().GetItemRepository().GetByUUID(userCtx.UserID, c.Params("uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Item not found")
		}
		log.Printf("[Items] get failed for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load item")
	}
	return c.JSON(fiber.Map{"item": itemResponse(item)})
}

// HandleUpdateItem updates title/description of an owned item.
func HandleUpdateItem(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req itemRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Request body could not be parsed")
	}

	repo := repository.GetGlobalFactory().GetItemRepository()
	item, err := repo.GetByUUID(userCtx.UserID, c.Params("uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Item not found")
		}
		log.Printf("[Items] get failed for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load item")
	}

	item.Title = strings.TrimSpace(req.Title)
	item.Description = req.Description
	if err := item.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", "Title is required and must be at most 200 characters")
	}

	if err := repo.Update(item); err != nil {
		log.Printf("[Items] update failed for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to update item")
	}
	return c.JSON(fiber.Map{"item": itemResponse(item)})
}

// HandleDeleteItem removes an owned item. Existing items are never affected
// by plan downgrades, only deleted explicitly.
func HandleDeleteItem(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	err := repository.GetGlobalFactory().GetItemRepository().Delete(userCtx.UserID, c.Params("uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Item not found")
		}
		log.Printf("[Items] delete failed for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to delete item")
	}
	return c.JSON(fiber.Map{"status": "deleted"})
}

// HandleGetQuota reports the current quota standing.
func HandleGetQuota(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	result, err := quotaEvaluator().Evaluate(c.Context(), userCtx.UserID)
	if err != nil {
		log.Printf("[Items] quota check failed for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Quota check failed")
	}
	return c.JSON(fiber.Map{"quota": result, "remaining": result.Remaining()})
}
