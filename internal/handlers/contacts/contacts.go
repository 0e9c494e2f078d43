package contacts

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mkostiuk/contact_service/internal/events"
	"github.com/mkostiuk/contact_service/internal/logging"
	mw "github.com/mkostiuk/contact_service/internal/middleware/auth"
	"github.com/mkostiuk/contact_service/internal/models"
	"github.com/mkostiuk/contact_service/internal/service/search"
	"github.com/mkostiuk/contact_service/internal/util"
)

const birthdayLayout = "2006-01-02"

type ContactHandler struct {
	DB       *gorm.DB
	ES       *elasticsearch.Client
	Index    string
	Producer *events.Producer
}

type contactRequest struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Birthday       string `json:"birthday"`
	AdditionalInfo string `json:"additional_info"`
}

func (r *contactRequest) validate() error {
	if r.FirstName == "" || r.LastName == "" {
		return errors.New("first_name and last_name are required")
	}
	if !strings.Contains(r.Email, "@") {
		return errors.New("email must be valid")
	}
	if _, err := time.Parse(birthdayLayout, r.Birthday); err != nil {
		return errors.New("birthday must be in YYYY-MM-DD format")
	}
	return nil
}

func (h *ContactHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "contact_create")

	user := mw.CurrentUser(c)
	if user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "could not validate credentials")
	}

	var req contactRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("contact_create_failed", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := req.validate(); err != nil {
		l.Warn("contact_create_failed", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	contact := models.Contact{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		Phone:          req.Phone,
		Birthday:       req.Birthday,
		AdditionalInfo: req.AdditionalInfo,
		UserID:         user.ID,
	}
	if err := h.DB.Create(&contact).Error; err != nil {
		if isDuplicate(err) {
			l.Warn("contact_create_failed", "status", 409, "reason", "email_taken")
			return echo.NewHTTPError(http.StatusConflict, "contact with this email already exists")
		}
		l.Error("contact_create_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.indexContact(c, contact)
	h.publish(c, strconv.FormatUint(uint64(contact.ID), 10), map[string]interface{}{
		"type":       "contact_created",
		"contact_id": contact.ID,
		"user_id":    user.ID,
	})

	l.Info("contact_created", "contact_id", contact.ID)
	return c.JSON(http.StatusCreated, contact)
}

func (h *ContactHandler) List(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "contact_list")

	user := mw.CurrentUser(c)
	if user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "could not validate credentials")
	}

	skip, _ := strconv.Atoi(c.QueryParam("skip"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	var contacts []models.Contact
	if err := h.DB.Where("user_id = ?", user.ID).
		Order("id").Offset(skip).Limit(limit).
		Find(&contacts).Error; err != nil {
		l.Error("contact_list_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, contacts)
}

func (h *ContactHandler) Get(c echo.Context) error {
	user := mw.CurrentUser(c)
	if user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "could not validate credentials")
	}

	contact, err := h.ownedContact(c, user.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, contact)
}

func (h *ContactHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "contact_update")

	user := mw.CurrentUser(c)
	if user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "could not validate credentials")
	}

	contact, err := h.ownedContact(c, user.ID)
	if err != nil {
		return err
	}

	var req contactRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("contact_update_failed", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := req.validate(); err != nil {
		l.Warn("contact_update_failed", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	contact.FirstName = req.FirstName
	contact.LastName = req.LastName
	contact.Email = req.Email
	contact.Phone = req.Phone
	contact.Birthday = req.Birthday
	contact.AdditionalInfo = req.AdditionalInfo

	if err := h.DB.Save(contact).Error; err != nil {
		if isDuplicate(err) {
			l.Warn("contact_update_failed", "status", 409, "reason", "email_taken")
			return echo.NewHTTPError(http.StatusConflict, "contact with this email already exists")
		}
		l.Error("contact_update_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.indexContact(c, *contact)
	h.publish(c, strconv.FormatUint(uint64(contact.ID), 10), map[string]interface{}{
		"type":       "contact_updated",
		"contact_id": contact.ID,
		"user_id":    user.ID,
	})

	l.Info("contact_updated", "contact_id", contact.ID)
	return c.JSON(http.StatusOK, contact)
}

func (h *ContactHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "contact_delete")

	user := mw.CurrentUser(c)
	if user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "could not validate credentials")
	}

	contact, err := h.ownedContact(c, user.ID)
	if err != nil {
		return err
	}

	if err := h.DB.Delete(contact).Error; err != nil {
		l.Error("contact_delete_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	if h.ES != nil {
		esCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := search.DeleteContact(esCtx, h.ES, h.Index, contact.ID); err != nil {
			l.Warn("contact_index_delete_failed", "contact_id", contact.ID, "error", err)
		}
	}
	h.publish(c, strconv.FormatUint(uint64(contact.ID), 10), map[string]interface{}{
		"type":       "contact_deleted",
		"contact_id": contact.ID,
		"user_id":    user.ID,
	})

	l.Info("contact_deleted", "contact_id", contact.ID)
	return c.JSON(http.StatusOK, echo.Map{"message": "contact deleted successfully"})
}

// Search answers q over the owner's contacts: Elasticsearch when wired, a
// plain LIKE scan otherwise.
func (h *ContactHandler) Search(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "contact_search")

	user := mw.CurrentUser(c)
	if user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "could not validate credentials")
	}

	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter q is required")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	from, size := util.Calculate(page, size)

	if h.ES != nil {
		total, found, err := search.Search(ctx, h.ES, h.Index, q, user.ID, from, size)
		if err != nil {
			l.Error("contact_search_failed", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "search failed")
		}
		return c.JSON(http.StatusOK, echo.Map{"total": total, "contacts": found})
	}

	pattern := "%" + q + "%"
	var contacts []models.Contact
	var total int64
	base := h.DB.Model(&models.Contact{}).
		Where("user_id = ?", user.ID).
		Where("first_name LIKE ? OR last_name LIKE ? OR email LIKE ?", pattern, pattern, pattern)
	if err := base.Count(&total).Error; err != nil {
		l.Error("contact_search_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "search failed")
	}
	if err := base.Order("id").Offset(from).Limit(size).Find(&contacts).Error; err != nil {
		l.Error("contact_search_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "search failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"total": total, "contacts": contacts})
}

// UpcomingBirthdays lists the owner's contacts whose birthday falls in the
// next seven days. The date window wraps across the new year.
func (h *ContactHandler) UpcomingBirthdays(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "contact_birthdays")

	user := mw.CurrentUser(c)
	if user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "could not validate credentials")
	}

	var contacts []models.Contact
	if err := h.DB.Where("user_id = ?", user.ID).Find(&contacts).Error; err != nil {
		l.Error("contact_birthdays_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	now := time.Now()
	upcoming := make([]models.Contact, 0)
	for _, ct := range contacts {
		if birthdayWithin(ct.Birthday, now, 7) {
			upcoming = append(upcoming, ct)
		}
	}
	return c.JSON(http.StatusOK, upcoming)
}

func birthdayWithin(birthday string, now time.Time, days int) bool {
	bd, err := time.Parse(birthdayLayout, birthday)
	if err != nil {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	next := time.Date(today.Year(), bd.Month(), bd.Day(), 0, 0, 0, 0, now.Location())
	if next.Before(today) {
		next = next.AddDate(1, 0, 0)
	}
	return !next.After(today.AddDate(0, 0, days))
}

func (h *ContactHandler) ownedContact(c echo.Context, userID uint) (*models.Contact, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 1 {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid contact id")
	}

	var contact models.Contact
	if err := h.DB.Where("id = ? AND user_id = ?", id, userID).First(&contact).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "contact not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return &contact, nil
}

func (h *ContactHandler) indexContact(c echo.Context, contact models.Contact) {
	if h.ES == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := search.IndexContact(ctx, h.ES, h.Index, contact); err != nil {
		logging.FromContext(c.Request().Context()).Warn("contact_index_failed", "contact_id", contact.ID, "error", err)
	}
}

func (h *ContactHandler) publish(c echo.Context, key string, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, events.TopicContactEvents, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Warn("event_publish_failed", "error", err)
	}
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}
