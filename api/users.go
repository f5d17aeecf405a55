package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/silvesterwali/daily-gateway/domain"
	"github.com/silvesterwali/daily-gateway/storage"
)

func (h *handlers) getMe(c echo.Context) error {
	user, err := h.requireUser(c)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}
	return c.JSON(http.StatusOK, user)
}

func (h *handlers) putMe(c echo.Context) error {
	user, err := h.requireUser(c)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	var req profileUpdate
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, &ValidationError{Field: "body", Reason: "malformed request body"})
	}

	update := req.toUser()
	normalizeProfile(&update)
	if verr := validateProfile(&update); verr != nil {
		return c.JSON(http.StatusBadRequest, verr)
	}

	ctx := c.Request().Context()
	if update.Email != user.Email {
		dup, err := h.store.IsDuplicateEmail(ctx, user.ID, update.Email)
		if err != nil {
			return err
		}
		if dup {
			return c.JSON(http.StatusBadRequest, &ValidationError{Field: "email", Reason: "email already exists"})
		}
	}

	merged := mergeProfile(*user, update)
	if err := h.store.UpdateUser(ctx, user.ID, merged); err != nil {
		var dup storage.DuplicateError
		if errors.As(err, &dup) {
			return c.JSON(http.StatusBadRequest, &ValidationError{Field: dup.Field, Reason: dup.Field + " already exists"})
		}
		return err
	}
	return c.JSON(http.StatusOK, merged)
}

func (h *handlers) getMeInfo(c echo.Context) error {
	user, err := h.requireUser(c)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}
	return c.JSON(http.StatusOK, map[string]string{
		"id":    user.ID,
		"name":  user.Name,
		"email": user.Email,
	})
}

func (h *handlers) getMeRoles(c echo.Context) error {
	user, err := h.requireUser(c)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}
	roles, err := h.store.GetUserRoles(c.Request().Context(), user.ID)
	if err != nil {
		return err
	}
	if roles == nil {
		roles = []string{}
	}
	return c.JSON(http.StatusOK, roles)
}

func (h *handlers) getUserByID(c echo.Context) error {
	user, err := h.store.GetUserByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.NoContent(http.StatusNotFound)
		}
		return err
	}
	return c.JSON(http.StatusOK, user.PublicProfile())
}

func (h *handlers) postLogout(c echo.Context) error {
	clearIdentityCookies(c)
	return c.NoContent(http.StatusNoContent)
}

// requireUser loads the authenticated user or writes the failure response
// itself, returning (nil, nil) once the response is committed.
func (h *handlers) requireUser(c echo.Context) (*domain.User, error) {
	userID := userIDFromContext(c)
	if userID == "" {
		return nil, c.NoContent(http.StatusUnauthorized)
	}
	user, err := h.store.GetUserByID(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, c.NoContent(http.StatusUnauthorized)
		}
		return nil, err
	}
	return user, nil
}
