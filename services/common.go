package services

import (
	"errors"

	"ecoenzim-service/store"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

const RoleAdmin = "admin"

// Actor is the authenticated caller as forwarded by the auth boundary.
type Actor struct {
	ID   string
	Role string
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Deps are the collaborators every service shares.
type Deps struct {
	Store   store.Store
	Clock   clockwork.Clock
	Logger  logrus.FieldLogger
	Metrics *Metrics
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}
	return d
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// PageParams is a 1-based page request.
type PageParams struct {
	Page  int
	Limit int
}

// NormalizePage clamps page to >= 1 and limit to 1..100 (20 when unset).
func NormalizePage(page, limit int) PageParams {
	if page < 1 {
		page = 1
	}
	switch {
	case limit <= 0:
		limit = DefaultPageLimit
	case limit > MaxPageLimit:
		limit = MaxPageLimit
	}
	return PageParams{Page: page, Limit: limit}
}

func (p PageParams) window() store.Page {
	p = NormalizePage(p.Page, p.Limit)
	return store.Page{Limit: p.Limit, Offset: (p.Page - 1) * p.Limit}
}

type Pagination struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int   `json:"pages"`
}

type PageResult[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

func newPageResult[T any](items []T, total int64, p PageParams) PageResult[T] {
	p = NormalizePage(p.Page, p.Limit)
	if items == nil {
		items = []T{}
	}
	pages := int((total + int64(p.Limit) - 1) / int64(p.Limit))
	return PageResult[T]{
		Items:      items,
		Pagination: Pagination{Total: total, Page: p.Page, Limit: p.Limit, Pages: pages},
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

func requireAdmin(actor Actor) error {
	if !actor.IsAdmin() {
		return Forbidden(CodeAdminOnly, "admin role required")
	}
	return nil
}
