/*
scope.go - Caller identity and visibility scoping

PURPOSE:
  Resolves the calling user from the X-User-ID header and decides what
  they may see. Leadership and finance roles see venture-level and
  other users' data; everyone else sees only their own numbers.

DESIGN:
  Scoping is a boundary concern: these checks run once per request,
  before any engine call, and the engine never re-validates them.
  Authentication itself (sessions, tokens) is external; this header
  resolution is the seam where it plugs in.

ROLES:
  CEO, ADMIN, COO, VENTURE_HEAD, FINANCE   cross-user visibility
  everything else                          self only

VENTURE SCOPE:
  Non-global roles are limited to ventures they are assigned to.
  CEO/ADMIN/COO see every venture.

SEE ALSO:
  - handlers.go: Uses requireScope on reporting endpoints
*/
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/warp/incentive-engine/store/sqlite"
)

// Role keys, as stored on users.
const (
	RoleCEO         = "CEO"
	RoleAdmin       = "ADMIN"
	RoleCOO         = "COO"
	RoleVentureHead = "VENTURE_HEAD"
	RoleFinance     = "FINANCE"
)

var errNoCaller = errors.New("missing or invalid X-User-ID header")

// Scope is the resolved caller plus their venture assignments.
type Scope struct {
	User     sqlite.UserRecord
	Ventures []int64
}

// IsLeadership reports whether the caller may see other users' data.
func (s *Scope) IsLeadership() bool {
	switch s.User.Role {
	case RoleCEO, RoleAdmin, RoleCOO, RoleVentureHead, RoleFinance:
		return true
	}
	return false
}

// isGlobal reports whether the caller sees every venture.
func (s *Scope) isGlobal() bool {
	switch s.User.Role {
	case RoleCEO, RoleAdmin, RoleCOO:
		return true
	}
	return false
}

// CanViewUser reports whether the caller may read another user's data.
func (s *Scope) CanViewUser(userID int64) bool {
	return userID == s.User.ID || s.IsLeadership()
}

// CanViewVenture reports whether the caller may read venture-level data.
func (s *Scope) CanViewVenture(ventureID int64) bool {
	if !s.IsLeadership() {
		return false
	}
	if s.isGlobal() {
		return true
	}
	for _, v := range s.Ventures {
		if v == ventureID {
			return true
		}
	}
	return false
}

// resolveScope reads X-User-ID and loads the caller.
func (h *Handler) resolveScope(r *http.Request) (*Scope, error) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return nil, errNoCaller
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, errNoCaller
	}

	user, err := h.Store.GetUser(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errNoCaller
	}

	ventures, err := h.Store.UserVentureIDs(r.Context(), id)
	if err != nil {
		return nil, err
	}
	return &Scope{User: *user, Ventures: ventures}, nil
}

// requireScope resolves the caller or writes a 401. Returns nil after
// writing the response.
func (h *Handler) requireScope(w http.ResponseWriter, r *http.Request) *Scope {
	scope, err := h.resolveScope(r)
	if err != nil {
		if errors.Is(err, errNoCaller) {
			writeError(w, http.StatusUnauthorized, "Unknown caller", nil)
		} else {
			writeError(w, http.StatusInternalServerError, "Failed to resolve caller", err)
		}
		return nil
	}
	return scope
}
