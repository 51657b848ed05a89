package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// AuthoritySet is the set of authority patterns granted to an operator.
// Patterns may contain '*' (any run of characters) and '?' (one character).
type AuthoritySet []string

// Allows reports whether any granted pattern matches one of the required codes.
// An empty requirement only needs an authenticated caller.
func (s AuthoritySet) Allows(required ...string) bool {
	if len(required) == 0 {
		return true
	}
	for _, granted := range s {
		for _, code := range required {
			if matchWildcard(granted, code) {
				return true
			}
		}
	}
	return false
}

// RequireAuthority passes when the authenticated operator holds any of codes.
// It must run after AuthMiddleware.Handle.
func RequireAuthority(codes ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if !principal.Authorities.Allows(codes...) {
			return fiber.NewError(http.StatusForbidden, "insufficient authority")
		}
		return c.Next()
	}
}

// RequireAuthenticated ensures a principal is present.
func RequireAuthenticated() fiber.Handler {
	return RequireAuthority()
}

func matchWildcard(pattern, target string) bool {
	if pattern == "*" {
		return true
	}

	pLen, tLen := len(pattern), len(target)
	pIdx, tIdx := 0, 0
	starIdx, matchIdx := -1, 0

	for tIdx < tLen {
		switch {
		case pIdx < pLen && (pattern[pIdx] == target[tIdx] || pattern[pIdx] == '?'):
			pIdx++
			tIdx++
		case pIdx < pLen && pattern[pIdx] == '*':
			starIdx = pIdx
			matchIdx = tIdx
			pIdx++
		case starIdx != -1:
			pIdx = starIdx + 1
			matchIdx++
			tIdx = matchIdx
		default:
			return false
		}
	}

	for pIdx < pLen && pattern[pIdx] == '*' {
		pIdx++
	}
	return pIdx == pLen
}
