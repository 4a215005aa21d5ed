package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/access-management/internal/auth"
	"github.com/frahmantamala/access-management/internal/transport/middleware"
)

func TestMiddleware(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Transport Middleware Suite")
}

var _ = Describe("RequirePermissions", func() {
	var (
		nextHits int
		handler  http.Handler
	)

	serve := func(u *auth.User) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users/7/permissions", nil)
		if u != nil {
			req = req.WithContext(auth.ContextWithUser(req.Context(), u))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	BeforeEach(func() {
		nextHits = 0
		handler = middleware.RequirePermissions("view-user", "view-permission")(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextHits++
				w.WriteHeader(http.StatusOK)
			}))
	})

	It("should reject a request with no principal", func() {
		rec := serve(nil)

		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		Expect(nextHits).To(Equal(0))
	})

	It("should reject a principal holding none of the permissions", func() {
		rec := serve(&auth.User{ID: 1, Permissions: []string{"create-product"}})

		Expect(rec.Code).To(Equal(http.StatusForbidden))
		Expect(nextHits).To(Equal(0))
	})

	It("should pass a principal holding any one of the permissions", func() {
		rec := serve(&auth.User{ID: 1, Permissions: []string{"view-permission"}})

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(nextHits).To(Equal(1))
	})
})

var _ = Describe("RequireSuperAdmin", func() {
	var (
		nextHits int
		handler  http.Handler
	)

	serve := func(u *auth.User) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/users/7/promote", nil)
		if u != nil {
			req = req.WithContext(auth.ContextWithUser(req.Context(), u))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	BeforeEach(func() {
		nextHits = 0
		handler = middleware.RequireSuperAdmin()(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextHits++
				w.WriteHeader(http.StatusOK)
			}))
	})

	It("should reject a principal without the super-admin role", func() {
		rec := serve(&auth.User{ID: 1, Roles: []string{"admin"}})

		Expect(rec.Code).To(Equal(http.StatusForbidden))
		Expect(nextHits).To(Equal(0))
	})

	It("should pass a super-admin", func() {
		rec := serve(&auth.User{ID: 1, Roles: []string{"super-admin"}})

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(nextHits).To(Equal(1))
	})
})
