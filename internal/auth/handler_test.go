package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

// mockSessionEstablisher records session lifecycle calls from the handler.
type mockSessionEstablisher struct {
	established []int64
	cleared     int
}

func (m *mockSessionEstablisher) Establish(ctx context.Context, w http.ResponseWriter, userID int64) error {
	m.established = append(m.established, userID)
	return nil
}

func (m *mockSessionEstablisher) Clear(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	m.cleared++
	return nil
}

var _ = ginkgo.Describe("AuthHandler", func() {
	var (
		handler  *Handler
		mockRepo *mockUserRepository
		tokenGen *JWTTokenGenerator
		sessions *mockSessionEstablisher
	)

	ginkgo.BeforeEach(func() {
		mockRepo = newMockUserRepository()
		tokenGen = NewJWTTokenGenerator("test-access-secret", "test-refresh-secret", 15*time.Minute, 24*time.Hour)
		sessions = &mockSessionEstablisher{}
		handler = NewHandler(NewService(mockRepo, tokenGen, bcrypt.DefaultCost), sessions)
	})

	ginkgo.Describe("Login", func() {
		ginkgo.It("should establish a server-side session for the authenticated account", func() {
			body := strings.NewReader(`{"email":"user@example.com","password":"correct_password"}`)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", body)
			rec := httptest.NewRecorder()

			handler.Login(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(sessions.established).To(gomega.Equal([]int64{1}))
		})

		ginkgo.It("should not open a session when authentication fails", func() {
			body := strings.NewReader(`{"email":"user@example.com","password":"wrong_password"}`)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", body)
			rec := httptest.NewRecorder()

			handler.Login(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(sessions.established).To(gomega.BeEmpty())
		})
	})

	ginkgo.Describe("Logout", func() {
		ginkgo.It("should clear the server-side session", func() {
			token, err := tokenGen.GenerateAccessToken("1", "user@example.com")
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()

			handler.Logout(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNoContent))
			gomega.Expect(sessions.cleared).To(gomega.Equal(1))
		})
	})

	ginkgo.Describe("AuthMiddleware", func() {
		var (
			nextHits  int
			protected http.Handler
		)

		ginkgo.BeforeEach(func() {
			nextHits = 0
			protected = handler.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextHits++
				w.WriteHeader(http.StatusOK)
			}))
		})

		ginkgo.It("should pass a valid token through with the principal in context", func() {
			token, err := tokenGen.GenerateAccessToken("2", "admin@example.com")
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()

			protected.ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(nextHits).To(gomega.Equal(1))
		})

		ginkgo.It("should reject a banned account even when its token is still valid", func() {
			token, err := tokenGen.GenerateAccessToken("3", "banned@example.com")
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()

			protected.ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusForbidden))
			gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring("Your account has been banned. Please contact support."))
			gomega.Expect(nextHits).To(gomega.Equal(0))
		})

		ginkgo.It("should reject an account banned after its token was issued", func() {
			token, err := tokenGen.GenerateAccessToken("1", "user@example.com")
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			mockRepo.usersByID[1].Banned = true

			req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()

			protected.ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusForbidden))
			gomega.Expect(nextHits).To(gomega.Equal(0))
		})
	})
})
