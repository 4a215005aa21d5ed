package user_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/core/events"
	"github.com/frahmantamala/access-management/internal/user"
)

func TestUser(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "User Module Suite")
}

// Mock repository for testing
type mockUserRepository struct {
	users       map[int64]*user.User
	byEmail     map[string]*user.User
	nextID      int64
	createError error
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		users:   make(map[int64]*user.User),
		byEmail: make(map[string]*user.User),
		nextID:  1,
	}
}

func (m *mockUserRepository) GetByID(id int64) (*user.User, error) {
	return m.users[id], nil
}

func (m *mockUserRepository) GetByEmail(email string) (*user.User, error) {
	return m.byEmail[email], nil
}

func (m *mockUserRepository) List() ([]*user.User, error) {
	users := make([]*user.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	return users, nil
}

func (m *mockUserRepository) Create(u *user.User) error {
	if m.createError != nil {
		return m.createError
	}
	u.ID = m.nextID
	m.nextID++
	m.users[u.ID] = u
	m.byEmail[u.Email] = u
	return nil
}

func (m *mockUserRepository) SetBanned(id int64, banned bool) error {
	if u, ok := m.users[id]; ok {
		u.IsBanned = banned
	}
	return nil
}

// capturingPublisher records published events.
type capturingPublisher struct {
	published []events.Event
}

func (p *capturingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.published = append(p.published, event)
	return nil
}

var _ = Describe("UserService", func() {
	var (
		service   *user.Service
		mockRepo  *mockUserRepository
		publisher *capturingPublisher
	)

	validDTO := func() user.CreateUserDTO {
		return user.CreateUserDTO{
			Name:                 "Ana",
			Email:                "ana@mail.com",
			Password:             "supersecret",
			PasswordConfirmation: "supersecret",
		}
	}

	BeforeEach(func() {
		mockRepo = newMockUserRepository()
		publisher = &capturingPublisher{}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = user.NewService(mockRepo, publisher, bcrypt.MinCost, logger)
	})

	Describe("Create", func() {
		It("should persist a user with a bcrypt hash, never the raw password", func() {
			created, err := service.Create(validDTO())

			Expect(err).ToNot(HaveOccurred())
			Expect(created.ID).To(BeNumerically(">", 0))
			Expect(created.PasswordHash).ToNot(Equal("supersecret"))
			Expect(bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("supersecret"))).To(Succeed())
		})

		It("should normalize the email to lower case", func() {
			dto := validDTO()
			dto.Email = "  Ana@Mail.Com "

			created, err := service.Create(dto)

			Expect(err).ToNot(HaveOccurred())
			Expect(created.Email).To(Equal("ana@mail.com"))
		})

		It("should reject a duplicate email before hashing", func() {
			_, err := service.Create(validDTO())
			Expect(err).ToNot(HaveOccurred())

			_, err = service.Create(validDTO())

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeDuplicateEmail))
		})

		It("should reject a short password", func() {
			dto := validDTO()
			dto.Password = "short"
			dto.PasswordConfirmation = "short"

			_, err := service.Create(dto)

			Expect(err).To(HaveOccurred())
			Expect(mockRepo.users).To(BeEmpty())
		})

		It("should reject a mismatched confirmation", func() {
			dto := validDTO()
			dto.PasswordConfirmation = "different1"

			_, err := service.Create(dto)

			Expect(err).To(HaveOccurred())
			Expect(mockRepo.users).To(BeEmpty())
		})

		It("should reject a malformed email", func() {
			dto := validDTO()
			dto.Email = "not-an-email"

			_, err := service.Create(dto)

			Expect(err).To(HaveOccurred())
		})
	})

	Describe("SetBanned", func() {
		var created *user.User

		BeforeEach(func() {
			var err error
			created, err = service.Create(validDTO())
			Expect(err).ToNot(HaveOccurred())
		})

		It("should flip the ban flag and publish a ban event", func() {
			err := service.SetBanned(context.Background(), created.ID, true)

			Expect(err).ToNot(HaveOccurred())
			banned, err := service.IsBanned(created.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(banned).To(BeTrue())

			Expect(publisher.published).To(HaveLen(1))
			Expect(publisher.published[0].EventType()).To(Equal(events.EventTypeUserBanned))
		})

		It("should not publish when lifting a ban", func() {
			Expect(service.SetBanned(context.Background(), created.ID, true)).To(Succeed())
			Expect(service.SetBanned(context.Background(), created.ID, false)).To(Succeed())

			banned, err := service.IsBanned(created.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(banned).To(BeFalse())
			Expect(publisher.published).To(HaveLen(1))
		})

		It("should surface not found for an unknown id", func() {
			err := service.SetBanned(context.Background(), 404, true)
			Expect(err).To(Equal(internal.ErrUserNotFound))
		})
	})

	Describe("IsBanned", func() {
		It("should surface not found for an unknown id", func() {
			_, err := service.IsBanned(404)
			Expect(err).To(Equal(internal.ErrUserNotFound))
		})
	})
})
