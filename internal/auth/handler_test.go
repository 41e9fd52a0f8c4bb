package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/frahmantamala/hrms-identity/internal/user"
)

func doJSON(h http.HandlerFunc, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func errorCode(rec *httptest.ResponseRecorder) string {
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	gomega.Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(gomega.Succeed())
	return body.Error.Code
}

var _ = ginkgo.Describe("Auth Handler", func() {
	var (
		f       *fixture
		handler *Handler
	)

	ginkgo.BeforeEach(func() {
		f = newFixture()
		handler = NewHandler(f.service)
	})

	ginkgo.Describe("Register", func() {
		ginkgo.It("should respond 201 with the token pair", func() {
			rec := doJSON(handler.Register, `{"username":"carol","email":"carol@example.com","password":"s3cretpass"}`)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusCreated))
			var resp map[string]any
			gomega.Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(gomega.Succeed())
			gomega.Expect(resp).To(gomega.HaveKeyWithValue("tokenType", "Bearer"))
			gomega.Expect(resp).To(gomega.HaveKeyWithValue("username", "carol"))
			gomega.Expect(resp).To(gomega.HaveKeyWithValue("email", "carol@example.com"))
			gomega.Expect(resp).To(gomega.HaveKeyWithValue("expiresIn", float64(86400000)))
			gomega.Expect(resp).To(gomega.HaveKey("accessToken"))
			gomega.Expect(resp).To(gomega.HaveKey("refreshToken"))
		})

		ginkgo.It("should respond 409 on a duplicate username", func() {
			f.seed("carol", "carol@example.com", "s3cretpass")

			rec := doJSON(handler.Register, `{"username":"carol","email":"other@example.com","password":"s3cretpass"}`)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusConflict))
			gomega.Expect(errorCode(rec)).To(gomega.Equal("DUPLICATE_USERNAME"))
		})

		ginkgo.It("should respond 400 on malformed JSON", func() {
			rec := doJSON(handler.Register, `{"username":`)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusBadRequest))
			gomega.Expect(errorCode(rec)).To(gomega.Equal("INVALID_BODY"))
		})

		ginkgo.It("should respond 400 on validation failures", func() {
			rec := doJSON(handler.Register, `{"username":"carol","email":"nope","password":"s3cretpass"}`)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusBadRequest))
			gomega.Expect(errorCode(rec)).To(gomega.Equal("VALIDATION_FAILED"))
		})
	})

	ginkgo.Describe("Login", func() {
		ginkgo.BeforeEach(func() {
			f.seed("dave", "dave@example.com", "correct_password")
		})

		ginkgo.It("should respond 200 on valid credentials", func() {
			rec := doJSON(handler.Login, `{"username":"dave","password":"correct_password"}`)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		})

		ginkgo.It("should give the same 401 body for unknown users and wrong passwords", func() {
			unknown := doJSON(handler.Login, `{"username":"nobody","password":"correct_password"}`)
			wrong := doJSON(handler.Login, `{"username":"dave","password":"nope"}`)

			gomega.Expect(unknown.Code).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(wrong.Code).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(unknown.Body.String()).To(gomega.Equal(wrong.Body.String()))
			gomega.Expect(errorCode(wrong)).To(gomega.Equal("INVALID_CREDENTIALS"))
		})

		ginkgo.It("should respond 403 for a disabled account", func() {
			f.repo.mutate("dave", func(i *user.Identity) { i.Enabled = false })

			rec := doJSON(handler.Login, `{"username":"dave","password":"correct_password"}`)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusForbidden))
			gomega.Expect(errorCode(rec)).To(gomega.Equal("ACCOUNT_DISABLED"))
		})
	})

	ginkgo.Describe("Refresh", func() {
		ginkgo.It("should require a bearer token", func() {
			rec := doJSON(handler.Refresh, "")
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(errorCode(rec)).To(gomega.Equal("MISSING_TOKEN"))
		})

		ginkgo.It("should exchange a refresh token from the Authorization header", func() {
			f.seed("erin", "erin@example.com", "correct_password")
			login, err := f.service.Login(f.ctx, LoginDTO{Username: "erin", Password: "correct_password"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			rec := doJSON(handler.Refresh, "", "Authorization", "Bearer "+login.RefreshToken)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))

			replay := doJSON(handler.Refresh, "", "Authorization", "Bearer "+login.RefreshToken)
			gomega.Expect(replay.Code).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(errorCode(replay)).To(gomega.Equal("INVALID_TOKEN"))
		})

		ginkgo.It("should report expired tokens distinctly", func() {
			f.seed("erin", "erin@example.com", "correct_password")
			login, err := f.service.Login(f.ctx, LoginDTO{Username: "erin", Password: "correct_password"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			f.clock.Advance(31 * 24 * time.Hour)

			rec := doJSON(handler.Refresh, "", "Authorization", "Bearer "+login.RefreshToken)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(errorCode(rec)).To(gomega.Equal("TOKEN_EXPIRED"))
		})
	})

	ginkgo.It("should report health as plain text", func() {
		rec := httptest.NewRecorder()
		handler.Health(rec, httptest.NewRequest(http.MethodGet, "/auth/health", nil))
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		gomega.Expect(rec.Body.String()).To(gomega.Equal("Auth service is running"))
	})
})
