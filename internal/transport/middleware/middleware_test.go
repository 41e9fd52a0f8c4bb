package middleware_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/hrms-identity/internal/transport"
	"github.com/frahmantamala/hrms-identity/internal/transport/middleware"
	"github.com/frahmantamala/hrms-identity/pkg/logger"
)

func errorCode(rec *httptest.ResponseRecorder) string {
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
	return body.Error.Code
}

var ok = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

var _ = Describe("RateLimiter", func() {
	var (
		now     time.Time
		limiter *middleware.RateLimiter
	)

	BeforeEach(func() {
		now = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		limiter = middleware.NewRateLimiter(transport.NewBaseHandler(logger.Discard()), 1, 2).
			WithClock(func() time.Time { return now })
	})

	It("allows a burst and then rejects", func() {
		Expect(limiter.Allow("10.0.0.1")).To(BeTrue())
		Expect(limiter.Allow("10.0.0.1")).To(BeTrue())
		allowed, retry := limiter.Allow("10.0.0.1")
		Expect(allowed).To(BeFalse())
		Expect(retry).To(BeNumerically(">", 0))
	})

	It("refills over time", func() {
		limiter.Allow("10.0.0.1")
		limiter.Allow("10.0.0.1")
		now = now.Add(time.Second)
		allowed, _ := limiter.Allow("10.0.0.1")
		Expect(allowed).To(BeTrue())
	})

	It("keeps separate buckets per client", func() {
		limiter.Allow("10.0.0.1")
		limiter.Allow("10.0.0.1")
		allowed, _ := limiter.Allow("10.0.0.2")
		Expect(allowed).To(BeTrue())
	})

	It("answers 429 with Retry-After", func() {
		h := limiter.Middleware(ok)
		var rec *httptest.ResponseRecorder
		for i := 0; i < 3; i++ {
			rec = httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
			req.RemoteAddr = "192.0.2.1:5555"
			h.ServeHTTP(rec, req)
		}
		Expect(rec.Code).To(Equal(http.StatusTooManyRequests))
		Expect(rec.Header().Get("Retry-After")).To(Equal("1"))
		Expect(errorCode(rec)).To(Equal("TOO_MANY_REQUESTS"))
	})
})

var _ = Describe("ClientIP", func() {
	mustCIDR := func(cidr string) *net.IPNet {
		_, n, err := net.ParseCIDR(cidr)
		Expect(err).NotTo(HaveOccurred())
		return n
	}

	resolve := func(trusted []*net.IPNet, req *http.Request) string {
		var got string
		middleware.RealIP(trusted)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			got = middleware.ClientIP(r)
		})).ServeHTTP(httptest.NewRecorder(), req)
		return got
	}

	It("ignores X-Forwarded-For from an untrusted peer", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "198.51.100.4:1234"
		req.Header.Set("X-Forwarded-For", "203.0.113.7")
		Expect(resolve(nil, req)).To(Equal("198.51.100.4"))
		Expect(middleware.ClientIP(req)).To(Equal("198.51.100.4"))
	})

	It("takes the first untrusted hop behind a trusted proxy", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.5:1234"
		req.Header.Set("X-Forwarded-For", "1.2.3.4, 203.0.113.7, 10.0.0.2")
		Expect(resolve([]*net.IPNet{mustCIDR("10.0.0.0/8")}, req)).To(Equal("203.0.113.7"))
	})

	It("stops at a malformed hop", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.5:1234"
		req.Header.Set("X-Forwarded-For", "not-an-ip")
		Expect(resolve([]*net.IPNet{mustCIDR("10.0.0.0/8")}, req)).To(Equal("10.0.0.5"))
	})

	It("keeps throttling a peer that rotates X-Forwarded-For", func() {
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		limiter := middleware.NewRateLimiter(transport.NewBaseHandler(logger.Discard()), 1, 1).
			WithClock(func() time.Time { return now })
		h := middleware.RealIP(nil)(limiter.Middleware(ok))

		passed := 0
		for i := 0; i < 50; i++ {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
			req.RemoteAddr = "203.0.113.7:4444"
			req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != http.StatusTooManyRequests {
				passed++
			}
		}
		Expect(passed).To(Equal(1))
	})
})

var _ = Describe("FilterSensitiveBody", func() {
	It("masks credential fields at any depth", func() {
		out := middleware.FilterSensitiveBody([]byte(`{"username":"alice","password":"hunter22","nested":{"refreshToken":"x"}}`))
		Expect(out).To(ContainSubstring(`"username":"alice"`))
		Expect(out).NotTo(ContainSubstring("hunter22"))
		Expect(out).To(ContainSubstring(`"refreshToken":"[FILTERED]"`))
	})

	It("hides non-JSON bodies that mention a secret", func() {
		Expect(middleware.FilterSensitiveBody([]byte("password=hunter22"))).To(Equal("[FILTERED - Contains sensitive data]"))
	})
})

var _ = Describe("Logging", func() {
	It("leaves the request body readable downstream", func() {
		var seen string
		h := middleware.Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			seen = string(b)
			w.WriteHeader(http.StatusCreated)
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"password":"secret123"}`)))
		Expect(rec.Code).To(Equal(http.StatusCreated))
		Expect(seen).To(Equal(`{"password":"secret123"}`))
	})

	It("logs the masked body at debug level", func() {
		var buf bytes.Buffer
		lg := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"username":"alice","password":"secret123"}`))
		req = req.WithContext(logger.WithLogger(req.Context(), lg))

		middleware.Logging(ok).ServeHTTP(httptest.NewRecorder(), req)
		Expect(buf.String()).To(ContainSubstring("incoming request"))
		Expect(buf.String()).To(ContainSubstring("alice"))
		Expect(buf.String()).NotTo(ContainSubstring("secret123"))
	})

	It("does not touch the body when debug logging is off", func() {
		var buf bytes.Buffer
		lg := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
		body := &countingReader{r: strings.NewReader(`{"username":"alice"}`)}
		req := httptest.NewRequest(http.MethodPost, "/", body)
		req = req.WithContext(logger.WithLogger(req.Context(), lg))

		middleware.Logging(ok).ServeHTTP(httptest.NewRecorder(), req)
		Expect(body.reads).To(BeZero())
		Expect(buf.String()).NotTo(ContainSubstring("incoming request"))
		Expect(buf.String()).To(ContainSubstring(`"status_code":204`))
	})
})

type countingReader struct {
	r     io.Reader
	reads int
}

func (c *countingReader) Read(p []byte) (int, error) {
	c.reads++
	return c.r.Read(p)
}

var _ = Describe("Recovery", func() {
	It("converts a panic into a 500 envelope", func() {
		h := middleware.Recovery(transport.NewBaseHandler(logger.Discard()))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		Expect(errorCode(rec)).To(Equal("INTERNAL_ERROR"))
		Expect(rec.Body.String()).NotTo(ContainSubstring("boom"))
	})
})

var _ = Describe("RequestID", func() {
	It("generates a trace id when none is supplied", func() {
		rec := httptest.NewRecorder()
		middleware.RequestID(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		_, err := uuid.Parse(rec.Header().Get(middleware.TraceIDHeader))
		Expect(err).NotTo(HaveOccurred())
	})

	It("propagates a valid incoming trace id", func() {
		id := uuid.NewString()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(middleware.TraceIDHeader, id)
		rec := httptest.NewRecorder()
		middleware.RequestID(ok).ServeHTTP(rec, req)
		Expect(rec.Header().Get(middleware.TraceIDHeader)).To(Equal(id))
	})
})

var _ = Describe("CORS", func() {
	It("echoes an allowed origin", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://hr.example.com")
		rec := httptest.NewRecorder()
		middleware.CORS("https://hr.example.com, https://other.example.com")(ok).ServeHTTP(rec, req)
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("https://hr.example.com"))
	})

	It("ignores an unlisted origin", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()
		middleware.CORS("https://hr.example.com")(ok).ServeHTTP(rec, req)
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(BeEmpty())
	})

	It("short-circuits preflight requests", func() {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/auth/login", nil)
		req.Header.Set("Origin", "https://hr.example.com")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rec := httptest.NewRecorder()
		middleware.CORS("*")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			Fail("preflight reached the handler")
		})).ServeHTTP(rec, req)
		Expect(rec.Code).To(Equal(http.StatusNoContent))
	})
})
