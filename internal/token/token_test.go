package token_test

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/hrms-identity/internal/token"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func strPtr(s string) *string { return &s }

func tamperSegment(tok string, segment int) string {
	parts := strings.Split(tok, ".")
	raw, err := base64.RawURLEncoding.DecodeString(parts[segment])
	Expect(err).NotTo(HaveOccurred())
	raw[len(raw)/2] ^= 0x01
	parts[segment] = base64.RawURLEncoding.EncodeToString(raw)
	return strings.Join(parts, ".")
}

var _ = Describe("Claims codec", func() {
	var base *token.Claims

	BeforeEach(func() {
		now := time.Unix(1_700_000_000, 0).UTC()
		base = &token.Claims{
			TokenType: token.TypeAccess,
			Roles:     []string{"ROLE_HR", "ROLE_EMPLOYEE"},
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "alice",
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		}
	})

	It("round-trips optional fields exactly", func() {
		id := uuid.New()
		base.EmployeeID = &id
		base.FirstName = strPtr("Jane")

		payload, err := token.Encode(base)
		Expect(err).NotTo(HaveOccurred())

		decoded, err := token.Decode(payload)
		Expect(err).NotTo(HaveOccurred())
		Expect(*decoded.EmployeeID).To(Equal(id))
		Expect(*decoded.FirstName).To(Equal("Jane"))
		Expect(decoded.LastName).To(BeNil())
		Expect(decoded.Roles).To(ConsistOf("ROLE_HR", "ROLE_EMPLOYEE"))
	})

	It("decodes absent optional fields as absent, never as empty strings", func() {
		payload, err := token.Encode(base)
		Expect(err).NotTo(HaveOccurred())

		decoded, err := token.Decode(payload)
		Expect(err).NotTo(HaveOccurred())
		Expect(decoded.EmployeeID).To(BeNil())
		Expect(decoded.FirstName).To(BeNil())
		Expect(decoded.LastName).To(BeNil())
	})

	It("is deterministic regardless of role order", func() {
		first, err := token.Encode(base)
		Expect(err).NotTo(HaveOccurred())

		base.Roles = []string{"ROLE_EMPLOYEE", "ROLE_HR", "ROLE_HR"}
		second, err := token.Encode(base)
		Expect(err).NotTo(HaveOccurred())
		Expect(second).To(Equal(first))
	})

	DescribeTable("rejects payloads missing required claims",
		func(field string) {
			payload, err := token.Encode(base)
			Expect(err).NotTo(HaveOccurred())
			raw, err := base64.RawURLEncoding.DecodeString(payload)
			Expect(err).NotTo(HaveOccurred())

			var m map[string]any
			Expect(json.Unmarshal(raw, &m)).To(Succeed())
			delete(m, field)
			raw, err = json.Marshal(m)
			Expect(err).NotTo(HaveOccurred())

			_, err = token.Decode(base64.RawURLEncoding.EncodeToString(raw))
			Expect(err).To(MatchError(token.ErrDecode))
		},
		Entry("subject", "sub"),
		Entry("issued at", "iat"),
		Entry("expires at", "exp"),
		Entry("token type", "token_type"),
	)

	It("rejects garbage", func() {
		_, err := token.Decode("!!not-base64!!")
		Expect(err).To(MatchError(token.ErrDecode))
	})

	It("refuses to encode claims whose expiry precedes issue time", func() {
		base.ExpiresAt = jwt.NewNumericDate(base.IssuedAt.Add(-time.Second))
		_, err := token.Encode(base)
		Expect(err).To(MatchError(token.ErrDecode))
	})
})

var _ = Describe("Signers", func() {
	It("rejects short HMAC secrets", func() {
		_, err := token.NewHMACSigner([]byte("short"))
		Expect(err).To(MatchError(token.ErrWeakSecret))
	})

	It("signs and verifies with RSA, and refuses to sign with a public key only", func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		Expect(err).NotTo(HaveOccurred())

		full, err := token.NewRSASigner(key, nil)
		Expect(err).NotTo(HaveOccurred())
		sig, err := full.Sign("header.payload")
		Expect(err).NotTo(HaveOccurred())

		verifyOnly, err := token.NewRSASigner(nil, &key.PublicKey)
		Expect(err).NotTo(HaveOccurred())
		Expect(verifyOnly.Verify("header.payload", sig)).To(Succeed())
		Expect(verifyOnly.Verify("header.payloaX", sig)).NotTo(Succeed())

		_, err = verifyOnly.Sign("header.payload")
		Expect(err).To(MatchError(token.ErrSigningUnavailable))
	})
})

var _ = Describe("Issuer and Verifier", func() {
	var (
		clock    *fakeClock
		signer   *token.HMACSigner
		issuer   *token.Issuer
		verifier *token.Verifier
		subject  token.Subject
	)

	BeforeEach(func() {
		var err error
		clock = &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
		signer, err = token.NewHMACSigner([]byte(testSecret))
		Expect(err).NotTo(HaveOccurred())

		cfg := token.Config{Issuer: "hrms-auth", AccessTTL: 24 * time.Hour, RefreshTTL: 30 * 24 * time.Hour}
		issuer, err = token.NewIssuer(signer, cfg, token.WithClock(clock.Now))
		Expect(err).NotTo(HaveOccurred())
		verifier, err = token.NewVerifier(signer, "hrms-auth", token.WithClock(clock.Now))
		Expect(err).NotTo(HaveOccurred())

		employeeID := uuid.MustParse("5f0c6f8e-8d5e-4a43-9d0b-3f3c1b8a2a11")
		subject = token.Subject{
			Username:   "bob",
			Roles:      []string{"ROLE_MANAGER", "ROLE_EMPLOYEE"},
			EmployeeID: &employeeID,
			FirstName:  strPtr("Bob"),
		}
	})

	It("round-trips roles and employee id through an access token", func() {
		tok, err := issuer.IssueAccessToken(subject)
		Expect(err).NotTo(HaveOccurred())
		Expect(strings.Count(tok.Value, ".")).To(Equal(2))
		Expect(tok.ExpiresAt.Sub(tok.IssuedAt)).To(Equal(24 * time.Hour))

		claims, err := verifier.Verify(tok.Value, token.TypeAccess)
		Expect(err).NotTo(HaveOccurred())
		Expect(claims.Subject).To(Equal("bob"))
		Expect(claims.Roles).To(ConsistOf(subject.Roles))
		Expect(*claims.EmployeeID).To(Equal(*subject.EmployeeID))
		Expect(*claims.FirstName).To(Equal("Bob"))
		Expect(claims.LastName).To(BeNil())
	})

	It("uses the longer ttl for refresh tokens", func() {
		tok, err := issuer.IssueRefreshToken(subject)
		Expect(err).NotTo(HaveOccurred())
		Expect(tok.ExpiresAt.Sub(tok.IssuedAt)).To(Equal(30 * 24 * time.Hour))
	})

	It("gives every token a distinct payload even within the same second", func() {
		a, err := issuer.IssueRefreshToken(subject)
		Expect(err).NotTo(HaveOccurred())
		b, err := issuer.IssueRefreshToken(subject)
		Expect(err).NotTo(HaveOccurred())
		Expect(strings.Split(a.Value, ".")[1]).NotTo(Equal(strings.Split(b.Value, ".")[1]))
	})

	It("keeps access and refresh tokens apart", func() {
		access, err := issuer.IssueAccessToken(subject)
		Expect(err).NotTo(HaveOccurred())
		refresh, err := issuer.IssueRefreshToken(subject)
		Expect(err).NotTo(HaveOccurred())

		_, err = verifier.Verify(refresh.Value, token.TypeAccess)
		Expect(err).To(MatchError(token.ErrInvalidToken))
		_, err = verifier.Verify(access.Value, token.TypeRefresh)
		Expect(err).To(MatchError(token.ErrInvalidToken))
	})

	It("rejects expired tokens with a valid signature", func() {
		tok, err := issuer.IssueAccessToken(subject)
		Expect(err).NotTo(HaveOccurred())

		clock.Advance(24 * time.Hour)
		_, err = verifier.Verify(tok.Value, token.TypeAccess)
		Expect(err).To(MatchError(token.ErrExpiredToken))
	})

	It("accepts a token right up to its expiry", func() {
		tok, err := issuer.IssueAccessToken(subject)
		Expect(err).NotTo(HaveOccurred())

		clock.Advance(24*time.Hour - time.Second)
		_, err = verifier.Verify(tok.Value, token.TypeAccess)
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects tokens issued in the future", func() {
		tok, err := issuer.IssueAccessToken(subject)
		Expect(err).NotTo(HaveOccurred())

		clock.Advance(-time.Minute)
		_, err = verifier.Verify(tok.Value, token.TypeAccess)
		Expect(err).To(MatchError(token.ErrInvalidToken))
	})

	It("detects tampering with the payload or the signature", func() {
		tok, err := issuer.IssueAccessToken(subject)
		Expect(err).NotTo(HaveOccurred())

		_, err = verifier.Verify(tamperSegment(tok.Value, 1), token.TypeAccess)
		Expect(err).To(MatchError(token.ErrInvalidToken))
		_, err = verifier.Verify(tamperSegment(tok.Value, 2), token.TypeAccess)
		Expect(err).To(MatchError(token.ErrInvalidToken))
	})

	It("rejects every single-byte change of the signature", func() {
		tok, err := issuer.IssueAccessToken(subject)
		Expect(err).NotTo(HaveOccurred())
		parts := strings.Split(tok.Value, ".")
		sig, err := base64.RawURLEncoding.DecodeString(parts[2])
		Expect(err).NotTo(HaveOccurred())

		for i := range sig {
			mutated := append([]byte(nil), sig...)
			mutated[i] ^= 0x80
			forged := parts[0] + "." + parts[1] + "." + base64.RawURLEncoding.EncodeToString(mutated)
			_, err := verifier.Verify(forged, token.TypeAccess)
			Expect(err).To(MatchError(token.ErrInvalidToken), "byte %d", i)
		}
	})

	It("rejects every in-place character change of the token text", func() {
		tok, err := issuer.IssueAccessToken(subject)
		Expect(err).NotTo(HaveOccurred())
		const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
		sigStart := strings.LastIndex(tok.Value, ".") + 1
		payloadStart := strings.Index(tok.Value, ".") + 1

		for _, pos := range []int{payloadStart, sigStart - 2, sigStart, len(tok.Value) - 2, len(tok.Value) - 1} {
			for _, ch := range alphabet {
				if byte(ch) == tok.Value[pos] {
					continue
				}
				forged := tok.Value[:pos] + string(ch) + tok.Value[pos+1:]
				_, err := verifier.Verify(forged, token.TypeAccess)
				Expect(err).To(MatchError(token.ErrInvalidToken), "position %d -> %q", pos, ch)
			}
		}

		for pos := sigStart; pos < len(tok.Value); pos++ {
			next := strings.IndexByte(alphabet, tok.Value[pos]) + 1
			forged := tok.Value[:pos] + string(alphabet[next%len(alphabet)]) + tok.Value[pos+1:]
			_, err := verifier.Verify(forged, token.TypeAccess)
			Expect(err).To(MatchError(token.ErrInvalidToken), "signature position %d", pos)
		}
	})

	It("rejects tokens signed with another key", func() {
		other, err := token.NewHMACSigner([]byte("another-secret-another-secret-xx"))
		Expect(err).NotTo(HaveOccurred())
		otherIssuer, err := token.NewIssuer(other, token.Config{Issuer: "hrms-auth"}, token.WithClock(clock.Now))
		Expect(err).NotTo(HaveOccurred())

		tok, err := otherIssuer.IssueAccessToken(subject)
		Expect(err).NotTo(HaveOccurred())
		_, err = verifier.Verify(tok.Value, token.TypeAccess)
		Expect(err).To(MatchError(token.ErrInvalidToken))
	})

	It("rejects the none algorithm and foreign issuers", func() {
		tok, err := issuer.IssueAccessToken(subject)
		Expect(err).NotTo(HaveOccurred())
		parts := strings.Split(tok.Value, ".")

		none := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
		_, err = verifier.Verify(none+"."+parts[1]+".", token.TypeAccess)
		Expect(err).To(MatchError(token.ErrInvalidToken))

		strict, err := token.NewVerifier(signer, "someone-else", token.WithClock(clock.Now))
		Expect(err).NotTo(HaveOccurred())
		_, err = strict.Verify(tok.Value, token.TypeAccess)
		Expect(err).To(MatchError(token.ErrInvalidToken))
	})

	It("rejects malformed input", func() {
		for _, raw := range []string{"", "abc", "a.b", "a.b.c.d", "invalid.token.format"} {
			_, err := verifier.Verify(raw, token.TypeAccess)
			Expect(err).To(MatchError(token.ErrInvalidToken), raw)
		}
	})

	It("strips bearer prefixes", func() {
		Expect(token.StripBearer("Bearer abc.def.ghi")).To(Equal("abc.def.ghi"))
		Expect(token.StripBearer("bearer  abc")).To(Equal("abc"))
		Expect(token.StripBearer("abc")).To(Equal("abc"))
	})
})
