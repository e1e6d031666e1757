package tokens

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenMissing   = errors.New("token missing")
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenExpired   = errors.New("token expired")
)

const DefaultTTL = 15 * time.Minute

type AccessClaims struct {
	jwt.RegisteredClaims
}

// Token is a freshly minted credential. Raw is what the client receives.
type Token struct {
	Raw       string
	JTI       string
	SubjectID uint
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Verified is what survives signature and expiry checks.
type Verified struct {
	SubjectID uint
	JTI       string
	ExpiresAt time.Time
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret []byte, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: secret, ttl: ttl, now: time.Now}
}

// WithClock replaces the time source. Used by tests to move past expiry.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	cp := *i
	cp.now = now
	return &cp
}

func (i *Issuer) TTL() time.Duration { return i.ttl }

func (i *Issuer) Issue(subjectID uint) (Token, error) {
	if len(i.secret) == 0 {
		return Token{}, errors.New("jwt secret not configured")
	}
	if subjectID == 0 {
		return Token{}, errors.New("subject id is zero")
	}

	now := i.now().UTC().Truncate(time.Second)
	exp := now.Add(i.ttl)
	jti := uuid.NewString()

	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(subjectID), 10),
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}

	return Token{
		Raw:       raw,
		JTI:       jti,
		SubjectID: subjectID,
		IssuedAt:  now,
		ExpiresAt: exp,
	}, nil
}

func (i *Issuer) Verify(raw string) (Verified, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Verified{}, ErrTokenMissing
	}

	var claims AccessClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Verified{}, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return Verified{}, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	sub, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || sub == 0 {
		return Verified{}, fmt.Errorf("%w: bad subject %q", ErrTokenMalformed, claims.Subject)
	}
	if claims.ID == "" {
		return Verified{}, fmt.Errorf("%w: missing jti", ErrTokenMalformed)
	}

	return Verified{
		SubjectID: uint(sub),
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
