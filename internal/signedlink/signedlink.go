// Package signedlink builds and verifies the signed query strings used by
// result-viewing links.
//
// A link carries email, created_by, exam_id, participant_id, exam_code, ts,
// nonce and sig. created_by and exam_id are UUIDs in unpadded base64url; ts is
// epoch milliseconds; sig is the hex HMAC-SHA256 of the other values, as
// transmitted, joined by newlines in that order.
package signedlink

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultMaxAge     = 5 * time.Minute
	DefaultFutureSkew = time.Minute
)

// Query parameter names.
const (
	ParamEmail         = "email"
	ParamCreatedBy     = "created_by"
	ParamExamID        = "exam_id"
	ParamParticipantID = "participant_id"
	ParamExamCode      = "exam_code"
	ParamTimestamp     = "ts"
	ParamNonce         = "nonce"
	ParamSignature     = "sig"
)

// Fields are the signed values exactly as they appear in the query string.
type Fields struct {
	Email         string
	CreatedBy     string
	ExamID        string
	ParticipantID string
	ExamCode      string
	Timestamp     string
	Nonce         string
}

func (f Fields) values() []string {
	return []string{f.Email, f.CreatedBy, f.ExamID, f.ParticipantID, f.ExamCode, f.Timestamp, f.Nonce}
}

func (f Fields) complete() bool {
	for _, v := range f.values() {
		if v == "" {
			return false
		}
	}
	return true
}

func (f Fields) canonical() []byte {
	return []byte(strings.Join(f.values(), "\n"))
}

// Request is a verified, decoded result-view request.
type Request struct {
	Email         string
	CreatedBy     uuid.UUID
	ExamID        uuid.UUID
	ParticipantID string
	ExamCode      string
	IssuedAt      time.Time
	Nonce         string
}

// LinkInput describes the link to build.
type LinkInput struct {
	Email         string
	CreatedBy     uuid.UUID
	ExamID        uuid.UUID
	ParticipantID string
	ExamCode      string
}

// Codec signs and verifies links with a server-held secret.
type Codec struct {
	secret     []byte
	maxAge     time.Duration
	futureSkew time.Duration
	now        func() time.Time
}

// New creates a Codec. Non-positive durations fall back to the defaults.
func New(secret string, maxAge, futureSkew time.Duration) *Codec {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if futureSkew <= 0 {
		futureSkew = DefaultFutureSkew
	}
	return &Codec{
		secret:     []byte(secret),
		maxAge:     maxAge,
		futureSkew: futureSkew,
		now:        time.Now,
	}
}

// WithClock returns a copy of c that reads time from now.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	cp := *c
	cp.now = now
	return &cp
}

// MaxAge is the accepted age of a link.
func (c *Codec) MaxAge() time.Duration { return c.maxAge }

// IsFresh reports whether ts lies within [now-maxAge, now+futureSkew].
func (c *Codec) IsFresh(ts time.Time) bool {
	now := c.now()
	if now.Sub(ts) > c.maxAge {
		return false
	}
	if ts.Sub(now) > c.futureSkew {
		return false
	}
	return true
}

// Sign returns the hex signature of f.
func (c *Codec) Sign(f Fields) string {
	h := hmac.New(sha256.New, c.secret)
	h.Write(f.canonical())
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature recomputes the signature of f and compares it in constant
// time. Incomplete fields never verify.
func (c *Codec) VerifySignature(f Fields, sig string) bool {
	if !f.complete() || sig == "" {
		return false
	}
	expected := c.Sign(f)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(sig))) == 1
}

// Encode obfuscates id for use in a link.
func Encode(id uuid.UUID) string {
	return base64.RawURLEncoding.EncodeToString(id[:])
}

// Decode reverses Encode.
func Decode(s string) (uuid.UUID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return uuid.Nil, ErrDecode
	}
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return uuid.Nil, ErrBadID
	}
	return id, nil
}

// ParseQuery extracts the signed fields and signature from q.
func ParseQuery(q url.Values) (Fields, string, error) {
	f := Fields{
		Email:         q.Get(ParamEmail),
		CreatedBy:     q.Get(ParamCreatedBy),
		ExamID:        q.Get(ParamExamID),
		ParticipantID: q.Get(ParamParticipantID),
		ExamCode:      q.Get(ParamExamCode),
		Timestamp:     q.Get(ParamTimestamp),
		Nonce:         q.Get(ParamNonce),
	}
	sig := q.Get(ParamSignature)
	if !f.complete() || sig == "" {
		return Fields{}, "", ErrBadQuery
	}
	if _, err := strconv.ParseInt(f.Timestamp, 10, 64); err != nil {
		return Fields{}, "", ErrBadQuery
	}
	return f, sig, nil
}

// Verify runs the full check: query shape, freshness, signature, then id decoding.
func (c *Codec) Verify(q url.Values) (*Request, error) {
	f, sig, err := ParseQuery(q)
	if err != nil {
		return nil, err
	}

	ms, _ := strconv.ParseInt(f.Timestamp, 10, 64)
	issuedAt := time.UnixMilli(ms)
	if !c.IsFresh(issuedAt) {
		return nil, ErrStale
	}

	if !c.VerifySignature(f, sig) {
		return nil, ErrBadSignature
	}

	createdBy, err := Decode(f.CreatedBy)
	if err != nil {
		return nil, err
	}
	examID, err := Decode(f.ExamID)
	if err != nil {
		return nil, err
	}

	return &Request{
		Email:         f.Email,
		CreatedBy:     createdBy,
		ExamID:        examID,
		ParticipantID: f.ParticipantID,
		ExamCode:      f.ExamCode,
		IssuedAt:      issuedAt,
		Nonce:         f.Nonce,
	}, nil
}

// Query builds the signed query values for in, stamped with the current time
// and a random nonce.
func (c *Codec) Query(in LinkInput) (url.Values, error) {
	nonce, err := newNonce()
	if err != nil {
		return nil, err
	}
	f := Fields{
		Email:         in.Email,
		CreatedBy:     Encode(in.CreatedBy),
		ExamID:        Encode(in.ExamID),
		ParticipantID: in.ParticipantID,
		ExamCode:      in.ExamCode,
		Timestamp:     strconv.FormatInt(c.now().UnixMilli(), 10),
		Nonce:         nonce,
	}

	q := url.Values{}
	q.Set(ParamEmail, f.Email)
	q.Set(ParamCreatedBy, f.CreatedBy)
	q.Set(ParamExamID, f.ExamID)
	q.Set(ParamParticipantID, f.ParticipantID)
	q.Set(ParamExamCode, f.ExamCode)
	q.Set(ParamTimestamp, f.Timestamp)
	q.Set(ParamNonce, f.Nonce)
	q.Set(ParamSignature, c.Sign(f))
	return q, nil
}

// Build returns base with the signed query for in appended.
func (c *Codec) Build(base string, in LinkInput) (string, error) {
	q, err := c.Query(in)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func newNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
