// Package initdata verifies the signed launch payload ("initData") that Telegram passes to a
// Mini App. The payload is a query string; its hash field is an HMAC-SHA256 over the other
// fields keyed by a secret derived from the bot token.
package initdata

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DevBypassHash is the sentinel hash accepted without a signature check when the
// validator is built with WithDevBypass(true).
const DevBypassHash = "dev_mock_hash"

// DefaultMaxAge is the default validity window of a payload, counted from auth_date.
const DefaultMaxAge = 24 * time.Hour

const webAppDataKey = "WebAppData"

// ErrInvalid wraps every verification failure.
var ErrInvalid = errors.New("initdata: invalid init data")

var (
	ErrMalformed         = fmt.Errorf("%w: malformed payload", ErrInvalid)
	ErrMissingHash       = fmt.Errorf("%w: missing hash", ErrInvalid)
	ErrMissingAuthDate   = fmt.Errorf("%w: missing auth_date", ErrInvalid)
	ErrSignatureMismatch = fmt.Errorf("%w: signature mismatch", ErrInvalid)
	ErrExpired           = fmt.Errorf("%w: expired", ErrInvalid)
	ErrMissingUser       = fmt.Errorf("%w: missing user", ErrInvalid)
)

// User is the Telegram account that launched the Mini App.
type User struct {
	ID              int64  `json:"id"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name,omitempty"`
	Username        string `json:"username,omitempty"`
	LanguageCode    string `json:"language_code,omitempty"`
	IsPremium       bool   `json:"is_premium,omitempty"`
	AllowsWriteToPM bool   `json:"allows_write_to_pm,omitempty"`
	PhotoURL        string `json:"photo_url,omitempty"`
}

// InitData is a decoded launch payload.
type InitData struct {
	QueryID      string
	User         *User
	AuthDate     time.Time
	StartParam   string
	ChatType     string
	ChatInstance string
	Hash         string
}

// Validator checks payloads signed for one bot.
type Validator struct {
	botToken       string
	maxAge         time.Duration
	allowDevBypass bool
	now            func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithMaxAge overrides the validity window.
func WithMaxAge(maxAge time.Duration) Option {
	return func(v *Validator) {
		if maxAge > 0 {
			v.maxAge = maxAge
		}
	}
}

// WithDevBypass enables acceptance of DevBypassHash. Never enable it in production.
func WithDevBypass(enabled bool) Option {
	return func(v *Validator) {
		v.allowDevBypass = enabled
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		v.now = now
	}
}

// NewValidator returns a Validator for payloads signed with botToken.
func NewValidator(botToken string, opts ...Option) *Validator {
	v := &Validator{
		botToken: botToken,
		maxAge:   DefaultMaxAge,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// DevBypassEnabled reports whether the sentinel hash is accepted.
func (v *Validator) DevBypassEnabled() bool {
	return v.allowDevBypass
}

// Validate verifies the signature and age of raw and returns the decoded payload.
// The payload must carry a user.
func (v *Validator) Validate(raw string) (*InitData, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, ErrMalformed
	}

	hash := values.Get("hash")
	if hash == "" {
		return nil, ErrMissingHash
	}

	bypass := v.allowDevBypass && hash == DevBypassHash
	if !bypass {
		if values.Get("auth_date") == "" {
			return nil, ErrMissingAuthDate
		}

		expected := Sign(values, v.botToken)
		if !hmac.Equal([]byte(expected), []byte(hash)) {
			return nil, ErrSignatureMismatch
		}
	}

	data, err := decode(values)
	if err != nil {
		return nil, err
	}

	if !bypass && v.now().Sub(data.AuthDate) >= v.maxAge {
		return nil, ErrExpired
	}

	if data.User == nil || data.User.ID == 0 {
		return nil, ErrMissingUser
	}

	return data, nil
}

// Parse decodes raw without verifying it.
func Parse(raw string) (*InitData, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, ErrMalformed
	}
	return decode(values)
}

func decode(values url.Values) (*InitData, error) {
	data := &InitData{
		QueryID:      values.Get("query_id"),
		StartParam:   values.Get("start_param"),
		ChatType:     values.Get("chat_type"),
		ChatInstance: values.Get("chat_instance"),
		Hash:         values.Get("hash"),
	}

	if authDate := values.Get("auth_date"); authDate != "" {
		seconds, err := strconv.ParseInt(authDate, 10, 64)
		if err != nil {
			return nil, ErrMalformed
		}
		data.AuthDate = time.Unix(seconds, 0)
	}

	if rawUser := values.Get("user"); rawUser != "" {
		var user User
		if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
			return nil, ErrMalformed
		}
		data.User = &user
	}

	return data, nil
}

// DataCheckString renders every field except hash as key=value lines sorted by key.
func DataCheckString(values url.Values) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		if key != "hash" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		for _, value := range values[key] {
			pairs = append(pairs, key+"="+value)
		}
	}
	return strings.Join(pairs, "\n")
}

// SecretKey derives the signing key: HMAC-SHA256 keyed with "WebAppData" over the bot token.
func SecretKey(botToken string) []byte {
	mac := hmac.New(sha256.New, []byte(webAppDataKey))
	mac.Write([]byte(botToken))
	return mac.Sum(nil)
}

// Sign returns the hex hash Telegram would attach to values for botToken.
func Sign(values url.Values, botToken string) string {
	mac := hmac.New(sha256.New, SecretKey(botToken))
	mac.Write([]byte(DataCheckString(values)))
	return hex.EncodeToString(mac.Sum(nil))
}
