// Package auth verifies Telegram logins and issues API tokens.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chronoflow/chronoflow/internal/schedule"
)

// Login errors.
var (
	ErrMissingHash  = errors.New("login payload has no hash")
	ErrInvalidHash  = errors.New("login payload hash does not match")
	ErrLoginExpired = errors.New("login payload is too old")
	ErrLoginFuture  = errors.New("login payload is dated in the future")
	ErrNoBotToken   = errors.New("telegram bot token is not configured")
)

// maxClockSkew is how far auth_date may run ahead of the server clock.
const maxClockSkew = time.Minute

// LoginData is the payload produced by the Telegram Login Widget.
type LoginData struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	PhotoURL  string `json:"photo_url,omitempty"`
	AuthDate  int64  `json:"auth_date"`
	Hash      string `json:"hash"`
}

// User converts the payload to a user profile keyed by Telegram ID.
func (d LoginData) User() *schedule.User {
	return &schedule.User{
		TelegramID: d.ID,
		Username:   d.Username,
		FirstName:  d.FirstName,
		LastName:   d.LastName,
		PhotoURL:   d.PhotoURL,
	}
}

// checkString builds the sorted "key=value" lines Telegram signs.
// Empty optional fields are omitted.
func (d LoginData) checkString() string {
	fields := map[string]string{
		"id":        strconv.FormatInt(d.ID, 10),
		"auth_date": strconv.FormatInt(d.AuthDate, 10),
	}
	for k, v := range map[string]string{
		"first_name": d.FirstName,
		"last_name":  d.LastName,
		"username":   d.Username,
		"photo_url":  d.PhotoURL,
	} {
		if v != "" {
			fields[k] = v
		}
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = k + "=" + fields[k]
	}
	return strings.Join(lines, "\n")
}

// Sign computes the widget hash for d with the given bot token.
func (d LoginData) Sign(botToken string) string {
	secret := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(d.checkString()))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyTelegramLogin checks the payload signature and, when maxAge is
// positive, that it was issued no more than maxAge before now. Payloads
// dated more than maxClockSkew after now are always rejected.
func VerifyTelegramLogin(data LoginData, botToken string, maxAge time.Duration, now time.Time) error {
	if botToken == "" {
		return ErrNoBotToken
	}
	if data.Hash == "" {
		return ErrMissingHash
	}

	got, err := hex.DecodeString(strings.ToLower(data.Hash))
	if err != nil {
		return ErrInvalidHash
	}
	want, _ := hex.DecodeString(data.Sign(botToken))
	if !hmac.Equal(got, want) {
		return ErrInvalidHash
	}

	issued := time.Unix(data.AuthDate, 0)
	if issued.Sub(now) > maxClockSkew {
		return ErrLoginFuture
	}
	if maxAge > 0 && now.Sub(issued) > maxAge {
		return ErrLoginExpired
	}
	return nil
}
