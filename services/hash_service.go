package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"form-consent/models"
)

// hmacLength is the length of a hex encoded HMAC-SHA256.
const hmacLength = sha256.Size * 2

// HashService issues and verifies HMACs keyed with the application secret.
type HashService struct {
	key []byte
}

func NewHashService(secret string) (*HashService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("hash service: secret must not be empty")
	}
	return &HashService{key: []byte(secret)}, nil
}

// GenerateHMAC returns the hex encoded HMAC of s.
func (h *HashService) GenerateHMAC(s string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(s))
	return hex.EncodeToString(mac.Sum(nil))
}

// AppendHMAC returns s followed by its HMAC.
func (h *HashService) AppendHMAC(s string) string {
	return s + h.GenerateHMAC(s)
}

// ValidateAndStripHMAC verifies a string produced by AppendHMAC and returns
// the original payload.
func (h *HashService) ValidateAndStripHMAC(s string) (string, error) {
	if len(s) < hmacLength {
		return "", ErrInvalidPointer
	}
	payload, mac := s[:len(s)-hmacLength], s[len(s)-hmacLength:]
	if !hmac.Equal([]byte(mac), []byte(h.GenerateHMAC(payload))) {
		return "", ErrInvalidPointer
	}
	return payload, nil
}

// GenerateValidationHash derives the token that proves the right to approve
// or dismiss c. A random nonce keeps hashes of identical submissions apart.
func (h *HashService) GenerateValidationHash(c *models.Consent) string {
	var b strings.Builder
	b.WriteString(c.FormPersistenceIdentifier)
	b.WriteByte('|')
	b.WriteString(c.Email)
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(c.Date.UnixNano(), 10))
	b.WriteByte('|')
	b.Write(c.Data)
	b.WriteByte('|')
	b.WriteString(uuid.NewString())
	return h.GenerateHMAC(b.String())
}

// FilePointer returns the signed pointer to a stored file.
func (h *HashService) FilePointer(fileID uint) string {
	return h.AppendHMAC("file:" + strconv.FormatUint(uint64(fileID), 10))
}

// ResolveFilePointer verifies a pointer from FilePointer and returns the id.
func (h *HashService) ResolveFilePointer(pointer string) (uint, error) {
	payload, err := h.ValidateAndStripHMAC(pointer)
	if err != nil {
		return 0, err
	}
	raw, ok := strings.CutPrefix(payload, "file:")
	if !ok {
		return 0, ErrInvalidPointer
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidPointer
	}
	return uint(id), nil
}
