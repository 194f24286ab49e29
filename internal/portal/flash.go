package portal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

// Flash categories
const (
	flashSuccess = "success"
	flashDanger  = "danger"
	flashWarning = "warning"
)

// Flash is a one-time message shown on the next rendered page.
type Flash struct {
	Category string `json:"c"`
	Message  string `json:"m"`
}

type flashState struct {
	incoming bool
	messages []Flash
}

const nonceSize = 24

// flashSealer encrypts and authenticates the flash cookie. Cookies that fail
// to open are ignored.
type flashSealer struct {
	key [32]byte
}

func newFlashSealer(secret string) (*flashSealer, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: flash cookies need a secret", ErrInvalidConfig)
	}
	s := &flashSealer{}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("portal flash cookie"))
	if _, err := io.ReadFull(kdf, s.key[:]); err != nil {
		return nil, fmt.Errorf("deriving flash key: %w", err)
	}
	return s, nil
}

func (s *flashSealer) seal(msgs []Flash) (string, error) {
	raw, err := json.Marshal(msgs)
	if err != nil {
		return "", err
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", err
	}
	box := secretbox.Seal(nonce[:], raw, &nonce, &s.key)
	return base64.RawURLEncoding.EncodeToString(box), nil
}

func (s *flashSealer) open(value string) ([]Flash, bool) {
	box, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil || len(box) < nonceSize+secretbox.Overhead {
		return nil, false
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	raw, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, false
	}
	var msgs []Flash
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, false
	}
	return msgs, true
}

func flashesFrom(r *http.Request) *flashState {
	st, _ := r.Context().Value(flashKey).(*flashState)
	return st
}

func (h *handlers) flash(r *http.Request, category, message string) {
	if st := flashesFrom(r); st != nil {
		st.messages = append(st.messages, Flash{Category: category, Message: message})
	}
}

// takeFlashes returns the pending messages and expires the flash cookie.
func (h *handlers) takeFlashes(w http.ResponseWriter, r *http.Request) []Flash {
	st := flashesFrom(r)
	if st == nil {
		return nil
	}
	msgs := st.messages
	st.messages = nil
	if st.incoming {
		http.SetCookie(w, &http.Cookie{Name: h.config.FlashCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
		st.incoming = false
	}
	return msgs
}

func (h *handlers) saveFlashes(w http.ResponseWriter, r *http.Request) {
	st := flashesFrom(r)
	if st == nil || len(st.messages) == 0 {
		return
	}
	value, err := h.flashes.seal(st.messages)
	if err != nil {
		h.logger.Error("Sealing flash messages failed", "error", err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.config.FlashCookie,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.auth.Config().Session.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// loadFlashes makes the flash cookie of the request available to handlers.
func (h *handlers) loadFlashes(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := &flashState{}
		if c, err := r.Cookie(h.config.FlashCookie); err == nil && c.Value != "" {
			st.incoming = true
			if msgs, ok := h.flashes.open(c.Value); ok {
				st.messages = msgs
			} else {
				h.logger.Debug("Discarded flash cookie that failed to open")
			}
		}
		next.ServeHTTP(w, r.WithContext(withFlashes(r.Context(), st)))
	})
}
