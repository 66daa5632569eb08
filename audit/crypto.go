package audit

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
)

// encryptRecord encrypts plaintext for every recipient in recipientStrs,
// each an age X25519 public-key string. The orchestrator holds only public
// recipients at write time; decryption is an operator/reviewer action
// performed out of band with the matching identity.
func encryptRecord(plaintext []byte, recipientStrs []string) ([]byte, error) {
	recipients := make([]age.Recipient, 0, len(recipientStrs))
	for _, r := range recipientStrs {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		parsed, err := age.ParseX25519Recipient(r)
		if err != nil {
			return nil, fmt.Errorf("invalid audit recipient %q: %w", r, err)
		}
		recipients = append(recipients, parsed)
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("no audit recipients configured")
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipients...)
	if err != nil {
		return nil, fmt.Errorf("open age writer: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("write audit plaintext: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close age writer: %w", err)
	}
	return buf.Bytes(), nil
}

// decryptRecord reverses encryptRecord given the matching X25519 identity.
// Used by operator tooling, not by the orchestrator's write path.
func decryptRecord(ciphertext []byte, identity *age.X25519Identity) ([]byte, error) {
	if identity == nil {
		return nil, fmt.Errorf("identity required")
	}
	r, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("open age reader: %w", err)
	}
	return io.ReadAll(r)
}

// GenerateIdentity creates a new X25519 identity for an audit reviewer.
func GenerateIdentity() (*age.X25519Identity, error) {
	return age.GenerateX25519Identity()
}
