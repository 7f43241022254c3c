package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// GenerateKey derives "<scope>:<sha256>" from parts. Each part is length-prefixed so
// ("ab", "c") and ("a", "bc") never collide.
func GenerateKey(scope string, parts ...any) string {
	h := sha256.New()
	for _, part := range parts {
		s := fmt.Sprint(part)
		h.Write([]byte(strconv.Itoa(len(s))))
		h.Write([]byte{'|'})
		h.Write([]byte(s))
	}

	return scope + ":" + hex.EncodeToString(h.Sum(nil))
}
