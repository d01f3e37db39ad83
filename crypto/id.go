package crypto

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateID random identifier used to tell servers and connections apart
// in the logs
func GenerateID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
