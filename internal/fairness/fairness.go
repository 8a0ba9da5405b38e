// Package fairness implements the commit-reveal roll scheme: a secret server
// seed is committed (sha256) before use, each open derives its roll as an
// HMAC over nonce, case and time, and the seed is rotated after every open so
// revealing it lets the player verify past rolls without predicting future ones.
package fairness

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// RollBits is the width of the derived roll (first 12 hex chars of the HMAC).
const RollBits = 48

// NewSeed returns a fresh 32-byte secret seed, hex-encoded.
func NewSeed() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Commitment returns the published sha256 commitment for a seed.
func Commitment(seed string) string {
	h := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(h[:])
}

// Message builds the HMAC input binding a roll to one specific open.
func Message(nonce int64, caseID int64, eventTimeMs int64) string {
	return strconv.FormatInt(nonce, 10) + ":" + strconv.FormatInt(caseID, 10) + ":" + strconv.FormatInt(eventTimeMs, 10)
}

// Roll derives a 48-bit non-negative integer from the seed and message.
func Roll(seed, message string) uint64 {
	mac := hmac.New(sha256.New, []byte(seed))
	mac.Write([]byte(message))
	digest := hex.EncodeToString(mac.Sum(nil))
	v, _ := strconv.ParseUint(digest[:12], 16, 64)
	return v
}

// Verify recomputes a roll from revealed inputs and checks it against the
// published commitment and the recorded roll. This is the third-party audit
// path: everything it needs appears in the open record.
func Verify(seed, commitment string, nonce, caseID, eventTimeMs int64, roll uint64) error {
	if Commitment(seed) != commitment {
		return fmt.Errorf("seed does not match commitment %s", commitment)
	}
	got := Roll(seed, Message(nonce, caseID, eventTimeMs))
	if got != roll {
		return fmt.Errorf("recomputed roll %d does not match recorded roll %d", got, roll)
	}
	return nil
}
