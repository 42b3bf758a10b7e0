// Package fingerprint derives deterministic cache keys from document
// content, the effective prompt, and the active policy table. Content
// fingerprints are sampled rather than hashed in full so that
// multi-megabyte payloads stay cheap to key.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/transcribe-cli/internal/model"
)

// schemaVersion invalidates every prior cache entry when the key layout
// itself changes.
const schemaVersion = "tq3"

const sampleChars = 512

// Digest returns a hex digest of s for key derivation. Collision
// resistance is a nicety here, not a security boundary.
func Digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:16])
}

// DJB2 is a fast non-cryptographic rolling hash, used to fold long encoded
// payload samples into image-sequence fingerprints without a full pass.
func DJB2(s string) string {
	var h uint64 = 5381
	for i := 0; i < len(s); i++ {
		h = h*33 + uint64(s[i])
	}
	return fmt.Sprintf("%016x", h)
}

// Key composes the final cache key from the policy hash, the effective
// prompt text, and a content fingerprint.
func Key(policyHash, prompt, contentFP string) string {
	return schemaVersion + ":" + policyHash + ":" + Digest(prompt) + ":" + Digest(contentFP)
}

// PolicyHash digests the serialized policy table plus the output contract
// text, so any policy or prompt-contract change invalidates all prior
// entries without an explicit version bump.
func PolicyHash(policies any, contract string) (string, error) {
	raw, err := yaml.Marshal(policies)
	if err != nil {
		return "", eris.Wrap(err, "fingerprint: marshal policies")
	}
	return Digest(string(raw) + "\n---\n" + contract), nil
}

// Document builds the sampled content fingerprint for a single encoded
// document: byte length plus head, middle, and tail samples of the encoded
// payload. Deliberately not a full-content hash.
func Document(doc model.Document) string {
	enc := doc.Encoded
	head := sample(enc, 0)
	mid := sample(enc, midOffset(len(enc)))
	tail := ""
	if n := len(enc); n > sampleChars {
		tail = enc[n-sampleChars:]
	} else {
		tail = enc
	}
	return strings.Join([]string{
		fmt.Sprintf("%d", doc.ByteSize),
		head,
		mid,
		tail,
	}, "|")
}

// Images builds the content fingerprint for an ordered image sequence.
// Per image it folds the ordinal index, file metadata, encoded length, and
// cheap head/tail samples of the encoded data.
func Images(images []model.ImageInput) string {
	var sb strings.Builder
	for i, img := range images {
		enc := img.Encoded
		head := enc
		tail := enc
		if len(enc) > 64 {
			head = enc[:64]
			tail = enc[len(enc)-64:]
		}
		fmt.Fprintf(&sb, "%d|%s|%s|%d|%d|%d|%s|%s\n",
			i, img.Name, img.MimeType, img.ByteSize, img.ModTime.UnixMilli(),
			len(enc), DJB2(head), DJB2(tail),
		)
	}
	return sb.String()
}

func sample(s string, off int) string {
	if off >= len(s) {
		return s
	}
	end := off + sampleChars
	if end > len(s) {
		end = len(s)
	}
	return s[off:end]
}

func midOffset(n int) int {
	off := n/2 - sampleChars/2
	if off < 0 {
		return 0
	}
	return off
}
