package frontmatter

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/inful/mdfp"
)

// FingerprintField is the header key holding the content fingerprint.
const FingerprintField = mdfp.FingerprintField

// UIDField is the header key holding the stable document id.
const UIDField = "uid"

// Fingerprint hashes the header fields and body of a post. The fingerprint
// and uid fields are excluded, so adding either does not change the value,
// and key order does not matter.
func Fingerprint(fields map[string]any, body []byte) (string, error) {
	if fields == nil {
		return "", errors.New("fields map is nil")
	}

	hashed := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == FingerprintField || k == UIDField {
			continue
		}
		hashed[k] = v
	}

	header := ""
	if len(hashed) > 0 {
		serialized, err := SerializeYAML(hashed, nil)
		if err != nil {
			return "", err
		}
		header = strings.TrimSuffix(string(serialized), "\n")
	}
	return mdfp.CalculateFingerprintFromParts(header, string(body)), nil
}

// TopicUID derives a stable name-based UUID from a topic's canonical URL, so
// re-importing the same topic yields the same id.
func TopicUID(topicURL string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(topicURL)).String()
}
