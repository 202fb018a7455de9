package comm

import (
	"fmt"
	"strings"
)

const (
	topicPrefix     = "comm/"
	bufferKeyPrefix = "buffer"
)

// InboxTopic is the single topic a node for identity subscribes to. External
// publishers targeting identity must use this exact shape.
func InboxTopic(identity string) string {
	return topicPrefix + identity
}

// IdentityFromTopic extracts the identity from an inbox topic.
func IdentityFromTopic(topic string) (string, bool) {
	if !strings.HasPrefix(topic, topicPrefix) || len(topic) == len(topicPrefix) {
		return "", false
	}
	return topic[len(topicPrefix):], true
}

// BufferKey returns the store key "buffer:<identity>:<destination>".
func BufferKey(identity, destination string) string {
	return fmt.Sprintf("%s:%s:%s", bufferKeyPrefix, identity, destination)
}

// BufferKeyPattern matches every buffer key owned by identity.
func BufferKeyPattern(identity string) string {
	return fmt.Sprintf("%s:%s:*", bufferKeyPrefix, escapeGlob(identity))
}

// ParseBufferKey splits a buffer key into identity and destination. Keys that
// do not have exactly three colon-separated parts are rejected.
func ParseBufferKey(key string) (identity, destination string, err error) {
	parts := strings.Split(key, ":")
	if len(parts) != 3 || parts[0] != bufferKeyPrefix || parts[1] == "" || parts[2] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrBufferKeyShape, key)
	}
	return parts[1], parts[2], nil
}

// escapeGlob escapes Redis glob metacharacters.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
