package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"toolhub/internal/domain"
)

// ToolSetETag returns a content hash of the given tools, independent of map
// order, and logs on failure.
func ToolSetETag(logger *zap.Logger, tools map[string]*domain.RegisteredTool) string {
	return hashWithLogger(logger, "tool set", func() (string, error) {
		names := make([]string, 0, len(tools))
		for name := range tools {
			names = append(names, name)
		}
		sort.Strings(names)
		infos := make([]domain.ToolInfo, 0, len(names))
		for _, name := range names {
			infos = append(infos, tools[name].Info())
		}
		return HashJSON(infos)
	})
}

// HashJSON hashes the JSON encoding of v.
func HashJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func hashWithLogger(logger *zap.Logger, label string, fn func() (string, error)) string {
	etag, err := fn()
	if err != nil {
		if logger != nil {
			logger.Warn(fmt.Sprintf("%s hash failed", label), zap.Error(err))
		}
		return ""
	}
	return etag
}
