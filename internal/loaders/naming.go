package loaders

import (
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/minio/crc64nvme"
	"github.com/mr-tron/base58"
)

const DefaultNameTemplate = "[hash].[ext]"

var placeholderPattern = regexp.MustCompile(`\[([a-z]+)((?::[a-z0-9]+)*)\]`)

// Interpolate expands a file name template for the resource at path.
//
//	[name]         base name without extension
//	[ext]          extension without the dot
//	[path]         directory relative to context, with a trailing slash
//	[hash]         content hash, also [contenthash]
//	[hash:N]       first N characters of the hash
//	[hash:D:N]     hash in digest D (hex or base58)
func Interpolate(template, path, context string, content []byte) (string, error) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)

	var firstErr error
	out := placeholderPattern.ReplaceAllStringFunc(template, func(token string) string {
		m := placeholderPattern.FindStringSubmatch(token)
		name, args := m[1], strings.Split(strings.TrimPrefix(m[2], ":"), ":")
		if m[2] == "" {
			args = nil
		}

		switch name {
		case "name":
			return strings.TrimSuffix(base, ext)
		case "ext":
			return strings.TrimPrefix(ext, ".")
		case "path":
			return relativeDir(path, context)
		case "hash", "contenthash":
			h, err := contentHash(content, args)
			if err != nil && firstErr == nil {
				firstErr = err
			}
			return h
		default:
			return token
		}
	})
	if firstErr != nil {
		return "", fmt.Errorf("name template %q: %w", template, firstErr)
	}
	return out, nil
}

func relativeDir(path, context string) string {
	dir := filepath.Dir(path)
	if context != "" {
		if rel, err := filepath.Rel(context, dir); err == nil && !strings.HasPrefix(rel, "..") {
			dir = rel
		}
	}
	if dir == "." || filepath.IsAbs(dir) {
		return ""
	}
	return filepath.ToSlash(dir) + "/"
}

// contentHash hashes content with CRC-64/NVME and encodes the digest.
func contentHash(content []byte, args []string) (string, error) {
	digest := "hex"
	length := 0

	switch len(args) {
	case 0:
	case 1:
		if n, err := strconv.Atoi(args[0]); err == nil {
			length = n
		} else {
			digest = args[0]
		}
	case 2:
		digest = args[0]
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return "", fmt.Errorf("invalid hash length %q", args[1])
		}
		length = n
	default:
		return "", fmt.Errorf("too many hash arguments: %v", args)
	}

	h := crc64nvme.New()
	h.Write(content)
	sum := h.Sum(nil)

	var encoded string
	switch digest {
	case "hex":
		encoded = hex.EncodeToString(sum)
	case "base58":
		encoded = base58.Encode(sum)
	default:
		return "", fmt.Errorf("unsupported hash digest %q", digest)
	}

	if length > 0 && length < len(encoded) {
		encoded = encoded[:length]
	}
	return encoded, nil
}
