package transcribe

import (
	"mime"
	"path/filepath"
	"sort"
	"strings"
)

// FallbackExtension is used when neither the filename nor the MIME type
// identifies a container. Browser MediaRecorder uploads are webm.
const FallbackExtension = ".webm"

// mimeExtensions maps declared audio MIME types to the extension the engine
// needs to sniff the container. Never mutated after init.
var mimeExtensions = map[string]string{
	"audio/webm":  ".webm",
	"audio/ogg":   ".ogg",
	"audio/opus":  ".opus",
	"audio/mpeg":  ".mp3",
	"audio/mp3":   ".mp3",
	"audio/wav":   ".wav",
	"audio/x-wav": ".wav",
	"audio/wave":  ".wav",
	"audio/mp4":   ".mp4",
	"video/mp4":   ".mp4",
	"audio/x-m4a": ".m4a",
	"audio/aac":   ".aac",
}

// ResolveExtension picks the extension for an uploaded audio file that has
// none. The original filename wins, then the MIME table, then FallbackExtension.
// The result is never empty.
func ResolveExtension(mimeType, originalName string) string {
	if ext := filepath.Ext(originalName); ext != "" && ext != "." {
		return ext
	}
	if ext, ok := mimeExtensions[normalizeMIME(mimeType)]; ok {
		return ext
	}
	return FallbackExtension
}

// SupportedMIMETypes returns the MIME types with a known extension, sorted.
func SupportedMIMETypes() []string {
	types := make([]string, 0, len(mimeExtensions))
	for t := range mimeExtensions {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// normalizeMIME lowercases the media type and drops parameters such as
// "codecs=opus" that browsers append.
func normalizeMIME(mimeType string) string {
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		return ""
	}
	if mediaType, _, err := mime.ParseMediaType(mimeType); err == nil {
		return mediaType
	}
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
