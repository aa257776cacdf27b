package app

import (
	"log/slog"
	"mime"
)

// staticTypes covers the assets served from web/static. Minimal container
// images often ship without /etc/mime.types.
var staticTypes = map[string]string{
	".css":   "text/css; charset=utf-8",
	".js":    "text/javascript; charset=utf-8",
	".svg":   "image/svg+xml",
	".woff2": "font/woff2",
	".ico":   "image/x-icon",
}

func init() {
	for ext, typ := range staticTypes {
		if err := registerStaticType(ext, typ); err != nil {
			slog.Warn("register static mime type", slog.String("ext", ext), slog.Any("error", err))
		}
	}
}

func registerStaticType(ext, typ string) error {
	if mime.TypeByExtension(ext) != "" {
		return nil
	}
	return mime.AddExtensionType(ext, typ)
}
