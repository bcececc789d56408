// Package sniff infers the true file extension of downloaded bytes from
// a layered evidence chain: URL path suffix, HTTP headers, then magic
// bytes. The page's own claims are cheap but sometimes wrong or absent
// for dynamically generated attachment endpoints, so byte inspection is
// the ground truth of last resort.
package sniff

import (
	"bytes"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// mimeExt maps Content-Type values to extensions.
var mimeExt = map[string]string{
	"application/pdf":    "pdf",
	"application/msword": "doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "docx",
	"application/vnd.ms-excel": "xls",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": "xlsx",
	"application/vnd.ms-powerpoint":                                     "ppt",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": "pptx",
	"text/plain":               "txt",
	"text/html":                "html",
	"text/css":                 "css",
	"text/javascript":          "js",
	"application/javascript":   "js",
	"application/json":         "json",
	"application/xml":          "xml",
	"text/xml":                 "xml",
	"image/jpeg":               "jpg",
	"image/png":                "png",
	"image/gif":                "gif",
	"image/svg+xml":            "svg",
	"application/zip":          "zip",
	"application/x-rar-compressed": "rar",
	"application/vnd.rar":          "rar",
	"application/x-7z-compressed":  "7z",
}

// Extension infers the file extension for a downloaded resource.
// Priority: URL path suffix, Content-Type header, Content-Disposition
// filename, magic bytes. Returns "" when nothing matches; callers
// substitute a generic binary extension. Pure and deterministic: the
// same (url, header, prefix) triple always yields the same result.
func Extension(rawURL string, header http.Header, prefix []byte) string {
	if ext := fromURL(rawURL); ext != "" {
		return ext
	}
	if ext := fromContentType(header.Get("Content-Type")); ext != "" {
		return ext
	}
	if ext := fromDisposition(header.Get("Content-Disposition")); ext != "" {
		return ext
	}
	return fromMagic(prefix)
}

// fromURL accepts a path suffix only if it is alphanumeric and at most 5
// characters, which filters out opaque ids that merely contain a dot.
func fromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	ext := strings.TrimPrefix(path.Ext(u.Path), ".")
	ext = strings.ToLower(ext)
	if ext == "" || len(ext) > 5 {
		return ""
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}

func fromContentType(ct string) string {
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(strings.SplitN(ct, ";", 2)[0]))
	}
	return mimeExt[mt]
}

func fromDisposition(cd string) string {
	if cd == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(cd)
	if err != nil {
		return ""
	}
	name := params["filename"]
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if ext == "" || len(ext) > 5 {
		return ""
	}
	return ext
}

// fromMagic identifies the format from the response byte prefix.
func fromMagic(prefix []byte) string {
	switch {
	case bytes.HasPrefix(prefix, []byte("%PDF")):
		return "pdf"
	case bytes.HasPrefix(prefix, []byte("PK\x03\x04")):
		return sniffZip(prefix)
	case bytes.HasPrefix(prefix, []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}):
		// Legacy OLE compound document.
		return "doc"
	case bytes.HasPrefix(prefix, []byte{0x89, 'P', 'N', 'G'}):
		return "png"
	case bytes.HasPrefix(prefix, []byte{0xFF, 0xD8, 0xFF}):
		return "jpg"
	case bytes.HasPrefix(prefix, []byte("GIF87a")), bytes.HasPrefix(prefix, []byte("GIF89a")):
		return "gif"
	case bytes.HasPrefix(prefix, []byte("Rar!")):
		return "rar"
	case bytes.HasPrefix(prefix, []byte("7z\xBC\xAF\x27\x1C")):
		return "7z"
	}

	head := bytes.ToLower(bytes.TrimLeft(prefix, " \t\r\n"))
	if bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html")) {
		return "html"
	}
	return ""
}

// sniffZip distinguishes OOXML documents from generic archives by the
// interior directory names recorded in the zip's local file headers.
func sniffZip(prefix []byte) string {
	switch {
	case bytes.Contains(prefix, []byte("word/")):
		return "docx"
	case bytes.Contains(prefix, []byte("xl/")):
		return "xlsx"
	case bytes.Contains(prefix, []byte("ppt/")):
		return "pptx"
	case bytes.Contains(prefix, []byte("[Content_Types].xml")):
		// OOXML container whose first entry is the content-types part;
		// without a marker directory in the prefix it stays a zip.
		return "zip"
	default:
		return "zip"
	}
}
