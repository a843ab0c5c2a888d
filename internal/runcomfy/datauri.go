package runcomfy

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
)

const maxImageBytes = 32 << 20

// PlaceholderImage is a 1x1 transparent PNG used when an image input must be
// filled but its branch of the workflow is switched off.
const PlaceholderImage = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8/5+hHgAHggJ/PchI7wAAAABJRU5ErkJggg=="

// EncodeDataURI renders binary image data as a base64 data URI.
func EncodeDataURI(mimeType string, data []byte) string {
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI parses a base64 data URI produced by EncodeDataURI.
func DecodeDataURI(uri string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(uri), "data:")
	if !ok {
		return nil, "", errors.New("runcomfy: not a data uri")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", errors.New("runcomfy: data uri missing payload")
	}
	mimeType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return nil, "", errors.New("runcomfy: data uri is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("runcomfy: decode data uri: %w", err)
	}
	return data, mimeType, nil
}

// IsDataURI reports whether s already embeds its image data.
func IsDataURI(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "data:")
}

// EncodeImageURL downloads an image and re-encodes it as a data URI, for image
// inputs that only accept embedded data. Data URIs are returned unchanged.
func (c *Client) EncodeImageURL(ctx context.Context, imageURL string) (string, error) {
	const op = "encode image"
	imageURL = strings.TrimSpace(imageURL)
	if IsDataURI(imageURL) {
		return imageURL, nil
	}
	data, mimeType, err := c.Download(ctx, imageURL)
	if err != nil {
		return "", &Error{Op: op, Kind: ErrImageFetch, Err: err}
	}
	return EncodeDataURI(mimeType, data), nil
}

// Download fetches an image without credentials and returns its bytes and
// media type.
func (c *Client) Download(ctx context.Context, imageURL string) ([]byte, string, error) {
	parsed, err := url.Parse(strings.TrimSpace(imageURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, "", fmt.Errorf("invalid image url: %q", imageURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	return data, mediaType(resp.Header.Get("Content-Type"), data), nil
}

// Load returns the bytes of a result image, decoding data URIs in place and
// downloading anything else.
func (c *Client) Load(ctx context.Context, src string) ([]byte, string, error) {
	if IsDataURI(src) {
		return DecodeDataURI(src)
	}
	return c.Download(ctx, src)
}

var imageExtensions = map[string]string{
	".png":  ".png",
	".jpg":  ".jpg",
	".jpeg": ".jpg",
	".webp": ".webp",
	".gif":  ".gif",
}

// ImageFileName names the index-th image of a result, e.g. "scene-01.png".
// The extension comes from the URL path when it is a known image type, else
// from mimeType.
func ImageFileName(prefix string, index int, src, mimeType string) string {
	ext := ""
	if !IsDataURI(src) {
		if u, err := url.Parse(strings.TrimSpace(src)); err == nil {
			ext = imageExtensions[strings.ToLower(path.Ext(u.Path))]
		}
	}
	if ext == "" {
		switch mimeType {
		case "image/jpeg":
			ext = ".jpg"
		case "image/webp":
			ext = ".webp"
		case "image/gif":
			ext = ".gif"
		default:
			ext = ".png"
		}
	}
	return fmt.Sprintf("%s-%02d%s", prefix, index+1, ext)
}

func mediaType(header string, data []byte) string {
	if parsed, _, err := mime.ParseMediaType(header); err == nil && strings.HasPrefix(parsed, "image/") {
		return parsed
	}
	detected, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return detected
}
