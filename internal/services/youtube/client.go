// Package youtube implements the upload client against the YouTube Data API
// v3 resumable upload protocol. Authentication uses a pre-issued OAuth access
// token; the interactive consent flow is handled outside the pipeline.
package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"tracksmith/internal/services"
)

const (
	defaultBaseURL   = "https://www.googleapis.com/youtube/v3"
	defaultUploadURL = "https://www.googleapis.com/upload/youtube/v3"
)

// UploadRequest describes one video upload.
type UploadRequest struct {
	VideoPath       string
	ThumbnailPath   string
	Title           string
	Description     string
	Tags            []string
	CategoryID      string
	Privacy         string
	DefaultLanguage string
	MadeForKids     bool
}

// UploadResult reports the provider-assigned identifiers.
type UploadResult struct {
	VideoID           string
	ThumbnailUploaded bool
}

// Client talks to the YouTube Data API.
type Client struct {
	baseURL     string
	uploadURL   string
	accessToken string
	httpc       *http.Client
}

// Config holds client construction settings.
type Config struct {
	AccessToken    string
	BaseURL        string
	UploadURL      string
	TimeoutSeconds int
}

// New builds a client.
func New(cfg Config) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	upload := strings.TrimRight(strings.TrimSpace(cfg.UploadURL), "/")
	if upload == "" {
		upload = defaultUploadURL
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Client{
		baseURL:     base,
		uploadURL:   upload,
		accessToken: cfg.AccessToken,
		httpc:       &http.Client{Timeout: timeout},
	}
}

type videoResource struct {
	Snippet struct {
		Title           string   `json:"title"`
		Description     string   `json:"description"`
		Tags            []string `json:"tags,omitempty"`
		CategoryID      string   `json:"categoryId,omitempty"`
		DefaultLanguage string   `json:"defaultLanguage,omitempty"`
	} `json:"snippet"`
	Status struct {
		PrivacyStatus           string `json:"privacyStatus"`
		SelfDeclaredMadeForKids bool   `json:"selfDeclaredMadeForKids"`
	} `json:"status"`
}

// Upload performs a resumable upload: the metadata POST yields a session URL
// and the video bytes are PUT to it in one request.
func (c *Client) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	file, err := os.Open(req.VideoPath)
	if err != nil {
		return UploadResult{}, services.TagProvider(services.ProviderYouTube,
			services.Wrap(services.ErrValidation, "upload", "open_video", "video file missing", err))
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return UploadResult{}, fmt.Errorf("youtube upload: stat video: %w", err)
	}

	sessionURL, err := c.startSession(ctx, req, info.Size())
	if err != nil {
		return UploadResult{}, err
	}
	videoID, err := c.uploadBytes(ctx, sessionURL, file, info.Size())
	if err != nil {
		return UploadResult{}, err
	}

	result := UploadResult{VideoID: videoID}
	if strings.TrimSpace(req.ThumbnailPath) != "" {
		if err := c.AttachThumbnail(ctx, videoID, req.ThumbnailPath); err != nil {
			// The video is live at this point. Callers decide whether a
			// missing thumbnail fails the step.
			return result, err
		}
		result.ThumbnailUploaded = true
	}
	return result, nil
}

func (c *Client) startSession(ctx context.Context, req UploadRequest, size int64) (string, error) {
	var resource videoResource
	resource.Snippet.Title = req.Title
	resource.Snippet.Description = req.Description
	resource.Snippet.Tags = req.Tags
	resource.Snippet.CategoryID = req.CategoryID
	resource.Snippet.DefaultLanguage = req.DefaultLanguage
	resource.Status.PrivacyStatus = req.Privacy
	resource.Status.SelfDeclaredMadeForKids = req.MadeForKids

	payload, err := json.Marshal(resource)
	if err != nil {
		return "", fmt.Errorf("youtube upload: encode metadata: %w", err)
	}

	endpoint := c.uploadURL + "/videos?uploadType=resumable&part=snippet,status"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("youtube upload: build session request: %w", err)
	}
	c.authorize(httpReq)
	httpReq.Header.Set("Content-Type", "application/json; charset=UTF-8")
	httpReq.Header.Set("X-Upload-Content-Type", "video/mp4")
	httpReq.Header.Set("X-Upload-Content-Length", fmt.Sprintf("%d", size))

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return "", c.wrapHTTP("start_session", "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", services.NewStatusError(services.ProviderYouTube, "start_session", resp.StatusCode, string(body))
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return "", c.wrapHTTP("start_session", "response missing session location", nil)
	}
	return location, nil
}

func (c *Client) uploadBytes(ctx context.Context, sessionURL string, body io.Reader, size int64) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, sessionURL, body)
	if err != nil {
		return "", fmt.Errorf("youtube upload: build upload request: %w", err)
	}
	httpReq.ContentLength = size
	c.authorize(httpReq)
	httpReq.Header.Set("Content-Type", "video/mp4")

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return "", c.wrapHTTP("upload_bytes", "request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", c.wrapHTTP("upload_bytes", "read response", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", services.NewStatusError(services.ProviderYouTube, "upload_bytes", resp.StatusCode, string(respBody))
	}

	var decoded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &decoded); err != nil || strings.TrimSpace(decoded.ID) == "" {
		return "", c.wrapHTTP("upload_bytes", "response missing video id", err)
	}
	return decoded.ID, nil
}

// AttachThumbnail uploads a custom thumbnail for an existing video.
func (c *Client) AttachThumbnail(ctx context.Context, videoID, imagePath string) error {
	file, err := os.Open(imagePath)
	if err != nil {
		return services.TagProvider(services.ProviderYouTube,
			services.Wrap(services.ErrValidation, "upload", "attach_thumbnail", "thumbnail file missing", err))
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("youtube thumbnail: stat image: %w", err)
	}

	endpoint := c.uploadURL + "/thumbnails/set?videoId=" + url.QueryEscape(videoID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, file)
	if err != nil {
		return fmt.Errorf("youtube thumbnail: build request: %w", err)
	}
	httpReq.ContentLength = info.Size()
	c.authorize(httpReq)
	httpReq.Header.Set("Content-Type", "image/png")

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return c.wrapHTTP("attach_thumbnail", "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return services.NewStatusError(services.ProviderYouTube, "attach_thumbnail", resp.StatusCode, string(body))
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
}

func (c *Client) wrapHTTP(operation, message string, err error) error {
	return services.TagProvider(services.ProviderYouTube,
		services.Wrap(services.ErrProviderHTTP, "upload", operation, message, err))
}
