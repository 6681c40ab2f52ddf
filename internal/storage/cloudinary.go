package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/repohub/repohub-backend/internal/config"
)

// CloudinaryClient uploads bodies as Cloudinary assets. References are
// "<resource_type>/<public_id>".
type CloudinaryClient struct {
	cld       *cloudinary.Cloudinary
	cloudName string
	folder    string
	http      *http.Client
}

func NewCloudinaryClient(cfg config.CloudinaryConfig) (*CloudinaryClient, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("cloudinary credentials are required")
	}
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	return &CloudinaryClient{cld: cld, cloudName: cfg.CloudName, folder: cfg.Folder, http: http.DefaultClient}, nil
}

func (c *CloudinaryClient) Scheme() string { return "cloudinary" }

// EnsureBucket is a no-op: folders are created implicitly on upload.
func (c *CloudinaryClient) EnsureBucket(context.Context) error { return nil }

func (c *CloudinaryClient) Put(ctx context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	res, err := c.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		Folder:       c.folder,
		PublicID:     strings.ReplaceAll(key, "/", "_"),
		ResourceType: "auto", // Automatically detect image, video, or raw
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to Cloudinary: %w", err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("failed to upload to Cloudinary: %s", res.Error.Message)
	}
	return res.ResourceType + "/" + res.PublicID, nil
}

func (c *CloudinaryClient) Get(ctx context.Context, ref string) (io.ReadCloser, error) {
	resourceType, publicID, ok := strings.Cut(ref, "/")
	if !ok {
		return nil, ErrInvalidLocator
	}
	url := fmt.Sprintf("https://res.cloudinary.com/%s/%s/upload/%s", c.cloudName, resourceType, publicID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("cloudinary download: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func (c *CloudinaryClient) Delete(ctx context.Context, ref string) error {
	resourceType, publicID, ok := strings.Cut(ref, "/")
	if !ok {
		return ErrInvalidLocator
	}
	_, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID, ResourceType: resourceType})
	return err
}
