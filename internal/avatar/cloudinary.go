// Package avatar uploads user avatars to Cloudinary and hands back the
// hosted URL.
package avatar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

type Store struct {
	cld *cloudinary.Cloudinary
}

func NewStore(cloudName, apiKey, apiSecret string) (*Store, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary init: %w", err)
	}
	return &Store{cld: cld}, nil
}

// Upload stores the image under a public id derived from the owner's email
// and returns the https URL. Re-uploading for the same owner overwrites.
func (s *Store) Upload(ctx context.Context, file io.Reader, ownerEmail string) (string, error) {
	resp, err := s.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		PublicID:  "avatars/" + PublicKey(ownerEmail),
		Overwrite: api.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("avatar upload: %w", err)
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("avatar upload: %s", resp.Error.Message)
	}
	if resp.SecureURL == "" {
		return "", errors.New("avatar upload: empty url in response")
	}
	return resp.SecureURL, nil
}

// PublicKey flattens an email into a Cloudinary-safe public id segment.
func PublicKey(email string) string {
	return strings.NewReplacer("@", "_at_", ".", "_dot_").Replace(email)
}
