package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/alphabot-ai/inkpost/internal/model"
)

// MaxImageSize is the largest image the API accepts.
const MaxImageSize = 5 << 20

// ImageFile is an image waiting to be uploaded. Open is only called once the
// file has passed validation.
type ImageFile struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// NewImageFile wraps in-memory data. The content type is sniffed when not
// derivable from name.
func NewImageFile(name string, data []byte) ImageFile {
	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return ImageFile{
		Name:        name,
		ContentType: ct,
		Size:        int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// OpenImageFile describes the file at path without reading all of it.
func OpenImageFile(path string) (ImageFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ImageFile{}, err
	}
	if info.IsDir() {
		return ImageFile{}, fmt.Errorf("%s is a directory", path)
	}
	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if ct == "" {
		ct, err = sniffFile(path)
		if err != nil {
			return ImageFile{}, err
		}
	}
	return ImageFile{
		Name:        filepath.Base(path),
		ContentType: ct,
		Size:        info.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

func sniffFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	return http.DetectContentType(head[:n]), nil
}

// IsImage reports whether the file declares an image/* content type.
func (f ImageFile) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(f.ContentType), "image/")
}

// Validate applies the upload rules without touching the network.
func (f ImageFile) Validate() error {
	if !f.IsImage() {
		return validationError(MsgNotAnImage)
	}
	if f.Size > MaxImageSize {
		return validationError(MsgImageTooLarge)
	}
	return nil
}

// UploadImage sends f as the multipart field "image". A 401 mentioning the
// token clears the session and returns KindSessionExpired.
func (c *Client) UploadImage(ctx context.Context, f ImageFile) (model.Image, error) {
	if err := f.Validate(); err != nil {
		return model.Image{}, err
	}
	if err := c.requireSession(ctx); err != nil {
		return model.Image{}, err
	}

	body, contentType, err := multipartBody(f)
	if err != nil {
		return model.Image{}, err
	}
	header := http.Header{}
	header.Set("Content-Type", contentType)

	raw, err := c.send(ctx, http.MethodPost, "/upload-image", body, header)
	if err != nil {
		if isTokenRejection(err) {
			if clearErr := c.session.Clear(ctx); clearErr != nil {
				return model.Image{}, fmt.Errorf("clear rejected session: %w", clearErr)
			}
			return model.Image{}, sessionExpired(http.StatusUnauthorized)
		}
		return model.Image{}, err
	}
	c.metrics.AddUploadedBytes(f.Size)

	img, err := decodeEnvelope[model.Image](raw, "image")
	if err != nil {
		return model.Image{}, err
	}
	if img.OriginalName == "" {
		img.OriginalName = f.Name
	}
	return img, nil
}

func isTokenRejection(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == KindAPI && ce.Status == http.StatusUnauthorized &&
		strings.Contains(strings.ToLower(ce.Message), "token")
}

func multipartBody(f ImageFile) (*bytes.Buffer, string, error) {
	src, err := f.Open()
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer src.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, f.Name))
	h.Set("Content-Type", f.ContentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	// Guard against a file that grew after it was validated.
	n, err := io.Copy(part, io.LimitReader(src, MaxImageSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", f.Name, err)
	}
	if n > MaxImageSize {
		return nil, "", validationError(MsgImageTooLarge)
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

type imageList struct {
	Images     []model.Image    `json:"images"`
	Pagination model.Pagination `json:"pagination"`
}

func (c *Client) GetMyImages(ctx context.Context, page, limit int) (model.Page[model.Image], error) {
	if err := c.requireSession(ctx); err != nil {
		return model.Page[model.Image]{}, err
	}
	q := listQuery(page, limit, DefaultStoriesLimit)
	raw, err := c.Request(ctx, http.MethodGet, "/my-images?"+q.Encode(), nil)
	if err != nil {
		return model.Page[model.Image]{}, err
	}
	list, err := decodeEnvelope[imageList](raw, "")
	if err != nil {
		return model.Page[model.Image]{}, err
	}
	if list.Images == nil {
		list.Images = []model.Image{}
	}
	return model.Page[model.Image]{Items: list.Images, Pagination: list.Pagination}, nil
}

// DeleteImage removes an uploaded image by public id. Slashes in the id are
// escaped into a single path segment.
func (c *Client) DeleteImage(ctx context.Context, publicID string) error {
	if err := c.requireSession(ctx); err != nil {
		return err
	}
	_, err := c.Request(ctx, http.MethodDelete, "/delete-image/"+url.PathEscape(publicID), nil)
	return err
}
