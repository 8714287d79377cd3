package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/UnendingLoop/ImageVariants/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/ginext"
)

func TestVariantHandler_Ping(t *testing.T) {
	r := gin.New()
	h := NewVariantHandler(nil, 0)

	r.GET("/ping", func(c *gin.Context) {
		h.SimplePinger((*ginext.Context)(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "pong", body["message"])
}

func TestVariantHandler_RegisterRoutes(t *testing.T) {
	e := ginext.New(gin.TestMode)
	h := NewVariantHandler(&mockVariantService{
		presetsFn: func(ctx context.Context) []model.PresetInfo {
			return []model.PresetInfo{{ID: "thumbnail", Label: "Thumbnail", Warm: true}}
		},
	}, 0)
	h.RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodGet, "/presets", nil)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	var body []model.PresetInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body, 1)
	require.Equal(t, "thumbnail", body[0].ID)
}

func newMultipartRequest(t *testing.T, fields map[string]string, files map[string][]byte) *http.Request {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for name, content := range files {
		fw, err := w.CreateFormFile(name, name+".png")
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/originals", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestVariantHandler_UploadOriginal(t *testing.T) {
	tests := []struct {
		name       string
		req        *http.Request
		maxSize    int64
		mock       *mockVariantService
		wantStatus int
	}{
		{
			name: "success",
			req: newMultipartRequest(t,
				map[string]string{"title": "Sunset", "caption": "beach"},
				map[string][]byte{"image": []byte("img")},
			),
			mock: &mockVariantService{
				uploadFn: func(ctx context.Context, d *model.OriginalCreateData) (*model.Original, error) {
					require.Equal(t, "Sunset", d.Title)
					require.Equal(t, "beach", d.Caption)
					require.Equal(t, []byte("img"), d.Data)
					return &model.Original{UID: uuid.New()}, nil
				},
			},
			wantStatus: 201,
		},
		{
			name:       "missing image",
			req:        newMultipartRequest(t, map[string]string{"title": "Sunset"}, nil),
			mock:       &mockVariantService{},
			wantStatus: 400,
		},
		{
			name:       "too large",
			req:        newMultipartRequest(t, nil, map[string][]byte{"image": bytes.Repeat([]byte("x"), 64)}),
			maxSize:    16,
			mock:       &mockVariantService{},
			wantStatus: 413,
		},
		{
			name: "service validation error",
			req:  newMultipartRequest(t, nil, map[string][]byte{"image": []byte("img")}),
			mock: &mockVariantService{
				uploadFn: func(ctx context.Context, d *model.OriginalCreateData) (*model.Original, error) {
					return nil, model.ErrUnsupportedFormat
				},
			},
			wantStatus: 400,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewVariantHandler(tt.mock, tt.maxSize)

			r.POST("/originals", func(c *gin.Context) {
				h.UploadOriginal((*ginext.Context)(c))
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, tt.req)

			require.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestVariantHandler_CreateVariant(t *testing.T) {
	origID := uuid.NewString()

	tests := []struct {
		name       string
		body       string
		mock       *mockVariantService
		wantStatus int
	}{
		{
			name: "preset",
			body: `{"preset":"thumbnail"}`,
			mock: &mockVariantService{
				createFn: func(ctx context.Context, id string, req *model.VariantCreateData) (*model.VariantRecord, error) {
					require.Equal(t, origID, id)
					require.Equal(t, "thumbnail", req.Preset)
					return &model.VariantRecord{UID: uuid.New(), PresetID: "thumbnail"}, nil
				},
			},
			wantStatus: 201,
		},
		{
			name: "inline adjustments",
			body: `{"name":"half","adjustments":[{"type":"resize","options":{"width":50}}]}`,
			mock: &mockVariantService{
				createFn: func(ctx context.Context, id string, req *model.VariantCreateData) (*model.VariantRecord, error) {
					require.Len(t, req.Adjustments, 1)
					require.Equal(t, "resize", req.Adjustments[0].Type)
					require.EqualValues(t, 50, req.Adjustments[0].Options["width"])
					return &model.VariantRecord{UID: uuid.New()}, nil
				},
			},
			wantStatus: 201,
		},
		{
			name: "empty body is a copy",
			body: "",
			mock: &mockVariantService{
				createFn: func(ctx context.Context, id string, req *model.VariantCreateData) (*model.VariantRecord, error) {
					require.Empty(t, req.Preset)
					require.Empty(t, req.Adjustments)
					return &model.VariantRecord{UID: uuid.New()}, nil
				},
			},
			wantStatus: 201,
		},
		{
			name:       "bad json",
			body:       `{"preset":`,
			mock:       &mockVariantService{},
			wantStatus: 400,
		},
		{
			name: "unknown preset",
			body: `{"preset":"poster"}`,
			mock: &mockVariantService{
				createFn: func(ctx context.Context, id string, req *model.VariantCreateData) (*model.VariantRecord, error) {
					return nil, &model.UnknownPresetError{ID: "poster"}
				},
			},
			wantStatus: 404,
		},
		{
			name: "malformed adjustment",
			body: `{"adjustments":[{"type":"blur"}]}`,
			mock: &mockVariantService{
				createFn: func(ctx context.Context, id string, req *model.VariantCreateData) (*model.VariantRecord, error) {
					return nil, &model.ConfigurationError{Index: 0, Field: "type", Err: errors.New("unknown adjustment type")}
				},
			},
			wantStatus: 400,
		},
		{
			name: "unreadable original",
			body: `{}`,
			mock: &mockVariantService{
				createFn: func(ctx context.Context, id string, req *model.VariantCreateData) (*model.VariantRecord, error) {
					return nil, &model.TransformError{Op: "decode", Unreadable: true, Err: errors.New("bad header")}
				},
			},
			wantStatus: 422,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewVariantHandler(tt.mock, 0)

			r.POST("/originals/:id/variants", func(c *gin.Context) {
				h.CreateVariant((*ginext.Context)(c))
			})

			req := httptest.NewRequest(http.MethodPost, "/originals/"+origID+"/variants", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)
			require.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestVariantHandler_AddAdjustment(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		mock       *mockVariantService
		wantStatus int
	}{
		{
			name: "success",
			body: `{"type":"rotate","options":{"degrees":90}}`,
			mock: &mockVariantService{
				addAdjustmentFn: func(ctx context.Context, id string, req model.AdjustmentRequest) (*model.VariantRecord, error) {
					require.Equal(t, "rotate", req.Type)
					return &model.VariantRecord{Width: 10, Height: 20}, nil
				},
			},
			wantStatus: 200,
		},
		{
			name:       "bad json",
			body:       `[]`,
			mock:       &mockVariantService{},
			wantStatus: 400,
		},
		{
			name: "destroyed",
			body: `{"type":"flip","options":{"horizontal":true}}`,
			mock: &mockVariantService{
				addAdjustmentFn: func(ctx context.Context, id string, req model.AdjustmentRequest) (*model.VariantRecord, error) {
					return nil, model.ErrVariantDestroyed
				},
			},
			wantStatus: 410,
		},
		{
			name: "render failed",
			body: `{"type":"crop","options":{"x":900,"y":900,"width":5,"height":5}}`,
			mock: &mockVariantService{
				addAdjustmentFn: func(ctx context.Context, id string, req model.AdjustmentRequest) (*model.VariantRecord, error) {
					return nil, model.ErrCommon500
				},
			},
			wantStatus: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewVariantHandler(tt.mock, 0)

			r.POST("/variants/:id/adjustments", func(c *gin.Context) {
				h.AddAdjustment((*ginext.Context)(c))
			})

			req := httptest.NewRequest(http.MethodPost, "/variants/123/adjustments", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)
			require.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestVariantHandler_GetVariant(t *testing.T) {
	id := uuid.New()

	r := gin.New()
	h := NewVariantHandler(&mockVariantService{
		getFn: func(ctx context.Context, got string) (*model.VariantRecord, error) {
			if got != id.String() {
				return nil, model.ErrVariantNotFound
			}
			return &model.VariantRecord{UID: id, Width: 50, Height: 25}, nil
		},
	}, 0)

	r.GET("/variants/:id", func(c *gin.Context) {
		h.GetVariant((*ginext.Context)(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/variants/"+id.String(), nil))
	require.Equal(t, 200, w.Code)

	var rec model.VariantRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	require.Equal(t, id, rec.UID)
	require.Equal(t, 50, rec.Width)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/variants/"+uuid.NewString(), nil))
	require.Equal(t, 404, w.Code)
}

func TestVariantHandler_ListVariants(t *testing.T) {
	tests := []struct {
		name       string
		mock       *mockVariantService
		wantStatus int
	}{
		{
			name: "success",
			mock: &mockVariantService{
				listFn: func(ctx context.Context, originalID string) ([]model.VariantRecord, error) {
					return []model.VariantRecord{{}, {}}, nil
				},
			},
			wantStatus: 200,
		},
		{
			name: "unknown original",
			mock: &mockVariantService{
				listFn: func(ctx context.Context, originalID string) ([]model.VariantRecord, error) {
					return nil, model.ErrOriginalNotFound
				},
			},
			wantStatus: 404,
		},
		{
			name: "service error",
			mock: &mockVariantService{
				listFn: func(ctx context.Context, originalID string) ([]model.VariantRecord, error) {
					return nil, model.ErrCommon500
				},
			},
			wantStatus: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewVariantHandler(tt.mock, 0)

			r.GET("/originals/:id/variants", func(c *gin.Context) {
				h.ListVariants((*ginext.Context)(c))
			})

			req := httptest.NewRequest(http.MethodGet, "/originals/123/variants", nil)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)
			require.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestVariantHandler_LoadResult(t *testing.T) {
	tests := []struct {
		name       string
		mock       *mockVariantService
		wantStatus int
		wantType   string
	}{
		{
			name: "success",
			mock: &mockVariantService{
				loadResultFn: func(ctx context.Context, id string) (io.ReadCloser, string, error) {
					return io.NopCloser(bytes.NewReader([]byte("ok"))), model.JPEG, nil
				},
			},
			wantStatus: 200,
			wantType:   model.JPEG,
		},
		{
			name: "not found",
			mock: &mockVariantService{
				loadResultFn: func(ctx context.Context, id string) (io.ReadCloser, string, error) {
					return nil, "", model.ErrVariantNotFound
				},
			},
			wantStatus: 404,
		},
		{
			name: "timeout",
			mock: &mockVariantService{
				loadResultFn: func(ctx context.Context, id string) (io.ReadCloser, string, error) {
					return nil, "", fmt.Errorf("waiting for render: %w", context.DeadlineExceeded)
				},
			},
			wantStatus: 504,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewVariantHandler(tt.mock, 0)

			r.GET("/variants/:id/result", func(c *gin.Context) {
				h.LoadResult((*ginext.Context)(c))
			})

			req := httptest.NewRequest(http.MethodGet, "/variants/123/result", nil)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)
			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantType != "" {
				require.Equal(t, tt.wantType, w.Header().Get("Content-Type"))
				require.Equal(t, "ok", w.Body.String())
			}
		})
	}
}

func TestVariantHandler_DeleteVariant(t *testing.T) {
	tests := []struct {
		name       string
		mock       *mockVariantService
		wantStatus int
	}{
		{
			name: "success",
			mock: &mockVariantService{
				deleteFn: func(ctx context.Context, id string) error {
					return nil
				},
			},
			wantStatus: 204,
		},
		{
			name: "bad id",
			mock: &mockVariantService{
				deleteFn: func(ctx context.Context, id string) error {
					return model.ErrIncorrectID
				},
			},
			wantStatus: 400,
		},
		{
			name: "not found",
			mock: &mockVariantService{
				deleteFn: func(ctx context.Context, id string) error {
					return model.ErrVariantNotFound
				},
			},
			wantStatus: 404,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			h := NewVariantHandler(tt.mock, 0)

			r.DELETE("/variants/:id", func(c *gin.Context) {
				h.DeleteVariant((*ginext.Context)(c))
			})

			req := httptest.NewRequest(http.MethodDelete, "/variants/123", nil)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)
			require.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestErrorCodeDefiner(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{model.ErrCommon500, 500},
		{errors.New("boom"), 500},
		{model.ErrVariantNotFound, 404},
		{&model.UnknownPresetError{ID: "x"}, 404},
		{model.ErrVariantDestroyed, 410},
		{&model.TransformError{Op: "decode", Unreadable: true, Err: errors.New("x")}, 422},
		{&model.UnsupportedOperationError{Op: "SetTitle", Rule: model.ErrSetTitle}, 400},
		{model.ErrAmbiguousVariant, 400},
		{model.ErrImageTooLarge, 413},
		{&model.TransformError{Op: "decode", Unreadable: true, Err: model.ErrImageTooLarge}, 413},
		{&model.TransformError{Op: "crop", Err: &model.ConfigurationError{Index: 0, Err: errors.New("outside")}}, 400},
		{context.Canceled, 499},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			require.Equal(t, tt.want, errorCodeDefiner(tt.err))
		})
	}
}
